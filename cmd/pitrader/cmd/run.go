package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/UnderhillForge/PiTrader/app"
	"github.com/UnderhillForge/PiTrader/ledger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading engine",
	Long: `Run the engine: recover open positions, start the monitor and
watchdog loops, and execute decisions read as JSON lines from stdin.

Example:
  pitrader run -f pitrader.yaml --metrics-addr :9090 < decisions.jsonl`,
	RunE: runRun,
}

var (
	metricsAddr string
	baseEquity  float64
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve /metrics on (empty disables)")
	runCmd.Flags().Float64Var(&baseEquity, "base-equity", 10000, "starting simulated equity in USD")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	engine, err := app.New(cfg, log, app.Options{BaseEquity: baseEquity})
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
		log.Info().Str("addr", metricsAddr).Msg("serving /metrics")
	}

	go feedDecisions(ctx, engine, log)

	return engine.Run(ctx)
}

// feedDecisions executes JSON-encoded decisions read line by line from
// stdin. A closed stdin just stops the feed; the engine keeps managing open
// positions.
func feedDecisions(ctx context.Context, engine *app.Engine, log zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var d ledger.Decision
		if err := json.Unmarshal(line, &d); err != nil {
			log.Error().Err(err).Msg("malformed decision line")
			continue
		}

		res, err := engine.Ledger.Execute(ctx, d)
		if err != nil {
			log.Error().Err(err).Str("decision_id", d.ID).Msg("decision rejected")
			continue
		}
		log.Info().Str("decision_id", d.ID).Str("outcome", res.Outcome).
			Str("gate", res.Gate).Str("reason", res.Reason).
			Str("trade_id", res.TradeID).Msg("decision processed")
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("decision feed read failed")
	}
}
