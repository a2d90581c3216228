// Package app wires the engine together and runs its background loops:
// the trade monitor, the health watchdog, the drawdown check and the
// regime classifier.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/UnderhillForge/PiTrader/broker"
	"github.com/UnderhillForge/PiTrader/config"
	"github.com/UnderhillForge/PiTrader/drawdown"
	"github.com/UnderhillForge/PiTrader/exec"
	"github.com/UnderhillForge/PiTrader/health"
	"github.com/UnderhillForge/PiTrader/ledger"
	"github.com/UnderhillForge/PiTrader/market"
	"github.com/UnderhillForge/PiTrader/metrics"
	"github.com/UnderhillForge/PiTrader/portfolio"
	"github.com/UnderhillForge/PiTrader/regime"
	"github.com/UnderhillForge/PiTrader/store"
)

// Engine is the assembled trading engine.
type Engine struct {
	Cfg    *config.Config
	Log    zerolog.Logger
	Cache  *market.Cache
	Store  store.Store
	Book   *portfolio.Book
	Health *health.Monitor
	Guard  *drawdown.Guard
	Regime *regime.Classifier
	Router *exec.Router
	Ledger *ledger.Ledger

	mu         sync.Mutex
	parked     bool
	parkReason string
}

// Options carries the injectable pieces. A nil Exchange runs the engine in
// pure simulation.
type Options struct {
	Exchange   broker.Exchange
	BaseEquity float64
	Store      store.Store // overrides the SQLite store, used by tests
}

// New assembles an engine from configuration.
func New(cfg *config.Config, log zerolog.Logger, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	st := opts.Store
	if st == nil {
		var err error
		st, err = store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	cache := market.NewCache()
	healthM := health.NewMonitor(cfg.Health, log)
	guard, err := drawdown.NewGuard(cfg.Drawdown, st, log)
	if err != nil {
		return nil, err
	}

	baseEquity := opts.BaseEquity
	if baseEquity <= 0 {
		baseEquity = 10000
	}
	book, err := portfolio.NewBook(cfg.Engine, cfg.Risk, baseEquity, st, log)
	if err != nil {
		return nil, err
	}

	classif := regime.NewClassifier(cfg.Regime, cache)
	router := exec.NewRouter(cfg.Execution, opts.Exchange, cache, cfg.Engine.DryRunOrders, log)

	e := &Engine{
		Cfg:    cfg,
		Log:    log.With().Str("component", "app").Logger(),
		Cache:  cache,
		Store:  st,
		Book:   book,
		Health: healthM,
		Guard:  guard,
		Regime: classif,
		Router: router,
	}
	e.Ledger = ledger.New(cfg, cache, router, st, book, healthM, guard, classif, log)
	e.Ledger.Parked = e.ParkedState

	// A park flag left behind by a previous run keeps the engine parked.
	if cfg.Engine.ParkFlagPath != "" {
		if _, err := os.Stat(cfg.Engine.ParkFlagPath); err == nil {
			e.mu.Lock()
			e.parked = true
			e.parkReason = "park_flag_present"
			e.mu.Unlock()
			e.Log.Warn().Str("path", cfg.Engine.ParkFlagPath).Msg("park flag found, entries disabled")
		}
	}

	return e, nil
}

// ParkedState reports whether the engine refuses new entries.
func (e *Engine) ParkedState() (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.parked, e.parkReason
}

// Park disables entries and drops a marker file so the state survives a
// restart. Exits keep running.
func (e *Engine) Park(reason string) error {
	e.mu.Lock()
	e.parked = true
	e.parkReason = reason
	e.mu.Unlock()

	e.Log.Warn().Str("reason", reason).Msg("engine parked")
	if e.Cfg.Engine.ParkFlagPath == "" {
		return nil
	}
	return os.WriteFile(e.Cfg.Engine.ParkFlagPath, []byte(reason+"\n"), 0o644)
}

// Unpark clears the parked state and removes the marker file.
func (e *Engine) Unpark() error {
	e.mu.Lock()
	e.parked = false
	e.parkReason = ""
	e.mu.Unlock()

	e.Log.Info().Msg("engine unparked")
	if e.Cfg.Engine.ParkFlagPath == "" {
		return nil
	}
	if err := os.Remove(e.Cfg.Engine.ParkFlagPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ForceCloseAll flattens every open position.
func (e *Engine) ForceCloseAll(ctx context.Context, reason string) int {
	return e.Ledger.ForceCloseAll(ctx, reason)
}

// RestInBase moves the account into its base currency. In simulation there
// is nothing to convert once positions are flat, so this records the intent.
func (e *Engine) RestInBase(ctx context.Context) error {
	e.Log.Warn().Msg("resting in base currency")
	return nil
}

// Recover reloads open positions from the store.
func (e *Engine) Recover(ctx context.Context) error {
	restored, err := e.Ledger.Recover(ctx)
	if err != nil {
		return err
	}
	e.Log.Info().Int("restored", restored).Msg("recovery complete")
	return nil
}

// Run starts every background loop and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Recover(ctx); err != nil {
		return err
	}
	e.Book.Rebalance(time.Now().UTC())
	metrics.Equity.Set(e.Book.Equity())

	var wg sync.WaitGroup
	loops := []struct {
		name     string
		interval time.Duration
		step     func(context.Context, time.Time)
	}{
		{"monitor", e.Cfg.Engine.MonitorInterval.Std(), func(ctx context.Context, now time.Time) {
			e.Ledger.MonitorTick(ctx, now)
		}},
		{"health", e.Cfg.Health.CheckInterval.Std(), func(ctx context.Context, _ time.Time) {
			metrics.SetHealthState(string(e.Health.State()))
			e.Health.CheckOutage(ctx, e)
		}},
		{"drawdown", e.Cfg.Drawdown.CheckInterval.Std(), func(ctx context.Context, now time.Time) {
			st := e.Guard.Evaluate(e.Book.Equity(), now)
			metrics.Drawdown.WithLabelValues("daily").Set(st.DailyPct)
			metrics.Drawdown.WithLabelValues("weekly").Set(st.WeeklyPct)
			metrics.Drawdown.WithLabelValues("ath").Set(st.ATHPct)
			if st.Breached {
				e.Guard.EnforcePause(ctx, e, st.Reason)
			}
			e.Book.Rebalance(now)
		}},
		{"regime", e.Cfg.Regime.CheckInterval.Std(), func(_ context.Context, _ time.Time) {
			e.Regime.Classify()
		}},
	}

	for _, loop := range loops {
		wg.Add(1)
		go func(name string, interval time.Duration, step func(context.Context, time.Time)) {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					step(ctx, now.UTC())
				}
			}
		}(loop.name, loop.interval, loop.step)
	}

	e.Log.Info().Bool("simulation", e.Cfg.Engine.Simulation).
		Bool("dry_run", e.Cfg.Engine.DryRunOrders).Msg("engine running")
	<-ctx.Done()
	wg.Wait()
	return nil
}

// Close releases the store.
func (e *Engine) Close() error {
	if e.Store != nil {
		return e.Store.Close()
	}
	return nil
}
