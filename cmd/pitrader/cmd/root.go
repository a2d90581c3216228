package cmd

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/UnderhillForge/PiTrader/config"
)

var rootCmd = &cobra.Command{
	Use:   "pitrader",
	Short: "An autonomous perp trading engine with layered safety gates",
	Long: `PiTrader executes upstream trading decisions through a chain of
safety gates and manages the resulting positions to completion.

It provides:
  - A maker-first order router with IOC and guarded market fallback
  - Exchange health tracking with automatic outage flatten
  - A drawdown circuit breaker over daily, weekly and all-time windows
  - Regime-aware sizing with trailing stops, partials and pyramid adds
  - A SQLite journal of trades, events and equity history`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", "", "path to config file (YAML or JSON)")
}

// loadConfig reads the configured file, or the defaults when none is given.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(configPath)
}

// newLogger builds the process logger from the log section.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.Log.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}
