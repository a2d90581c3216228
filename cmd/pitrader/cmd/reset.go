package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/UnderhillForge/PiTrader/store"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the park marker so the next run accepts entries",
	Long: `Remove the park marker file written by an outage flatten or a manual
park. With --live, also drop the live-trade snapshots so the next run starts
flat instead of recovering open positions.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

var resetLive bool

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVar(&resetLive, "live", false, "also drop live-trade snapshots")
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Engine.ParkFlagPath != "" {
		if err := os.Remove(cfg.Engine.ParkFlagPath); err == nil {
			fmt.Printf("Removed park marker %s\n", cfg.Engine.ParkFlagPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove park marker: %w", err)
		}
	}

	if !resetLive {
		return nil
	}

	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	rows, err := st.LoadLiveTrades()
	if err != nil {
		return fmt.Errorf("load live trades: %w", err)
	}
	for _, row := range rows {
		if err := st.DeleteLiveTrade(row.ID); err != nil {
			return fmt.Errorf("delete live trade %s: %w", row.ID, err)
		}
	}
	fmt.Printf("Dropped %d live-trade snapshot(s)\n", len(rows))
	return nil
}
