package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/UnderhillForge/PiTrader/store"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the trade journal",
	Long: `Query settled trades from the SQLite journal.

Examples:
  pitrader journal recent
  pitrader journal recent --limit 50`,
}

var journalRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently settled trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalRecent,
}

var journalLimit int

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRecentCmd)

	journalRecentCmd.Flags().IntVar(&journalLimit, "limit", 20, "number of trades to show")
}

func runJournalRecent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	rows, err := st.RecentTrades(journalLimit)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	if len(rows) == 0 {
		fmt.Println("No settled trades.")
		return nil
	}

	fmt.Printf("%-28s %-18s %-4s %12s %12s %12s %10s  %s\n",
		"TIME", "ASSET", "SIDE", "SIZE", "ENTRY", "EXIT", "NET", "REASON")
	for _, r := range rows {
		fmt.Printf("%-28s %-18s %-4s %12.8f %12.2f %12.2f %10.2f  %s\n",
			r.Time.Format("2006-01-02 15:04:05"), r.Asset, r.Side,
			r.Size, r.Entry, r.Exit, r.PnL, r.Reason)
	}
	return nil
}
