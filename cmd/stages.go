package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pinleague/pipeline/internal/stats"
)

// Single-stage commands for partial re-runs. Each stage is individually
// idempotent, so any of them can be re-run at will; the player stats stage
// degrades to null percentile fields if run before percentiles exist.

var (
	percentilesSeason int
	statsSeason       int
	picksSeason       int
)

var percentilesCmd = &cobra.Command{
	Use:   "percentiles",
	Short: "Recompute score percentiles for a season",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		n, err := stats.Percentiles(db, percentilesSeason)
		if err != nil {
			return fmt.Errorf("percentiles: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Wrote %d percentile rows for season %d.\n", n, percentilesSeason)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Recompute player machine stats for a season",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		n, err := stats.PlayerMachine(db, statsSeason)
		if err != nil {
			return fmt.Errorf("player stats: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Wrote %d player machine stat rows for season %d.\n", n, statsSeason)
		return nil
	},
}

var picksCmd = &cobra.Command{
	Use:   "picks",
	Short: "Recompute team machine pick rankings for a season",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		n, err := stats.TeamPicks(db, picksSeason)
		if err != nil {
			return fmt.Errorf("team picks: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Wrote %d team pick rows for season %d.\n", n, picksSeason)
		return nil
	},
}

var totalsCmd = &cobra.Command{
	Use:   "totals",
	Short: "Recompute cross-season player totals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		n, err := stats.Totals(db)
		if err != nil {
			return fmt.Errorf("totals: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Wrote %d player totals rows.\n", n)
		return nil
	},
}

func init() {
	percentilesCmd.Flags().IntVar(&percentilesSeason, "season", 0, "season to process (required)")
	percentilesCmd.MarkFlagRequired("season")
	statsCmd.Flags().IntVar(&statsSeason, "season", 0, "season to process (required)")
	statsCmd.MarkFlagRequired("season")
	picksCmd.Flags().IntVar(&picksSeason, "season", 0, "season to process (required)")
	picksCmd.MarkFlagRequired("season")
}
