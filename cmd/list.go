package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pinleague/pipeline/internal/report"
)

var listSeason int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded matches for a season",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVar(&listSeason, "season", 0, "season to list (required)")
	listCmd.MarkFlagRequired("season")
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	matches, err := db.MatchSummaries(listSeason)
	if err != nil {
		return fmt.Errorf("list matches: %w", err)
	}
	if len(matches) == 0 {
		fmt.Fprintf(os.Stdout, "No matches loaded for season %d. Run 'pinstats run --season %d <dir>' to load some.\n", listSeason, listSeason)
		return nil
	}
	report.PrintMatchList(os.Stdout, matches)
	return nil
}
