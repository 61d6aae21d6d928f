package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pinleague/pipeline/internal/report"
)

var (
	playersSeason  int
	playersMachine string
	showPicks      bool
	showTotals     bool
)

var playersCmd = &cobra.Command{
	Use:   "players",
	Short: "Show player machine stats, pick rankings, or totals",
	Args:  cobra.NoArgs,
	RunE:  runPlayers,
}

func init() {
	playersCmd.Flags().IntVar(&playersSeason, "season", 0, "season to show (required unless --totals)")
	playersCmd.Flags().StringVar(&playersMachine, "machine", "", "filter to one machine key")
	playersCmd.Flags().BoolVar(&showPicks, "picks", false, "show team pick rankings instead of player stats")
	playersCmd.Flags().BoolVar(&showTotals, "totals", false, "show cross-season player totals")
}

func runPlayers(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if showTotals {
		rows, err := db.AllPlayerTotals()
		if err != nil {
			return fmt.Errorf("read totals: %w", err)
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stdout, "No totals computed yet. Run 'pinstats totals' first.")
			return nil
		}
		report.PrintTotalsTable(os.Stdout, rows)
		return nil
	}

	if playersSeason == 0 {
		return fmt.Errorf("--season is required")
	}

	if showPicks {
		rows, err := db.SeasonTeamPicks(playersSeason)
		if err != nil {
			return fmt.Errorf("read team picks: %w", err)
		}
		if len(rows) == 0 {
			fmt.Fprintf(os.Stdout, "No pick data for season %d. Run 'pinstats picks --season %d' first.\n", playersSeason, playersSeason)
			return nil
		}
		report.PrintPicksTable(os.Stdout, rows)
		return nil
	}

	rows, err := db.SeasonPlayerMachineStats(playersSeason, playersMachine)
	if err != nil {
		return fmt.Errorf("read player stats: %w", err)
	}
	if len(rows) == 0 {
		fmt.Fprintf(os.Stdout, "No player stats for season %d. Run 'pinstats stats --season %d' first.\n", playersSeason, playersSeason)
		return nil
	}
	report.PrintPlayerMachineTable(os.Stdout, rows)
	return nil
}
