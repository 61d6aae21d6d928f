package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pinleague/pipeline/internal/pipeline"
	"github.com/pinleague/pipeline/internal/report"
)

var loadSeason int

var loadCmd = &cobra.Command{
	Use:   "load <match-file|dir>...",
	Short: "Extract and load match records without running aggregation",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLoad,
}

func init() {
	loadCmd.Flags().IntVar(&loadSeason, "season", 0, "season to load (required)")
	loadCmd.MarkFlagRequired("season")
}

func runLoad(cmd *cobra.Command, args []string) error {
	files, err := collectMatchFiles(args)
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	norm, err := loadAliases(db)
	if err != nil {
		return err
	}

	rep := &pipeline.Report{Season: loadSeason}
	loaded, counts, err := loadMatchFiles(db, norm, files, rep)
	if err != nil {
		return err
	}
	rep.Counts = counts
	rep.Stages = append(rep.Stages, pipeline.StageResult{
		Name:   pipeline.StageLoad,
		Status: pipeline.StatusOK,
		Detail: fmt.Sprintf("%d matches", loaded),
	})

	report.PrintRunReport(os.Stdout, rep)
	return nil
}
