package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pinleague/pipeline/internal/extract"
	"github.com/pinleague/pipeline/internal/model"
	"github.com/pinleague/pipeline/internal/normalize"
	"github.com/pinleague/pipeline/internal/pipeline"
	"github.com/pinleague/pipeline/internal/report"
	"github.com/pinleague/pipeline/internal/storage"
)

var (
	runSeason       int
	skipPercentiles bool
	skipStats       bool
	skipPicks       bool
	skipTotals      bool
)

var runCmd = &cobra.Command{
	Use:   "run <match-file|dir>...",
	Short: "Run the full pipeline for a season",
	Long: `Extract and load the given match records, then run the aggregation stages:
score percentiles, player machine stats, team pick rankings, and cross-season
totals. Stages with a failed dependency are skipped; independent stages still run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runSeason, "season", 0, "season to process (required)")
	runCmd.Flags().BoolVar(&skipPercentiles, "skip-percentiles", false, "skip the percentile stage")
	runCmd.Flags().BoolVar(&skipStats, "skip-stats", false, "skip the player machine stats stage")
	runCmd.Flags().BoolVar(&skipPicks, "skip-picks", false, "skip the team pick stage")
	runCmd.Flags().BoolVar(&skipTotals, "skip-totals", false, "skip the cross-season totals stage")
	runCmd.MarkFlagRequired("season")
}

func runRun(cmd *cobra.Command, args []string) error {
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

	rep := &pipeline.Report{Season: runSeason}
	runner := pipeline.Build(db, runSeason, log, pipeline.Options{
		LoadFn: func(r *pipeline.Report) (string, error) {
			loaded, counts, err := loadMatchFiles(db, norm, files, r)
			if err != nil {
				return "", pipeline.Fatal(err)
			}
			r.Counts = counts
			return fmt.Sprintf("%d matches", loaded), nil
		},
		SkipPercentiles: skipPercentiles,
		SkipStats:       skipStats,
		SkipPicks:       skipPicks,
		SkipTotals:      skipTotals,
	})
	runner.Run(rep)

	report.PrintRunReport(os.Stdout, rep)
	if rep.Failed() {
		return fmt.Errorf("one or more stages failed")
	}
	return nil
}

// openDB opens the store, creating the parent directory on first use.
func openDB() (*storage.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return db, nil
}

// loadAliases builds the run's alias snapshot and persists the curated
// machine/alias reference rows. Without an alias file every machine name is
// its own key, which still loads but logs unmapped-machine warnings.
func loadAliases(db *storage.DB) (*normalize.Normalizer, error) {
	if aliasPath == "" {
		log.Warn("no alias file configured; machine names will not be canonicalized")
		return normalize.New(nil), nil
	}
	norm, machines, aliases, err := normalize.LoadFile(aliasPath)
	if err != nil {
		return nil, err
	}
	if err := db.UpsertReference(machines, aliases); err != nil {
		return nil, fmt.Errorf("load machine reference: %w", err)
	}
	log.WithFields(map[string]interface{}{"machines": len(machines), "aliases": len(aliases)}).
		Info("alias table loaded")
	return norm, nil
}

// collectMatchFiles expands directories into their .json entries.
func collectMatchFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", arg, err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
				files = append(files, filepath.Join(arg, e.Name()))
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no match records found")
	}
	sort.Strings(files)
	return files, nil
}

// loadMatchFiles extracts and loads a batch of match record files. Structural
// problems reject individual matches and accumulate on the report; a storage
// failure is returned as an error.
func loadMatchFiles(db *storage.DB, norm *normalize.Normalizer, files []string, rep *pipeline.Report) (int, storage.Counts, error) {
	ex := extract.New(norm, log)
	var batch []*model.ExtractedMatch
	for _, path := range files {
		rec, err := extract.ReadFile(path)
		if err != nil {
			rep.Problems = append(rep.Problems, extract.Problem{
				MatchKey: filepath.Base(path),
				Severity: extract.SeverityError,
				Message:  err.Error(),
			})
			continue
		}
		em, problems := ex.Match(rec)
		rep.Problems = append(rep.Problems, problems...)
		if em == nil {
			continue
		}
		if em.Match.Season != rep.Season {
			rep.Problems = append(rep.Problems, extract.Problem{
				MatchKey: em.Match.Key,
				Severity: extract.SeverityWarning,
				Message:  fmt.Sprintf("record is for season %d, not %d; skipped", em.Match.Season, rep.Season),
			})
			continue
		}
		batch = append(batch, em)
	}

	counts, err := db.LoadMatches(batch)
	if err != nil {
		return 0, counts, fmt.Errorf("load matches: %w", err)
	}
	return len(batch), counts, nil
}
