package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pinleague/pipeline/internal/stats"
	"github.com/pinleague/pipeline/internal/storage"
)

// Stage names, also the dependency vocabulary.
const (
	StageLoad        = "load"
	StagePercentiles = "percentiles"
	StagePlayerStats = "playerstats"
	StageTeamPicks   = "teampicks"
	StageTotals      = "totals"
)

// Options selects which stages a run registers. LoadFn is supplied by the
// caller (it owns file discovery and extraction); nil means the run starts
// from already-loaded data.
type Options struct {
	LoadFn func(r *Report) (string, error)

	SkipPercentiles bool
	SkipStats       bool
	SkipPicks       bool
	SkipTotals      bool
}

// Build assembles the standard stage graph for one season:
//
//	load → percentiles → playerstats
//	load → teampicks
//	load → totals
//
// Team picks and totals are independent of the percentile chain and still run
// when it fails.
func Build(db *storage.DB, season int, log *logrus.Logger, opts Options) *Runner {
	r := NewRunner(log)

	var loadDeps []string
	if opts.LoadFn != nil {
		r.Add(Stage{Name: StageLoad, Run: opts.LoadFn})
		loadDeps = []string{StageLoad}
	}

	if !opts.SkipPercentiles {
		r.Add(Stage{
			Name: StagePercentiles,
			Deps: loadDeps,
			Run: func(*Report) (string, error) {
				n, err := stats.Percentiles(db, season)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d rows", n), nil
			},
		})
	}
	if !opts.SkipStats {
		r.Add(Stage{
			Name: StagePlayerStats,
			Deps: append([]string{StagePercentiles}, loadDeps...),
			Run: func(*Report) (string, error) {
				n, err := stats.PlayerMachine(db, season)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d rows", n), nil
			},
		})
	}
	if !opts.SkipPicks {
		r.Add(Stage{
			Name: StageTeamPicks,
			Deps: loadDeps,
			Run: func(*Report) (string, error) {
				n, err := stats.TeamPicks(db, season)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d rows", n), nil
			},
		})
	}
	if !opts.SkipTotals {
		r.Add(Stage{
			Name: StageTotals,
			Deps: loadDeps,
			Run: func(*Report) (string, error) {
				n, err := stats.Totals(db)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d rows", n), nil
			},
		})
	}
	return r
}
