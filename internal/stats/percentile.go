// Package stats implements the derived statistics passes: score percentiles,
// player-machine summaries, team pick rankings, and cross-season totals.
package stats

import (
	"fmt"
	"sort"

	"github.com/pinleague/pipeline/internal/model"
	"github.com/pinleague/pipeline/internal/storage"
)

// TargetPercentiles are the thresholds emitted per score population.
var TargetPercentiles = []int{10, 25, 50, 75, 90, 95, 99}

// MinSampleSize is the smallest population that yields percentile rows.
// Smaller groups emit nothing: a partial or noisy threshold set would be
// worse than an absent one.
const MinSampleSize = 10

type groupKey struct {
	machine string
	venue   string
}

// ComputePercentiles derives percentile thresholds per (machine, venue) group
// plus a pooled VenueAll group per machine, using the nearest-rank method:
// threshold = sorted[floor(p/100 * (n-1))]. Interpolation between thresholds
// happens one layer up, in the player-machine pass.
func ComputePercentiles(scores []storage.SeasonScore, season int) []model.ScorePercentile {
	groups := make(map[groupKey][]int64)
	for _, s := range scores {
		groups[groupKey{s.MachineKey, s.VenueKey}] = append(groups[groupKey{s.MachineKey, s.VenueKey}], s.Score)
		groups[groupKey{s.MachineKey, model.VenueAll}] = append(groups[groupKey{s.MachineKey, model.VenueAll}], s.Score)
	}

	var out []model.ScorePercentile
	for key, vals := range groups {
		n := len(vals)
		if n < MinSampleSize {
			continue
		}
		sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
		for _, p := range TargetPercentiles {
			idx := p * (n - 1) / 100
			out = append(out, model.ScorePercentile{
				MachineKey: key.machine,
				VenueKey:   key.venue,
				Season:     season,
				Percentile: p,
				Threshold:  vals[idx],
				SampleSize: n,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MachineKey != out[j].MachineKey {
			return out[i].MachineKey < out[j].MachineKey
		}
		if out[i].VenueKey != out[j].VenueKey {
			return out[i].VenueKey < out[j].VenueKey
		}
		return out[i].Percentile < out[j].Percentile
	})
	return out
}

// Percentiles recomputes the season's ScorePercentile rows wholesale and
// returns the row count written.
func Percentiles(db *storage.DB, season int) (int, error) {
	scores, err := db.SeasonScores(season)
	if err != nil {
		return 0, fmt.Errorf("read season scores: %w", err)
	}
	rows := ComputePercentiles(scores, season)
	if err := db.ReplaceScorePercentiles(season, rows); err != nil {
		return 0, fmt.Errorf("replace percentiles: %w", err)
	}
	return len(rows), nil
}
