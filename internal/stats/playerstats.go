package stats

import (
	"fmt"
	"sort"

	"github.com/pinleague/pipeline/internal/model"
	"github.com/pinleague/pipeline/internal/storage"
)

// PercentileRank maps a raw score to a percentile estimate by linear
// interpolation between the two stored thresholds bracketing it. Thresholds
// must be sorted by percentile ascending. Below the lowest threshold the rank
// falls proportionally toward 0; above the highest it rises proportionally
// toward 100; both ends clamp. Equal adjacent thresholds (ties in the score
// population) resolve to the higher percentile.
func PercentileRank(thresholds []model.ScorePercentile, score float64) float64 {
	if len(thresholds) == 0 {
		return 0
	}

	lo := thresholds[0]
	if score <= float64(lo.Threshold) {
		if lo.Threshold <= 0 {
			return 0
		}
		r := float64(lo.Percentile) * score / float64(lo.Threshold)
		if r < 0 {
			return 0
		}
		return r
	}

	for i := 0; i < len(thresholds)-1; i++ {
		a, b := thresholds[i], thresholds[i+1]
		if score >= float64(b.Threshold) {
			continue
		}
		// a.Threshold <= score < b.Threshold, so the segment has width here.
		frac := (score - float64(a.Threshold)) / float64(b.Threshold-a.Threshold)
		return float64(a.Percentile) + frac*float64(b.Percentile-a.Percentile)
	}

	hi := thresholds[len(thresholds)-1]
	if score == float64(hi.Threshold) {
		return float64(hi.Percentile)
	}
	if hi.Threshold <= 0 {
		return 100
	}
	r := float64(hi.Percentile) + (100-float64(hi.Percentile))*(score-float64(hi.Threshold))/float64(hi.Threshold)
	if r > 100 {
		return 100
	}
	return r
}

// ComputePlayerMachineStats derives per (player, machine, venue) summaries for
// a season. Percentile ranks come from the season's stored thresholds for the
// same (machine, venue) group; when that group produced no thresholds (sample
// too small, or the percentile stage never ran) the rank fields stay nil, never
// a defaulted value.
func ComputePlayerMachineStats(scores []storage.SeasonScore, percentiles []model.ScorePercentile, season int) []model.PlayerMachineStat {
	thresholds := make(map[groupKey][]model.ScorePercentile)
	for _, p := range percentiles {
		k := groupKey{p.MachineKey, p.VenueKey}
		thresholds[k] = append(thresholds[k], p)
	}
	for k := range thresholds {
		sort.Slice(thresholds[k], func(i, j int) bool {
			return thresholds[k][i].Percentile < thresholds[k][j].Percentile
		})
	}

	type statKey struct {
		player  string
		machine string
		venue   string
	}
	groups := make(map[statKey][]int64)
	for _, s := range scores {
		k := statKey{s.PlayerKey, s.MachineKey, s.VenueKey}
		groups[k] = append(groups[k], s.Score)
	}

	var out []model.PlayerMachineStat
	for k, vals := range groups {
		sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
		n := len(vals)
		var total int64
		for _, v := range vals {
			total += v
		}
		med := medianInt64(vals)
		avg := float64(total) / float64(n)

		stat := model.PlayerMachineStat{
			PlayerKey:   k.player,
			MachineKey:  k.machine,
			VenueKey:    k.venue,
			Season:      season,
			GamesPlayed: n,
			TotalScore:  total,
			AvgScore:    avg,
			MedianScore: med,
			BestScore:   vals[n-1],
			WorstScore:  vals[0],
		}
		if th := thresholds[groupKey{k.machine, k.venue}]; len(th) > 0 {
			mp := PercentileRank(th, med)
			ap := PercentileRank(th, avg)
			stat.MedianPercentile = &mp
			stat.AvgPercentile = &ap
		}
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlayerKey != out[j].PlayerKey {
			return out[i].PlayerKey < out[j].PlayerKey
		}
		if out[i].MachineKey != out[j].MachineKey {
			return out[i].MachineKey < out[j].MachineKey
		}
		return out[i].VenueKey < out[j].VenueKey
	})
	return out
}

// PlayerMachine recomputes the season's PlayerMachineStat rows wholesale and
// returns the row count written. Must run after Percentiles for ranks to be
// populated; out of order it degrades to nil rank fields rather than failing.
func PlayerMachine(db *storage.DB, season int) (int, error) {
	scores, err := db.SeasonScores(season)
	if err != nil {
		return 0, fmt.Errorf("read season scores: %w", err)
	}
	percentiles, err := db.SeasonPercentiles(season)
	if err != nil {
		return 0, fmt.Errorf("read percentiles: %w", err)
	}
	rows := ComputePlayerMachineStats(scores, percentiles, season)
	if err := db.ReplacePlayerMachineStats(season, rows); err != nil {
		return 0, fmt.Errorf("replace player stats: %w", err)
	}
	return len(rows), nil
}

// medianInt64 returns the median of a pre-sorted (ascending) slice.
func medianInt64(sorted []int64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}
