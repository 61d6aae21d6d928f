package stats

import (
	"fmt"
	"sort"

	"github.com/pinleague/pipeline/internal/model"
	"github.com/pinleague/pipeline/internal/storage"
)

// ComputeTotals derives cross-season per-player totals from raw score rows.
// A single pass over scores: no derived tables are joined, so this branch has
// no ordering dependency on the percentile chain.
func ComputeTotals(rows []storage.PlayerScore) []model.PlayerTotals {
	type accum struct {
		name    string
		seasons map[int]bool
		matches map[string]bool
		games   int
		total   int64
		best    int64
	}
	accums := make(map[string]*accum)
	for _, r := range rows {
		acc := accums[r.PlayerKey]
		if acc == nil {
			acc = &accum{seasons: make(map[int]bool), matches: make(map[string]bool)}
			accums[r.PlayerKey] = acc
		}
		acc.name = r.PlayerName
		acc.seasons[r.Season] = true
		acc.matches[r.MatchKey] = true
		acc.games++
		acc.total += r.Score
		if r.Score > acc.best {
			acc.best = r.Score
		}
	}

	var out []model.PlayerTotals
	for key, acc := range accums {
		out = append(out, model.PlayerTotals{
			PlayerKey:     key,
			Name:          acc.name,
			SeasonsPlayed: len(acc.seasons),
			MatchesPlayed: len(acc.matches),
			GamesPlayed:   acc.games,
			TotalScore:    acc.total,
			AvgScore:      float64(acc.total) / float64(acc.games),
			BestScore:     acc.best,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerKey < out[j].PlayerKey })
	return out
}

// Totals recomputes the cross-season totals table wholesale and returns the
// row count written.
func Totals(db *storage.DB) (int, error) {
	rows, err := db.AllPlayerScores()
	if err != nil {
		return 0, fmt.Errorf("read player scores: %w", err)
	}
	totals := ComputeTotals(rows)
	if err := db.ReplacePlayerTotals(totals); err != nil {
		return 0, fmt.Errorf("replace totals: %w", err)
	}
	return len(totals), nil
}
