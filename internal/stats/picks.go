package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/pinleague/pipeline/internal/model"
	"github.com/pinleague/pipeline/internal/storage"
)

// pickKey identifies one (team, machine, is_home, round_type) accumulator
// within a season.
type pickKey struct {
	team      string
	machine   string
	isHome    bool
	roundType model.RoundType
}

type pickAccum struct {
	picked        int
	opportunities int
	wins          int
	scoreSum      int64
	scoreCount    int
}

// ComputeTeamPicks derives machine-selection tendencies from completed matches.
// For each round a team controlled, every machine in that match's own
// available-machines snapshot is one opportunity, and each machine the team
// actually put up is one pick. A machine played in a controlled round but
// missing from the snapshot still counts as both (it was de facto available),
// so picks never exceed opportunities.
func ComputeTeamPicks(matches []model.Match, games []model.Game, scores []storage.SeasonScore, season int) []model.TeamMachinePick {
	gamesByMatchRound := make(map[string]map[int][]model.Game)
	for _, g := range games {
		if gamesByMatchRound[g.MatchKey] == nil {
			gamesByMatchRound[g.MatchKey] = make(map[int][]model.Game)
		}
		gamesByMatchRound[g.MatchKey][g.Round] = append(gamesByMatchRound[g.MatchKey][g.Round], g)
	}

	type gameRef struct {
		match string
		round int
		num   int
	}
	scoresByGame := make(map[gameRef][]storage.SeasonScore)
	for _, s := range scores {
		k := gameRef{s.MatchKey, s.Round, s.GameNumber}
		scoresByGame[k] = append(scoresByGame[k], s)
	}

	accums := make(map[pickKey]*pickAccum)
	get := func(k pickKey) *pickAccum {
		if accums[k] == nil {
			accums[k] = &pickAccum{}
		}
		return accums[k]
	}

	for _, m := range matches {
		if m.State != model.MatchComplete {
			continue
		}
		available := make(map[string]bool, len(m.AvailableMachines))
		for _, mk := range m.AvailableMachines {
			available[mk] = true
		}

		for round := 1; round <= 4; round++ {
			isHome := model.HomePicksRound(round)
			team := m.AwayTeamKey
			if isHome {
				team = m.HomeTeamKey
			}
			rt := model.RoundTypeOf(round)

			pickedMachines := make(map[string]bool)
			for _, g := range gamesByMatchRound[m.Key][round] {
				pickedMachines[g.MachineKey] = true
			}

			// One opportunity per available machine per controlled round.
			for mk := range available {
				get(pickKey{team, mk, isHome, rt}).opportunities++
			}
			for mk := range pickedMachines {
				acc := get(pickKey{team, mk, isHome, rt})
				acc.picked++
				if !available[mk] {
					acc.opportunities++
				}
			}

			// Descriptive win/score accounting over the picked games.
			for _, g := range gamesByMatchRound[m.Key][round] {
				rows := scoresByGame[gameRef{m.Key, round, g.Number}]
				if len(rows) == 0 {
					continue
				}
				var teamSum, oppSum int64
				acc := get(pickKey{team, g.MachineKey, isHome, rt})
				for _, s := range rows {
					if s.TeamKey == team {
						teamSum += s.Score
						acc.scoreSum += s.Score
						acc.scoreCount++
					} else {
						oppSum += s.Score
					}
				}
				if teamSum > oppSum {
					acc.wins++
				}
			}
		}
	}

	var out []model.TeamMachinePick
	for k, acc := range accums {
		avg := 0.0
		if acc.scoreCount > 0 {
			avg = float64(acc.scoreSum) / float64(acc.scoreCount)
		}
		out = append(out, model.TeamMachinePick{
			TeamKey:            k.team,
			MachineKey:         k.machine,
			Season:             season,
			IsHome:             k.isHome,
			RoundType:          k.roundType,
			TimesPicked:        acc.picked,
			TotalOpportunities: acc.opportunities,
			WilsonLower:        WilsonLower(acc.picked, acc.opportunities),
			Wins:               acc.wins,
			AvgScore:           avg,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TeamKey != b.TeamKey {
			return a.TeamKey < b.TeamKey
		}
		if a.MachineKey != b.MachineKey {
			return a.MachineKey < b.MachineKey
		}
		if a.IsHome != b.IsHome {
			return a.IsHome
		}
		return a.RoundType < b.RoundType
	})
	return out
}

// WilsonLower computes the lower bound of the 95% Wilson score interval for
// the proportion picked/n. This is the ranking field: a raw 1/1 = 100% must
// not outrank a well-supported 7/10, and the Wilson bound penalizes small
// samples appropriately.
func WilsonLower(picked, n int) float64 {
	if n == 0 {
		return 0
	}
	z := 1.96
	p := float64(picked) / float64(n)
	nf := float64(n)
	denom := 1 + z*z/nf
	center := (p + z*z/(2*nf)) / denom
	half := z * math.Sqrt(p*(1-p)/nf+z*z/(4*nf*nf)) / denom
	return math.Max(0, center-half)
}

// TeamPicks recomputes the season's TeamMachinePick rows wholesale and returns
// the row count written. Independent of the percentile chain: it reads only
// loader output.
func TeamPicks(db *storage.DB, season int) (int, error) {
	matches, err := db.SeasonMatches(season)
	if err != nil {
		return 0, fmt.Errorf("read season matches: %w", err)
	}
	games, err := db.SeasonGames(season)
	if err != nil {
		return 0, fmt.Errorf("read season games: %w", err)
	}
	scores, err := db.SeasonScores(season)
	if err != nil {
		return 0, fmt.Errorf("read season scores: %w", err)
	}
	rows := ComputeTeamPicks(matches, games, scores, season)
	if err := db.ReplaceTeamMachinePicks(season, rows); err != nil {
		return 0, fmt.Errorf("replace team picks: %w", err)
	}
	return len(rows), nil
}
