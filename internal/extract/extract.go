// Package extract validates raw match records into typed entities.
package extract

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pinleague/pipeline/internal/model"
	"github.com/pinleague/pipeline/internal/normalize"
)

// maxPlausibleScore is the warn-only threshold for data-entry outliers.
// Genuine billion-point games exist, so high values are kept and queryable.
const maxPlausibleScore = int64(10_000_000_000)

// Rating snapshots outside (0, ratingCeiling] are dropped, not fatal.
const ratingCeiling = 3000.0

// Severity classifies a Problem: errors reject the match, warnings do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Problem is one validation finding, tagged with the match it came from so the
// run report can surface it.
type Problem struct {
	MatchKey string
	Severity Severity
	Message  string
}

func (p Problem) String() string {
	return fmt.Sprintf("[%s] %s: %s", p.Severity, p.MatchKey, p.Message)
}

// Extractor turns raw match records into ExtractedMatch entities using an
// injected alias snapshot.
type Extractor struct {
	norm *normalize.Normalizer
	log  *logrus.Logger
}

func New(norm *normalize.Normalizer, log *logrus.Logger) *Extractor {
	return &Extractor{norm: norm, log: log}
}

// playerContext is the denormalization source for one lineup player.
type playerContext struct {
	key     string
	teamKey string
	isHome  bool
	isSub   bool
	rating  *float64
}

// Match validates one raw record. A structural error (missing required fields,
// wrong round count) rejects the whole match: the first return is nil and the
// problems contain at least one error. Per-game anomalies skip only that game
// and come back as warnings alongside the extracted entities.
func (e *Extractor) Match(rec *RawMatch) (*model.ExtractedMatch, []Problem) {
	var problems []Problem
	matchKey := rec.Key
	if matchKey == "" {
		matchKey = fmt.Sprintf("s%dw%d-%s-%s", rec.Season, rec.Week,
			strings.ToLower(rec.Home.TeamKey), strings.ToLower(rec.Away.TeamKey))
	}

	reject := func(msg string) (*model.ExtractedMatch, []Problem) {
		problems = append(problems, Problem{MatchKey: matchKey, Severity: SeverityError, Message: msg})
		return nil, problems
	}
	warn := func(format string, args ...interface{}) {
		p := Problem{MatchKey: matchKey, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)}
		problems = append(problems, p)
		e.log.WithField("match", matchKey).Warn(p.Message)
	}

	// Structural checks.
	if rec.Season <= 0 {
		return reject("missing or invalid season")
	}
	venueKey := rec.Venue.Key
	if venueKey == "" {
		venueKey = slug(rec.Venue.Name)
	}
	if venueKey == "" {
		return reject("missing venue")
	}
	if rec.Home.TeamKey == "" || rec.Away.TeamKey == "" {
		return reject("missing team key")
	}

	state := model.MatchState(rec.State)
	if state != model.MatchScheduled && state != model.MatchComplete {
		return reject(fmt.Sprintf("unknown match state %q", rec.State))
	}
	if state == model.MatchComplete && len(rec.Rounds) != 4 {
		return reject(fmt.Sprintf("expected 4 rounds, got %d", len(rec.Rounds)))
	}

	// Lineup lookup from both teams, built before the round scan so scores can
	// be denormalized with team/home/rating context inline.
	players := make(map[string]playerContext)
	var playerRows []model.Player
	addLineup := func(lineup RawLineup, isHome bool) {
		for _, rp := range lineup.Players {
			key := rp.Key
			if key == "" {
				key = slug(rp.Name)
			}
			if key == "" {
				warn("lineup player with no name or key on team %s", lineup.TeamKey)
				continue
			}
			rating := rp.Rating
			if rating != nil && (*rating <= 0 || *rating > ratingCeiling) {
				warn("rating %.0f for player %s outside (0, %.0f], dropped", *rating, key, ratingCeiling)
				rating = nil
			}
			ctx := playerContext{
				key:     key,
				teamKey: lineup.TeamKey,
				isHome:  isHome,
				isSub:   rp.Sub,
				rating:  rating,
			}
			players[rp.Name] = ctx
			players[key] = ctx
			playerRows = append(playerRows, model.Player{
				Key:             key,
				Name:            rp.Name,
				CurrentRating:   rating,
				FirstSeenSeason: rec.Season,
				LastSeenSeason:  rec.Season,
			})
		}
	}
	addLineup(rec.Home, true)
	addLineup(rec.Away, false)

	// Canonicalize the per-match machine lineup.
	machineNames := make(map[string]string) // key → display text
	var available []string
	seenAvail := make(map[string]bool)
	for _, m := range rec.Machines {
		key, known := e.norm.Resolve(m)
		if key == "" {
			continue
		}
		if !known {
			warn("unmapped machine %q, using key %q", m, key)
		}
		if !seenAvail[key] {
			seenAvail[key] = true
			available = append(available, key)
			machineNames[key] = strings.TrimSpace(m)
		}
	}

	em := &model.ExtractedMatch{
		Match: model.Match{
			Key:               matchKey,
			Season:            rec.Season,
			Week:              rec.Week,
			VenueKey:          venueKey,
			HomeTeamKey:       rec.Home.TeamKey,
			AwayTeamKey:       rec.Away.TeamKey,
			State:             state,
			HomePoints:        rec.HomePoints,
			AwayPoints:        rec.AwayPoints,
			AvailableMachines: available,
		},
		Venue: model.Venue{Key: venueKey, Name: rec.Venue.Name},
		Teams: []model.Team{
			{Key: rec.Home.TeamKey, Name: rec.Home.TeamName, Season: rec.Season, VenueKey: venueKey},
			{Key: rec.Away.TeamKey, Name: rec.Away.TeamName, Season: rec.Season},
		},
		Players: playerRows,
	}

	seenRound := make(map[int]bool)
	for _, round := range rec.Rounds {
		rn := round.Number
		if rn < 1 || rn > 4 {
			return reject(fmt.Sprintf("round number %d out of range", rn))
		}
		if seenRound[rn] {
			return reject(fmt.Sprintf("duplicate round %d", rn))
		}
		seenRound[rn] = true

		for gi, rg := range round.Games {
			gameNum := rg.Number
			if gameNum == 0 {
				gameNum = gi + 1
			}
			machineKey, known := e.norm.Resolve(rg.Machine)
			if machineKey == "" {
				warn("round %d game %d has no machine, skipped", rn, gameNum)
				continue
			}
			if !known {
				warn("unmapped machine %q, using key %q", rg.Machine, machineKey)
			}
			machineNames[machineKey] = strings.TrimSpace(rg.Machine)

			game := model.Game{
				MatchKey:   matchKey,
				Round:      rn,
				Number:     gameNum,
				MachineKey: machineKey,
				Done:       rg.Done,
			}
			if !rg.Done {
				em.Games = append(em.Games, game)
				continue
			}

			scores, ok := e.gameScores(&game, rg, players, warn)
			if !ok {
				continue // anomaly: skip only this game
			}
			em.Games = append(em.Games, game)
			em.Scores = append(em.Scores, scores...)
		}
	}

	for key, name := range machineNames {
		if name == "" {
			name = key
		}
		em.Machines = append(em.Machines, model.Machine{Key: key, DisplayName: name})
	}

	return em, problems
}

// gameScores validates the positional scores of one done game. Any anomaly
// (player-count mismatch, unknown player, missing or negative score) skips the
// whole game; the match otherwise loads.
func (e *Extractor) gameScores(game *model.Game, rg RawGame,
	players map[string]playerContext, warn func(string, ...interface{})) ([]model.Score, bool) {

	expected := model.ExpectedPlayers(game.Round)
	var out []model.Score
	seenPlayer := make(map[string]bool)
	filled := 0
	for pos := 1; pos <= 4; pos++ {
		name, score := rg.Position(pos)
		if name == "" {
			continue
		}
		filled++
		ctx, ok := players[name]
		if !ok {
			warn("round %d game %d: player %q not in either lineup, game skipped", game.Round, game.Number, name)
			return nil, false
		}
		if score == nil {
			warn("round %d game %d: done game missing score for %s, game skipped", game.Round, game.Number, name)
			return nil, false
		}
		if *score < 0 {
			warn("round %d game %d: negative score %d for %s, game skipped", game.Round, game.Number, *score, name)
			return nil, false
		}
		if *score > maxPlausibleScore {
			warn("round %d game %d: implausibly large score %d for %s, kept", game.Round, game.Number, *score, name)
		}
		if seenPlayer[ctx.key] {
			warn("round %d game %d: player %s appears twice, game skipped", game.Round, game.Number, ctx.key)
			return nil, false
		}
		seenPlayer[ctx.key] = true
		out = append(out, model.Score{
			MatchKey:       game.MatchKey,
			Round:          game.Round,
			GameNumber:     game.Number,
			Position:       pos,
			PlayerKey:      ctx.key,
			Score:          *score,
			TeamKey:        ctx.teamKey,
			IsHome:         ctx.isHome,
			IsSub:          ctx.isSub,
			RatingSnapshot: ctx.rating,
		})
	}
	if filled != expected {
		warn("round %d game %d: expected %d players, got %d, game skipped", game.Round, game.Number, expected, filled)
		return nil, false
	}
	return out, true
}

// slug derives a stable key from display text: lowercased, spaces collapsed to
// hyphens, everything else non-alphanumeric dropped.
func slug(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
