package storage

import (
	"encoding/json"
	"fmt"

	"github.com/pinleague/pipeline/internal/model"
)

// Counts reports rows written per entity type for the run report.
type Counts struct {
	Machines int
	Venues   int
	Teams    int
	Players  int
	Matches  int
	Games    int
	Scores   int
}

// UpsertReference loads the curated machine/alias table. Unlike match-extracted
// machines, reference rows are authoritative and overwrite metadata.
func (db *DB) UpsertReference(machines []model.Machine, aliases []model.MachineAlias) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, m := range machines {
		_, err := tx.Exec(`
			INSERT INTO machines(key, display_name, manufacturer, year)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				display_name = excluded.display_name,
				manufacturer = excluded.manufacturer,
				year         = excluded.year`,
			m.Key, m.DisplayName, nullStr(m.Manufacturer), nullInt(m.Year))
		if err != nil {
			return fmt.Errorf("upsert machine %s: %w", m.Key, err)
		}
	}
	for _, a := range aliases {
		_, err := tx.Exec(`
			INSERT INTO machine_aliases(alias, machine_key) VALUES (?, ?)
			ON CONFLICT(alias) DO UPDATE SET machine_key = excluded.machine_key`,
			a.Alias, a.MachineKey)
		if err != nil {
			return fmt.Errorf("upsert alias %q: %w", a.Alias, err)
		}
	}
	return tx.Commit()
}

// LoadMatches persists a batch of extracted matches in one transaction, in
// foreign-key dependency order: venues/machines, teams, players (deduplicated
// across the batch first), matches, games, scores. Re-running with identical
// or superset input produces the same end state.
func (db *DB) LoadMatches(batch []*model.ExtractedMatch) (Counts, error) {
	var counts Counts
	tx, err := db.conn.Begin()
	if err != nil {
		return counts, err
	}
	defer tx.Rollback()

	// Venues and machines have no dependencies.
	seenVenue := make(map[string]bool)
	seenMachine := make(map[string]bool)
	for _, em := range batch {
		if !seenVenue[em.Venue.Key] {
			seenVenue[em.Venue.Key] = true
			_, err := tx.Exec(`
				INSERT INTO venues(key, name) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET name = excluded.name
					WHERE excluded.name <> ''`,
				em.Venue.Key, em.Venue.Name)
			if err != nil {
				return counts, fmt.Errorf("upsert venue %s: %w", em.Venue.Key, err)
			}
			counts.Venues++
		}
		for _, m := range em.Machines {
			if seenMachine[m.Key] {
				continue
			}
			seenMachine[m.Key] = true
			// Match-extracted machine rows never clobber curated metadata.
			_, err := tx.Exec(`
				INSERT INTO machines(key, display_name) VALUES (?, ?)
				ON CONFLICT(key) DO NOTHING`,
				m.Key, m.DisplayName)
			if err != nil {
				return counts, fmt.Errorf("insert machine %s: %w", m.Key, err)
			}
			counts.Machines++
		}
	}

	// Teams depend on venues.
	type teamKey struct {
		key    string
		season int
	}
	seenTeam := make(map[teamKey]bool)
	for _, em := range batch {
		for _, t := range em.Teams {
			tk := teamKey{t.Key, t.Season}
			if seenTeam[tk] {
				continue
			}
			seenTeam[tk] = true
			_, err := tx.Exec(`
				INSERT INTO teams(key, season, name, venue_key) VALUES (?, ?, ?, ?)
				ON CONFLICT(key, season) DO UPDATE SET
					name      = CASE WHEN excluded.name <> '' THEN excluded.name ELSE teams.name END,
					venue_key = COALESCE(excluded.venue_key, teams.venue_key)`,
				t.Key, t.Season, t.Name, nullStr(t.VenueKey))
			if err != nil {
				return counts, fmt.Errorf("upsert team %s/%d: %w", t.Key, t.Season, err)
			}
			counts.Teams++
		}
	}

	// Players are deduplicated across the whole batch before loading so the
	// season bounds widen once per player.
	merged := make(map[string]model.Player)
	var order []string
	for _, em := range batch {
		for _, p := range em.Players {
			prev, ok := merged[p.Key]
			if !ok {
				merged[p.Key] = p
				order = append(order, p.Key)
				continue
			}
			if p.FirstSeenSeason < prev.FirstSeenSeason {
				prev.FirstSeenSeason = p.FirstSeenSeason
			}
			if p.LastSeenSeason > prev.LastSeenSeason {
				prev.LastSeenSeason = p.LastSeenSeason
				prev.Name = p.Name
				if p.CurrentRating != nil {
					prev.CurrentRating = p.CurrentRating
				}
			}
			merged[p.Key] = prev
		}
	}
	playerStmt, err := tx.Prepare(`
		INSERT INTO players(key, name, current_rating, first_seen_season, last_seen_season)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			name              = excluded.name,
			current_rating    = COALESCE(excluded.current_rating, players.current_rating),
			first_seen_season = MIN(players.first_seen_season, excluded.first_seen_season),
			last_seen_season  = MAX(players.last_seen_season, excluded.last_seen_season)`)
	if err != nil {
		return counts, err
	}
	defer playerStmt.Close()
	for _, key := range order {
		p := merged[key]
		if _, err := playerStmt.Exec(p.Key, p.Name, nullFloat(p.CurrentRating), p.FirstSeenSeason, p.LastSeenSeason); err != nil {
			return counts, fmt.Errorf("upsert player %s: %w", p.Key, err)
		}
		counts.Players++
	}

	// Matches depend on venues and teams.
	for _, em := range batch {
		m := em.Match
		machinesJSON, err := json.Marshal(m.AvailableMachines)
		if err != nil {
			return counts, fmt.Errorf("encode machines for %s: %w", m.Key, err)
		}
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO matches(key, season, week, venue_key, home_team_key,
				away_team_key, state, home_points, away_points, machines)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.Key, m.Season, m.Week, m.VenueKey, m.HomeTeamKey, m.AwayTeamKey,
			string(m.State), nullFloat(m.HomePoints), nullFloat(m.AwayPoints), string(machinesJSON))
		if err != nil {
			return counts, fmt.Errorf("upsert match %s: %w", m.Key, err)
		}
		counts.Matches++
	}

	// Games depend on matches and machines.
	gameStmt, err := tx.Prepare(`
		INSERT INTO games(match_key, round, game_number, machine_key, done)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(match_key, round, game_number) DO UPDATE SET
			machine_key = excluded.machine_key,
			done        = excluded.done`)
	if err != nil {
		return counts, err
	}
	defer gameStmt.Close()
	for _, em := range batch {
		for _, g := range em.Games {
			if _, err := gameStmt.Exec(g.MatchKey, g.Round, g.Number, g.MachineKey, boolInt(g.Done)); err != nil {
				return counts, fmt.Errorf("upsert game %s r%d g%d: %w", g.MatchKey, g.Round, g.Number, err)
			}
			counts.Games++
		}
	}

	// Scores depend on games and players. OR REPLACE resolves both uniqueness
	// constraints: one score per (game, position) and one per (game, player).
	scoreStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO scores(match_key, round, game_number, position,
			player_key, score, team_key, is_home, is_sub, rating)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return counts, err
	}
	defer scoreStmt.Close()
	for _, em := range batch {
		for _, s := range em.Scores {
			_, err := scoreStmt.Exec(s.MatchKey, s.Round, s.GameNumber, s.Position,
				s.PlayerKey, s.Score, s.TeamKey, boolInt(s.IsHome), boolInt(s.IsSub),
				nullFloat(s.RatingSnapshot))
			if err != nil {
				return counts, fmt.Errorf("upsert score %s r%d g%d p%d: %w", s.MatchKey, s.Round, s.GameNumber, s.Position, err)
			}
			counts.Scores++
		}
	}

	return counts, tx.Commit()
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(i int) interface{} {
	if i == 0 {
		return nil
	}
	return i
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
