package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pinleague/pipeline/internal/model"
)

// SeasonScore is one score row joined with its game and match context, the
// working unit for every statistics pass.
type SeasonScore struct {
	MatchKey   string
	Round      int
	GameNumber int
	MachineKey string
	VenueKey   string
	PlayerKey  string
	TeamKey    string
	IsHome     bool
	Score      int64
}

// SeasonScores returns all scores of done games for a season.
func (db *DB) SeasonScores(season int) ([]SeasonScore, error) {
	rows, err := db.conn.Query(`
		SELECT s.match_key, s.round, s.game_number, g.machine_key, m.venue_key,
		       s.player_key, s.team_key, s.is_home, s.score
		FROM scores s
		JOIN games g ON g.match_key = s.match_key AND g.round = s.round AND g.game_number = s.game_number
		JOIN matches m ON m.key = s.match_key
		WHERE m.season = ? AND g.done = 1
		ORDER BY s.match_key, s.round, s.game_number, s.position`, season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SeasonScore
	for rows.Next() {
		var s SeasonScore
		var isHome int
		if err := rows.Scan(&s.MatchKey, &s.Round, &s.GameNumber, &s.MachineKey,
			&s.VenueKey, &s.PlayerKey, &s.TeamKey, &isHome, &s.Score); err != nil {
			return nil, err
		}
		s.IsHome = isHome != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// SeasonMatches returns all matches for a season with their per-match machine
// lineups decoded.
func (db *DB) SeasonMatches(season int) ([]model.Match, error) {
	rows, err := db.conn.Query(`
		SELECT key, season, week, venue_key, home_team_key, away_team_key,
		       state, home_points, away_points, machines
		FROM matches WHERE season = ? ORDER BY week, key`, season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		var m model.Match
		var state, machinesJSON string
		var homePts, awayPts sql.NullFloat64
		if err := rows.Scan(&m.Key, &m.Season, &m.Week, &m.VenueKey, &m.HomeTeamKey,
			&m.AwayTeamKey, &state, &homePts, &awayPts, &machinesJSON); err != nil {
			return nil, err
		}
		m.State = model.MatchState(state)
		if homePts.Valid {
			v := homePts.Float64
			m.HomePoints = &v
		}
		if awayPts.Valid {
			v := awayPts.Float64
			m.AwayPoints = &v
		}
		if err := json.Unmarshal([]byte(machinesJSON), &m.AvailableMachines); err != nil {
			return nil, fmt.Errorf("decode machines for %s: %w", m.Key, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SeasonGames returns all game rows for a season.
func (db *DB) SeasonGames(season int) ([]model.Game, error) {
	rows, err := db.conn.Query(`
		SELECT g.match_key, g.round, g.game_number, g.machine_key, g.done
		FROM games g
		JOIN matches m ON m.key = g.match_key
		WHERE m.season = ?
		ORDER BY g.match_key, g.round, g.game_number`, season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Game
	for rows.Next() {
		var g model.Game
		var done int
		if err := rows.Scan(&g.MatchKey, &g.Round, &g.Number, &g.MachineKey, &done); err != nil {
			return nil, err
		}
		g.Done = done != 0
		out = append(out, g)
	}
	return out, rows.Err()
}

// PlayerScore is one score row with player and season context, used by the
// cross-season totals pass.
type PlayerScore struct {
	PlayerKey  string
	PlayerName string
	Season     int
	MatchKey   string
	Score      int64
}

// AllPlayerScores returns every score of a done game across all seasons.
func (db *DB) AllPlayerScores() ([]PlayerScore, error) {
	rows, err := db.conn.Query(`
		SELECT s.player_key, p.name, m.season, s.match_key, s.score
		FROM scores s
		JOIN players p ON p.key = s.player_key
		JOIN games g ON g.match_key = s.match_key AND g.round = s.round AND g.game_number = s.game_number
		JOIN matches m ON m.key = s.match_key
		WHERE g.done = 1
		ORDER BY s.player_key, m.season, s.match_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerScore
	for rows.Next() {
		var s PlayerScore
		if err := rows.Scan(&s.PlayerKey, &s.PlayerName, &s.Season, &s.MatchKey, &s.Score); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SeasonPercentiles returns stored percentile rows for a season ordered by
// group then percentile ascending, the order the interpolation expects.
func (db *DB) SeasonPercentiles(season int) ([]model.ScorePercentile, error) {
	rows, err := db.conn.Query(`
		SELECT machine_key, venue_key, season, percentile, threshold, sample_size
		FROM score_percentiles WHERE season = ?
		ORDER BY machine_key, venue_key, percentile`, season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScorePercentile
	for rows.Next() {
		var p model.ScorePercentile
		if err := rows.Scan(&p.MachineKey, &p.VenueKey, &p.Season, &p.Percentile,
			&p.Threshold, &p.SampleSize); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SeasonPlayerMachineStats returns stored player-machine rows for a season,
// optionally filtered to one machine.
func (db *DB) SeasonPlayerMachineStats(season int, machineKey string) ([]model.PlayerMachineStat, error) {
	q := `
		SELECT player_key, machine_key, venue_key, season, games_played, total_score,
		       avg_score, median_score, best_score, worst_score, median_percentile, avg_percentile
		FROM player_machine_stats WHERE season = ?`
	args := []interface{}{season}
	if machineKey != "" {
		q += " AND machine_key = ?"
		args = append(args, machineKey)
	}
	q += " ORDER BY machine_key, venue_key, avg_score DESC"

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PlayerMachineStat
	for rows.Next() {
		var s model.PlayerMachineStat
		var medPct, avgPct sql.NullFloat64
		if err := rows.Scan(&s.PlayerKey, &s.MachineKey, &s.VenueKey, &s.Season,
			&s.GamesPlayed, &s.TotalScore, &s.AvgScore, &s.MedianScore,
			&s.BestScore, &s.WorstScore, &medPct, &avgPct); err != nil {
			return nil, err
		}
		if medPct.Valid {
			v := medPct.Float64
			s.MedianPercentile = &v
		}
		if avgPct.Valid {
			v := avgPct.Float64
			s.AvgPercentile = &v
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SeasonTeamPicks returns stored pick rows for a season ranked by Wilson lower
// bound descending.
func (db *DB) SeasonTeamPicks(season int) ([]model.TeamMachinePick, error) {
	rows, err := db.conn.Query(`
		SELECT team_key, machine_key, season, is_home, round_type, times_picked,
		       total_opportunities, wilson_lower, wins, avg_score
		FROM team_machine_picks WHERE season = ?
		ORDER BY team_key, wilson_lower DESC, machine_key`, season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TeamMachinePick
	for rows.Next() {
		var p model.TeamMachinePick
		var isHome int
		var roundType string
		if err := rows.Scan(&p.TeamKey, &p.MachineKey, &p.Season, &isHome, &roundType,
			&p.TimesPicked, &p.TotalOpportunities, &p.WilsonLower, &p.Wins, &p.AvgScore); err != nil {
			return nil, err
		}
		p.IsHome = isHome != 0
		p.RoundType = model.RoundType(roundType)
		out = append(out, p)
	}
	return out, rows.Err()
}

// AllPlayerTotals returns stored cross-season totals ordered by games played.
func (db *DB) AllPlayerTotals() ([]model.PlayerTotals, error) {
	rows, err := db.conn.Query(`
		SELECT player_key, name, seasons_played, matches_played, games_played,
		       total_score, avg_score, best_score
		FROM player_totals ORDER BY games_played DESC, player_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PlayerTotals
	for rows.Next() {
		var t model.PlayerTotals
		if err := rows.Scan(&t.PlayerKey, &t.Name, &t.SeasonsPlayed, &t.MatchesPlayed,
			&t.GamesPlayed, &t.TotalScore, &t.AvgScore, &t.BestScore); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MatchSummaries returns lightweight match records for the list command.
func (db *DB) MatchSummaries(season int) ([]model.MatchSummary, error) {
	rows, err := db.conn.Query(`
		SELECT m.key, m.season, m.week, m.venue_key, m.home_team_key, m.away_team_key,
		       m.state, COUNT(g.match_key)
		FROM matches m
		LEFT JOIN games g ON g.match_key = m.key
		WHERE m.season = ?
		GROUP BY m.key
		ORDER BY m.week, m.key`, season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MatchSummary
	for rows.Next() {
		var s model.MatchSummary
		var state string
		if err := rows.Scan(&s.Key, &s.Season, &s.Week, &s.VenueKey, &s.HomeTeamKey,
			&s.AwayTeamKey, &state, &s.GameCount); err != nil {
			return nil, err
		}
		s.State = model.MatchState(state)
		out = append(out, s)
	}
	return out, rows.Err()
}

// SeasonPlayers returns every player who appears in a season's lineups.
func (db *DB) SeasonPlayers(season int) ([]model.Player, error) {
	rows, err := db.conn.Query(`
		SELECT key, name, current_rating, first_seen_season, last_seen_season
		FROM players
		WHERE first_seen_season <= ? AND last_seen_season >= ?
		ORDER BY key`, season, season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Player
	for rows.Next() {
		var p model.Player
		var rating sql.NullFloat64
		if err := rows.Scan(&p.Key, &p.Name, &rating, &p.FirstSeenSeason, &p.LastSeenSeason); err != nil {
			return nil, err
		}
		if rating.Valid {
			v := rating.Float64
			p.CurrentRating = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePlayerRating overwrites a player's current rating snapshot.
func (db *DB) UpdatePlayerRating(playerKey string, rating float64) error {
	_, err := db.conn.Exec(`UPDATE players SET current_rating = ? WHERE key = ?`, rating, playerKey)
	return err
}

// CountRows returns the row count of one table, for idempotence checks and the
// run report.
func (db *DB) CountRows(table string) (int, error) {
	switch table {
	case "machines", "machine_aliases", "venues", "teams", "players", "matches",
		"games", "scores", "score_percentiles", "player_machine_stats",
		"team_machine_picks", "player_totals":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	err := db.conn.QueryRow("SELECT COUNT(1) FROM " + table).Scan(&n)
	return n, err
}
