package storage

import (
	"fmt"

	"github.com/pinleague/pipeline/internal/model"
)

// Derived tables are caches over the source-of-truth tables. Each Replace*
// clears the season's rows and rewrites them inside one transaction so readers
// never observe a mixed old/new state.

// ReplaceScorePercentiles swaps the season's percentile rows.
func (db *DB) ReplaceScorePercentiles(season int, rows []model.ScorePercentile) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM score_percentiles WHERE season = ?`, season); err != nil {
		return fmt.Errorf("clear score_percentiles: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO score_percentiles(machine_key, venue_key, season, percentile, threshold, sample_size)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range rows {
		if _, err := stmt.Exec(p.MachineKey, p.VenueKey, p.Season, p.Percentile, p.Threshold, p.SampleSize); err != nil {
			return fmt.Errorf("insert score_percentiles for %s/%s: %w", p.MachineKey, p.VenueKey, err)
		}
	}
	return tx.Commit()
}

// ReplacePlayerMachineStats swaps the season's player-machine rows.
func (db *DB) ReplacePlayerMachineStats(season int, rows []model.PlayerMachineStat) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM player_machine_stats WHERE season = ?`, season); err != nil {
		return fmt.Errorf("clear player_machine_stats: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO player_machine_stats(player_key, machine_key, venue_key, season,
			games_played, total_score, avg_score, median_score, best_score, worst_score,
			median_percentile, avg_percentile)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, s := range rows {
		_, err := stmt.Exec(s.PlayerKey, s.MachineKey, s.VenueKey, s.Season,
			s.GamesPlayed, s.TotalScore, s.AvgScore, s.MedianScore, s.BestScore, s.WorstScore,
			nullFloat(s.MedianPercentile), nullFloat(s.AvgPercentile))
		if err != nil {
			return fmt.Errorf("insert player_machine_stats for %s/%s: %w", s.PlayerKey, s.MachineKey, err)
		}
	}
	return tx.Commit()
}

// ReplaceTeamMachinePicks swaps the season's pick rows.
func (db *DB) ReplaceTeamMachinePicks(season int, rows []model.TeamMachinePick) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM team_machine_picks WHERE season = ?`, season); err != nil {
		return fmt.Errorf("clear team_machine_picks: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO team_machine_picks(team_key, machine_key, season, is_home, round_type,
			times_picked, total_opportunities, wilson_lower, wins, avg_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range rows {
		_, err := stmt.Exec(p.TeamKey, p.MachineKey, p.Season, boolInt(p.IsHome), string(p.RoundType),
			p.TimesPicked, p.TotalOpportunities, p.WilsonLower, p.Wins, p.AvgScore)
		if err != nil {
			return fmt.Errorf("insert team_machine_picks for %s/%s: %w", p.TeamKey, p.MachineKey, err)
		}
	}
	return tx.Commit()
}

// ReplacePlayerTotals swaps the whole cross-season totals table; totals are not
// season-scoped, so the rewrite covers every row.
func (db *DB) ReplacePlayerTotals(rows []model.PlayerTotals) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM player_totals`); err != nil {
		return fmt.Errorf("clear player_totals: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO player_totals(player_key, name, seasons_played, matches_played,
			games_played, total_score, avg_score, best_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, t := range rows {
		_, err := stmt.Exec(t.PlayerKey, t.Name, t.SeasonsPlayed, t.MatchesPlayed,
			t.GamesPlayed, t.TotalScore, t.AvgScore, t.BestScore)
		if err != nil {
			return fmt.Errorf("insert player_totals for %s: %w", t.PlayerKey, err)
		}
	}
	return tx.Commit()
}
