package storage

import (
	"testing"

	"github.com/pinleague/pipeline/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ratingOf(v float64) *float64 { return &v }

// testMatch builds a minimal complete match: one done singles game with two
// scores.
func testMatch(key string, season int) *model.ExtractedMatch {
	return &model.ExtractedMatch{
		Match: model.Match{
			Key: key, Season: season, Week: 1,
			VenueKey: "pins", HomeTeamKey: "TIL", AwayTeamKey: "CRU",
			State:             model.MatchComplete,
			AvailableMachines: []string{"medieval-madness", "twilight-zone"},
		},
		Venue: model.Venue{Key: "pins", Name: "Pins Tavern"},
		Teams: []model.Team{
			{Key: "TIL", Name: "Tilt Happens", Season: season, VenueKey: "pins"},
			{Key: "CRU", Name: "Crude Drains", Season: season},
		},
		Players: []model.Player{
			{Key: "alice", Name: "Alice", CurrentRating: ratingOf(1700), FirstSeenSeason: season, LastSeenSeason: season},
			{Key: "carol", Name: "Carol", FirstSeenSeason: season, LastSeenSeason: season},
		},
		Machines: []model.Machine{
			{Key: "medieval-madness", DisplayName: "MM"},
			{Key: "twilight-zone", DisplayName: "TZ"},
		},
		Games: []model.Game{
			{MatchKey: key, Round: 2, Number: 1, MachineKey: "medieval-madness", Done: true},
		},
		Scores: []model.Score{
			{MatchKey: key, Round: 2, GameNumber: 1, Position: 1, PlayerKey: "alice",
				Score: 12_000_000, TeamKey: "TIL", IsHome: true, RatingSnapshot: ratingOf(1700)},
			{MatchKey: key, Round: 2, GameNumber: 1, Position: 2, PlayerKey: "carol",
				Score: 8_000_000, TeamKey: "CRU"},
		},
	}
}

func tableCounts(t *testing.T, db *DB) map[string]int {
	t.Helper()
	out := make(map[string]int)
	for _, table := range []string{"venues", "machines", "teams", "players", "matches", "games", "scores"} {
		n, err := db.CountRows(table)
		if err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		out[table] = n
	}
	return out
}

func TestOpenCreatesSchema(t *testing.T) {
	db := openTestDB(t)
	n, err := db.CountRows("matches")
	if err != nil {
		t.Fatalf("schema not applied: %v", err)
	}
	if n != 0 {
		t.Errorf("fresh db has %d matches", n)
	}
}

func TestLoadMatchesIdempotent(t *testing.T) {
	db := openTestDB(t)
	batch := []*model.ExtractedMatch{testMatch("s1w1-til-cru", 1)}

	if _, err := db.LoadMatches(batch); err != nil {
		t.Fatalf("first load: %v", err)
	}
	first := tableCounts(t, db)

	if _, err := db.LoadMatches(batch); err != nil {
		t.Fatalf("second load: %v", err)
	}
	second := tableCounts(t, db)

	for table, n := range first {
		if second[table] != n {
			t.Errorf("%s: %d rows after reload, want %d", table, second[table], n)
		}
	}

	scores, err := db.SeasonScores(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
	if scores[0].PlayerKey != "alice" || scores[0].Score != 12_000_000 {
		t.Errorf("score values changed on reload: %+v", scores[0])
	}
}

func TestReloadUpdatesCorrectedScore(t *testing.T) {
	db := openTestDB(t)
	em := testMatch("s1w1-til-cru", 1)
	if _, err := db.LoadMatches([]*model.ExtractedMatch{em}); err != nil {
		t.Fatal(err)
	}

	// A corrected source record replaces the stored score in place.
	em.Scores[0].Score = 15_500_000
	if _, err := db.LoadMatches([]*model.ExtractedMatch{em}); err != nil {
		t.Fatal(err)
	}

	scores, err := db.SeasonScores(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
	if scores[0].Score != 15_500_000 {
		t.Errorf("corrected score not applied: %d", scores[0].Score)
	}
}

func TestPlayerSeasonBoundsWiden(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LoadMatches([]*model.ExtractedMatch{testMatch("s3w1-til-cru", 3)}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.LoadMatches([]*model.ExtractedMatch{testMatch("s1w1-til-cru", 1)}); err != nil {
		t.Fatal(err)
	}

	players, err := db.SeasonPlayers(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(players) != 2 {
		t.Fatalf("expected both players to span season 2, got %d", len(players))
	}
	for _, p := range players {
		if p.FirstSeenSeason != 1 || p.LastSeenSeason != 3 {
			t.Errorf("player %s bounds = [%d, %d], want [1, 3]", p.Key, p.FirstSeenSeason, p.LastSeenSeason)
		}
	}

	// Re-loading an old season must never shrink the bounds.
	if _, err := db.LoadMatches([]*model.ExtractedMatch{testMatch("s1w1-til-cru", 1)}); err != nil {
		t.Fatal(err)
	}
	players, err = db.SeasonPlayers(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(players) != 2 {
		t.Errorf("bounds shrank after reloading season 1: %d players span season 3", len(players))
	}
}

func TestPlayerRatingNotClearedByNil(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LoadMatches([]*model.ExtractedMatch{testMatch("s1w1-til-cru", 1)}); err != nil {
		t.Fatal(err)
	}

	em := testMatch("s1w2-til-cru", 1)
	em.Match.Week = 2
	em.Players[0].CurrentRating = nil
	em.Scores[0].RatingSnapshot = nil
	if _, err := db.LoadMatches([]*model.ExtractedMatch{em}); err != nil {
		t.Fatal(err)
	}

	players, err := db.SeasonPlayers(1)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range players {
		if p.Key == "alice" {
			if p.CurrentRating == nil || *p.CurrentRating != 1700 {
				t.Errorf("rating cleared by nil upsert: %v", p.CurrentRating)
			}
		}
	}
}

func TestCuratedMetadataNotClobbered(t *testing.T) {
	db := openTestDB(t)
	err := db.UpsertReference(
		[]model.Machine{{Key: "medieval-madness", DisplayName: "Medieval Madness", Manufacturer: "Williams", Year: 1997}},
		[]model.MachineAlias{{Alias: "MM", MachineKey: "medieval-madness"}},
	)
	if err != nil {
		t.Fatalf("upsert reference: %v", err)
	}

	// A match load with the raw display text must not overwrite the curated row.
	if _, err := db.LoadMatches([]*model.ExtractedMatch{testMatch("s1w1-til-cru", 1)}); err != nil {
		t.Fatal(err)
	}

	var name string
	var year int
	err = db.conn.QueryRow(`SELECT display_name, year FROM machines WHERE key = ?`, "medieval-madness").Scan(&name, &year)
	if err != nil {
		t.Fatal(err)
	}
	if name != "Medieval Madness" || year != 1997 {
		t.Errorf("curated metadata clobbered: name=%q year=%d", name, year)
	}
}

func TestSeasonMatchesDecodesMachineLineup(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LoadMatches([]*model.ExtractedMatch{testMatch("s1w1-til-cru", 1)}); err != nil {
		t.Fatal(err)
	}

	matches, err := db.SeasonMatches(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	m := matches[0]
	if len(m.AvailableMachines) != 2 || m.AvailableMachines[0] != "medieval-madness" {
		t.Errorf("machine lineup not round-tripped: %v", m.AvailableMachines)
	}
	if m.State != model.MatchComplete {
		t.Errorf("state = %q", m.State)
	}
}

func TestReplaceScorePercentilesScopedToSeason(t *testing.T) {
	db := openTestDB(t)
	s1 := []model.ScorePercentile{
		{MachineKey: "medieval-madness", VenueKey: "pins", Season: 1, Percentile: 50, Threshold: 10_000_000, SampleSize: 12},
	}
	s2 := []model.ScorePercentile{
		{MachineKey: "medieval-madness", VenueKey: "pins", Season: 2, Percentile: 50, Threshold: 14_000_000, SampleSize: 15},
	}
	if err := db.ReplaceScorePercentiles(1, s1); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceScorePercentiles(2, s2); err != nil {
		t.Fatal(err)
	}

	// Rewriting season 1 must leave season 2 untouched.
	s1[0].Threshold = 11_000_000
	if err := db.ReplaceScorePercentiles(1, s1); err != nil {
		t.Fatal(err)
	}

	got1, err := db.SeasonPercentiles(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got1) != 1 || got1[0].Threshold != 11_000_000 {
		t.Errorf("season 1 rows: %+v", got1)
	}
	got2, err := db.SeasonPercentiles(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got2) != 1 || got2[0].Threshold != 14_000_000 {
		t.Errorf("season 2 rows: %+v", got2)
	}
}

func TestPlayerMachineStatsNullPercentiles(t *testing.T) {
	db := openTestDB(t)
	rows := []model.PlayerMachineStat{
		{PlayerKey: "alice", MachineKey: "medieval-madness", VenueKey: "pins", Season: 1,
			GamesPlayed: 3, TotalScore: 30, AvgScore: 10, MedianScore: 10, BestScore: 15, WorstScore: 5},
	}
	if err := db.ReplacePlayerMachineStats(1, rows); err != nil {
		t.Fatal(err)
	}
	got, err := db.SeasonPlayerMachineStats(1, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if got[0].MedianPercentile != nil || got[0].AvgPercentile != nil {
		t.Errorf("percentile fields should round-trip as nil: %+v", got[0])
	}
}

func TestUpdatePlayerRating(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LoadMatches([]*model.ExtractedMatch{testMatch("s1w1-til-cru", 1)}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdatePlayerRating("carol", 1520); err != nil {
		t.Fatal(err)
	}
	players, err := db.SeasonPlayers(1)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range players {
		if p.Key == "carol" {
			if p.CurrentRating == nil || *p.CurrentRating != 1520 {
				t.Errorf("rating not updated: %v", p.CurrentRating)
			}
		}
	}
}

func TestCountRowsRejectsUnknownTable(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.CountRows("players; DROP TABLE players"); err == nil {
		t.Error("expected error for unknown table")
	}
}
