package stats

import (
	"testing"

	"github.com/pinleague/pipeline/internal/model"
	"github.com/pinleague/pipeline/internal/storage"
)

// pickFixture builds one complete match at a three-machine venue. Away picks
// rounds 1 and 3 (doubles, singles), home picks rounds 2 and 4 (singles,
// doubles).
func pickFixture() ([]model.Match, []model.Game, []storage.SeasonScore) {
	matches := []model.Match{{
		Key: "m1", Season: 1, Week: 1, VenueKey: "pins",
		HomeTeamKey: "TIL", AwayTeamKey: "CRU",
		State:             model.MatchComplete,
		AvailableMachines: []string{"medieval-madness", "twilight-zone", "attack-from-mars"},
	}}
	games := []model.Game{
		{MatchKey: "m1", Round: 1, Number: 1, MachineKey: "medieval-madness", Done: true},
		{MatchKey: "m1", Round: 2, Number: 1, MachineKey: "twilight-zone", Done: true},
		{MatchKey: "m1", Round: 3, Number: 1, MachineKey: "medieval-madness", Done: true},
		{MatchKey: "m1", Round: 4, Number: 1, MachineKey: "attack-from-mars", Done: true},
	}
	scores := []storage.SeasonScore{
		// Round 2 singles on the home team's pick: home wins.
		{MatchKey: "m1", Round: 2, GameNumber: 1, MachineKey: "twilight-zone", VenueKey: "pins",
			PlayerKey: "alice", TeamKey: "TIL", IsHome: true, Score: 100000},
		{MatchKey: "m1", Round: 2, GameNumber: 1, MachineKey: "twilight-zone", VenueKey: "pins",
			PlayerKey: "carol", TeamKey: "CRU", Score: 50000},
		// Round 3 singles on the away team's pick: away loses.
		{MatchKey: "m1", Round: 3, GameNumber: 1, MachineKey: "medieval-madness", VenueKey: "pins",
			PlayerKey: "bob", TeamKey: "TIL", IsHome: true, Score: 9000},
		{MatchKey: "m1", Round: 3, GameNumber: 1, MachineKey: "medieval-madness", VenueKey: "pins",
			PlayerKey: "dave", TeamKey: "CRU", Score: 4000},
	}
	return matches, games, scores
}

func findPick(rows []model.TeamMachinePick, team, machine string, isHome bool, rt model.RoundType) *model.TeamMachinePick {
	for i := range rows {
		p := &rows[i]
		if p.TeamKey == team && p.MachineKey == machine && p.IsHome == isHome && p.RoundType == rt {
			return p
		}
	}
	return nil
}

func TestComputeTeamPicksOpportunities(t *testing.T) {
	matches, games, scores := pickFixture()
	rows := ComputeTeamPicks(matches, games, scores, 1)

	// 2 teams x 2 controlled round types x 3 available machines.
	if len(rows) != 12 {
		t.Fatalf("expected 12 rows, got %d", len(rows))
	}

	picked := findPick(rows, "CRU", "medieval-madness", false, model.Singles)
	if picked == nil {
		t.Fatal("missing row for away singles pick")
	}
	if picked.TimesPicked != 1 || picked.TotalOpportunities != 1 {
		t.Errorf("away singles on medieval-madness: %d/%d, want 1/1", picked.TimesPicked, picked.TotalOpportunities)
	}

	skipped := findPick(rows, "CRU", "twilight-zone", false, model.Singles)
	if skipped == nil {
		t.Fatal("missing row for available-but-skipped machine")
	}
	if skipped.TimesPicked != 0 || skipped.TotalOpportunities != 1 {
		t.Errorf("away singles on twilight-zone: %d/%d, want 0/1", skipped.TimesPicked, skipped.TotalOpportunities)
	}

	for _, p := range rows {
		if p.TimesPicked > p.TotalOpportunities {
			t.Errorf("picks exceed opportunities: %+v", p)
		}
	}
}

func TestComputeTeamPicksWinsAndAvg(t *testing.T) {
	matches, games, scores := pickFixture()
	rows := ComputeTeamPicks(matches, games, scores, 1)

	home := findPick(rows, "TIL", "twilight-zone", true, model.Singles)
	if home == nil {
		t.Fatal("missing home singles row")
	}
	if home.Wins != 1 {
		t.Errorf("home wins = %d, want 1", home.Wins)
	}
	if home.AvgScore != 100000 {
		t.Errorf("home avg score = %v, want 100000 (own scores only)", home.AvgScore)
	}

	away := findPick(rows, "CRU", "medieval-madness", false, model.Singles)
	if away.Wins != 0 {
		t.Errorf("away wins = %d, want 0", away.Wins)
	}
}

func TestComputeTeamPicksOffSnapshotMachine(t *testing.T) {
	matches, games, scores := pickFixture()
	// Round 3 played on a machine missing from the lineup snapshot: it still
	// counts as one pick and one opportunity.
	games[2].MachineKey = "black-knight"
	scores[2].MachineKey = "black-knight"
	scores[3].MachineKey = "black-knight"

	rows := ComputeTeamPicks(matches, games, scores, 1)
	p := findPick(rows, "CRU", "black-knight", false, model.Singles)
	if p == nil {
		t.Fatal("off-snapshot machine produced no row")
	}
	if p.TimesPicked != 1 || p.TotalOpportunities != 1 {
		t.Errorf("off-snapshot pick: %d/%d, want 1/1", p.TimesPicked, p.TotalOpportunities)
	}
}

func TestComputeTeamPicksIgnoresScheduled(t *testing.T) {
	matches, games, scores := pickFixture()
	matches[0].State = model.MatchScheduled
	if rows := ComputeTeamPicks(matches, games, scores, 1); len(rows) != 0 {
		t.Errorf("scheduled match produced %d rows", len(rows))
	}
}

func TestWilsonSmallSamplePenalized(t *testing.T) {
	// A raw 1/1 = 100% must rank below a well-supported 7/10.
	if a, b := WilsonLower(1, 1), WilsonLower(7, 10); a >= b {
		t.Errorf("WilsonLower(1,1) = %v should rank below WilsonLower(7,10) = %v", a, b)
	}
}

func TestWilsonMonotonic(t *testing.T) {
	if a, b := WilsonLower(5, 10), WilsonLower(6, 10); a >= b {
		t.Errorf("more successes should raise the bound: %v vs %v", a, b)
	}
	// Same proportion, more data: the bound tightens upward.
	if a, b := WilsonLower(7, 10), WilsonLower(70, 100); a >= b {
		t.Errorf("more data should tighten the bound: %v vs %v", a, b)
	}
}

func TestWilsonEdges(t *testing.T) {
	if got := WilsonLower(0, 0); got != 0 {
		t.Errorf("WilsonLower(0,0) = %v, want 0", got)
	}
	if got := WilsonLower(0, 10); got < 0 || got > 1e-9 {
		t.Errorf("WilsonLower(0,10) = %v, want 0", got)
	}
	if got := WilsonLower(10, 10); got <= 0.5 || got >= 1 {
		t.Errorf("WilsonLower(10,10) = %v, want in (0.5, 1)", got)
	}
}
