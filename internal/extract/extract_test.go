package extract

import (
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/pinleague/pipeline/internal/model"
	"github.com/pinleague/pipeline/internal/normalize"
)

func i64(v int64) *int64 { return &v }

func f64(v float64) *float64 { return &v }

func testExtractor() *Extractor {
	log := logrus.New()
	log.SetOutput(io.Discard)
	norm := normalize.New(map[string][]string{
		"medieval-madness": {"MM"},
		"attack-from-mars": {"AFM"},
		"twilight-zone":    {"TZ"},
	})
	return New(norm, log)
}

// testRecord builds a well-formed complete match: doubles in rounds 1 and 4,
// singles in rounds 2 and 3.
func testRecord() *RawMatch {
	return &RawMatch{
		Key:    "s12w3-til-cru",
		Season: 12,
		Week:   3,
		State:  "complete",
		Venue:  RawVenue{Key: "pins", Name: "Pins Tavern"},
		Home: RawLineup{TeamKey: "TIL", TeamName: "Tilt Happens", Players: []RawPlayer{
			{Key: "alice", Name: "Alice", Rating: f64(1700)},
			{Key: "bob", Name: "Bob", Rating: f64(1450), Sub: true},
		}},
		Away: RawLineup{TeamKey: "CRU", TeamName: "Crude Drains", Players: []RawPlayer{
			{Key: "carol", Name: "Carol"},
			{Key: "dave", Name: "Dave", Rating: f64(1510)},
		}},
		HomePoints: f64(11),
		AwayPoints: f64(9),
		Machines:   []string{"MM", "AFM", "TZ"},
		Rounds: []RawRound{
			{Number: 1, Games: []RawGame{{
				Number: 1, Machine: "MM", Done: true,
				Player1: "Alice", Player2: "Carol", Player3: "Bob", Player4: "Dave",
				Score1: i64(12_400_600), Score2: i64(8_100_200), Score3: i64(6_000_000), Score4: i64(22_500_000),
			}}},
			{Number: 2, Games: []RawGame{{
				Number: 1, Machine: "AFM", Done: true,
				Player1: "Alice", Player2: "Carol",
				Score1: i64(2_450_000_000), Score2: i64(1_800_000_000),
			}}},
			{Number: 3, Games: []RawGame{{
				Number: 1, Machine: "TZ", Done: true,
				Player1: "Bob", Player2: "Dave",
				Score1: i64(310_500_400), Score2: i64(95_000_000),
			}}},
			{Number: 4, Games: []RawGame{{
				Number: 1, Machine: "MM", Done: true,
				Player1: "Carol", Player2: "Alice", Player3: "Dave", Player4: "Bob",
				Score1: i64(15_000_000), Score2: i64(31_000_000), Score3: i64(9_800_000), Score4: i64(14_200_000),
			}}},
		},
	}
}

func TestMatchWellFormed(t *testing.T) {
	em, problems := testExtractor().Match(testRecord())
	if em == nil {
		t.Fatalf("well-formed match rejected: %v", problems)
	}
	for _, p := range problems {
		if p.Severity == SeverityError {
			t.Errorf("unexpected error problem: %v", p)
		}
	}
	if em.Match.State != model.MatchComplete {
		t.Errorf("state = %q", em.Match.State)
	}
	if len(em.Match.AvailableMachines) != 3 {
		t.Errorf("available machines = %v", em.Match.AvailableMachines)
	}
	if em.Match.AvailableMachines[0] != "medieval-madness" {
		t.Errorf("machine lineup not canonicalized: %v", em.Match.AvailableMachines)
	}
	if len(em.Games) != 4 {
		t.Errorf("expected 4 games, got %d", len(em.Games))
	}
	if got := len(em.Scores); got != 12 {
		t.Errorf("expected 12 scores (4+2+2+4), got %d", got)
	}
	if len(em.Players) != 4 {
		t.Errorf("expected 4 players, got %d", len(em.Players))
	}
}

func TestMatchDenormalizesContext(t *testing.T) {
	em, _ := testExtractor().Match(testRecord())
	if em == nil {
		t.Fatal("match rejected")
	}
	var aliceR1, daveR1 *model.Score
	for i := range em.Scores {
		s := &em.Scores[i]
		if s.Round == 1 && s.PlayerKey == "alice" {
			aliceR1 = s
		}
		if s.Round == 1 && s.PlayerKey == "dave" {
			daveR1 = s
		}
	}
	if aliceR1 == nil || daveR1 == nil {
		t.Fatal("round 1 scores missing")
	}
	if !aliceR1.IsHome || aliceR1.TeamKey != "TIL" || aliceR1.IsSub {
		t.Errorf("alice context: %+v", aliceR1)
	}
	if aliceR1.RatingSnapshot == nil || *aliceR1.RatingSnapshot != 1700 {
		t.Errorf("alice rating snapshot: %v", aliceR1.RatingSnapshot)
	}
	if daveR1.IsHome || daveR1.TeamKey != "CRU" {
		t.Errorf("dave context: %+v", daveR1)
	}
	if aliceR1.Position != 1 || daveR1.Position != 4 {
		t.Errorf("positions: alice=%d dave=%d", aliceR1.Position, daveR1.Position)
	}
}

func TestMatchRejectsWrongRoundCount(t *testing.T) {
	rec := testRecord()
	rec.Rounds = rec.Rounds[:3]
	em, problems := testExtractor().Match(rec)
	if em != nil {
		t.Fatal("complete match with 3 rounds should be rejected")
	}
	if len(problems) == 0 || problems[len(problems)-1].Severity != SeverityError {
		t.Errorf("expected an error problem, got %v", problems)
	}
}

func TestMatchRejectsBadState(t *testing.T) {
	rec := testRecord()
	rec.State = "postponed"
	if em, _ := testExtractor().Match(rec); em != nil {
		t.Error("unknown state should reject the match")
	}
}

func TestMatchRejectsMissingSeason(t *testing.T) {
	rec := testRecord()
	rec.Season = 0
	if em, _ := testExtractor().Match(rec); em != nil {
		t.Error("season 0 should reject the match")
	}
}

func TestMatchRejectsDuplicateRound(t *testing.T) {
	rec := testRecord()
	rec.Rounds[3].Number = 2
	if em, _ := testExtractor().Match(rec); em != nil {
		t.Error("duplicate round number should reject the match")
	}
}

func TestScheduledMatchNeedsNoRounds(t *testing.T) {
	rec := testRecord()
	rec.State = "scheduled"
	rec.Rounds = nil
	rec.HomePoints, rec.AwayPoints = nil, nil
	em, problems := testExtractor().Match(rec)
	if em == nil {
		t.Fatalf("scheduled match rejected: %v", problems)
	}
	if len(em.Games) != 0 || len(em.Scores) != 0 {
		t.Errorf("scheduled match produced games/scores: %d/%d", len(em.Games), len(em.Scores))
	}
}

func TestGameSkippedOnUnknownPlayer(t *testing.T) {
	rec := testRecord()
	rec.Rounds[1].Games[0].Player2 = "Mallory"
	em, problems := testExtractor().Match(rec)
	if em == nil {
		t.Fatalf("per-game anomaly must not reject the match: %v", problems)
	}
	if len(em.Games) != 3 {
		t.Errorf("expected the bad game skipped, got %d games", len(em.Games))
	}
	if len(em.Scores) != 10 {
		t.Errorf("expected 10 scores, got %d", len(em.Scores))
	}
	found := false
	for _, p := range problems {
		if p.Severity == SeverityWarning && strings.Contains(p.Message, "Mallory") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a warning naming the unknown player, got %v", problems)
	}
}

func TestGameSkippedOnNegativeScore(t *testing.T) {
	rec := testRecord()
	rec.Rounds[2].Games[0].Score2 = i64(-5)
	em, _ := testExtractor().Match(rec)
	if em == nil {
		t.Fatal("match rejected")
	}
	if len(em.Games) != 3 {
		t.Errorf("negative score should skip the game, got %d games", len(em.Games))
	}
}

func TestGameSkippedOnPlayerCountMismatch(t *testing.T) {
	// Doubles game with only two positions filled.
	rec := testRecord()
	g := &rec.Rounds[0].Games[0]
	g.Player3, g.Player4 = "", ""
	g.Score3, g.Score4 = nil, nil
	em, _ := testExtractor().Match(rec)
	if em == nil {
		t.Fatal("match rejected")
	}
	if len(em.Games) != 3 {
		t.Errorf("short doubles game should be skipped, got %d games", len(em.Games))
	}
}

func TestGameSkippedOnMissingScore(t *testing.T) {
	rec := testRecord()
	rec.Rounds[0].Games[0].Score3 = nil
	em, _ := testExtractor().Match(rec)
	if em == nil {
		t.Fatal("match rejected")
	}
	if len(em.Games) != 3 {
		t.Errorf("done game missing a score should be skipped, got %d games", len(em.Games))
	}
}

func TestHugeScoreKeptWithWarning(t *testing.T) {
	rec := testRecord()
	rec.Rounds[1].Games[0].Score1 = i64(12_000_000_000)
	em, problems := testExtractor().Match(rec)
	if em == nil {
		t.Fatal("match rejected")
	}
	if len(em.Scores) != 12 {
		t.Errorf("huge score must be kept, got %d scores", len(em.Scores))
	}
	found := false
	for _, p := range problems {
		if strings.Contains(p.Message, "implausibly large") {
			found = true
		}
	}
	if !found {
		t.Error("expected an implausible-score warning")
	}
}

func TestOutOfRangeRatingDropped(t *testing.T) {
	rec := testRecord()
	rec.Home.Players[0].Rating = f64(99999)
	em, problems := testExtractor().Match(rec)
	if em == nil {
		t.Fatal("match rejected")
	}
	for _, pl := range em.Players {
		if pl.Key == "alice" && pl.CurrentRating != nil {
			t.Errorf("out-of-range rating should be nulled, got %v", *pl.CurrentRating)
		}
	}
	found := false
	for _, p := range problems {
		if strings.Contains(p.Message, "rating") {
			found = true
		}
	}
	if !found {
		t.Error("expected a rating warning")
	}
}

func TestFallbackMatchKey(t *testing.T) {
	rec := testRecord()
	rec.Key = ""
	em, _ := testExtractor().Match(rec)
	if em == nil {
		t.Fatal("match rejected")
	}
	if em.Match.Key != "s12w3-til-cru" {
		t.Errorf("fallback key = %q", em.Match.Key)
	}
}

func TestUnmappedMachineKeptWithWarning(t *testing.T) {
	rec := testRecord()
	rec.Machines = append(rec.Machines, "Mystery Castle")
	em, problems := testExtractor().Match(rec)
	if em == nil {
		t.Fatal("match rejected")
	}
	if len(em.Match.AvailableMachines) != 4 {
		t.Errorf("unmapped machine should still load: %v", em.Match.AvailableMachines)
	}
	found := false
	for _, p := range problems {
		if strings.Contains(p.Message, "unmapped machine") {
			found = true
		}
	}
	if !found {
		t.Error("expected an unmapped-machine warning")
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Pins & Needles":   "pins-needles",
		"  The Flip Side ": "the-flip-side",
		"TILT!":            "tilt",
	}
	for in, want := range cases {
		if got := slug(in); got != want {
			t.Errorf("slug(%q) = %q, want %q", in, got, want)
		}
	}
}
