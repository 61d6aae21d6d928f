package model

// VenueAll is the synthetic venue key that pools scores from every venue
// for a machine/season percentile group.
const VenueAll = "_ALL_"

// MatchState is the lifecycle state of a league match.
type MatchState string

const (
	MatchScheduled MatchState = "scheduled"
	MatchComplete  MatchState = "complete"
)

// RoundType distinguishes singles rounds (2 and 3, two players) from
// doubles rounds (1 and 4, four players).
type RoundType string

const (
	Singles RoundType = "singles"
	Doubles RoundType = "doubles"
)

// RoundTypeOf returns the round type for a round number 1..4.
func RoundTypeOf(round int) RoundType {
	if round == 1 || round == 4 {
		return Doubles
	}
	return Singles
}

// ExpectedPlayers returns the scored-position count a done game must carry.
func ExpectedPlayers(round int) int {
	if RoundTypeOf(round) == Doubles {
		return 4
	}
	return 2
}

// HomePicksRound reports whether the home team controls the machine pick for
// the given round. League rule: home picks rounds 2 and 4, away picks 1 and 3.
func HomePicksRound(round int) bool {
	return round == 2 || round == 4
}

// ---- Reference entities ----

// Machine is the canonical identity of one machine model.
type Machine struct {
	Key          string
	DisplayName  string
	Manufacturer string
	Year         int
}

// MachineAlias maps one source spelling to a canonical machine key.
// Alias matching is case-insensitive; an alias maps to exactly one key.
type MachineAlias struct {
	Alias      string
	MachineKey string
}

type Venue struct {
	Key  string
	Name string
}

// Team is scoped by season: the same key can field different rosters
// (and home venues) in different seasons.
type Team struct {
	Key      string
	Name     string
	Season   int
	VenueKey string
}

// Player carries a mutable rating snapshot and season bounds that widen
// monotonically as new matches are loaded.
type Player struct {
	Key             string
	Name            string
	CurrentRating   *float64
	FirstSeenSeason int
	LastSeenSeason  int
}

// ---- Match entities ----

// Match is one league night between two teams at a venue.
// AvailableMachines is the venue lineup at the time of this specific match,
// not a season-wide list; lineups change mid-season and opportunity counting
// depends on the per-match snapshot.
type Match struct {
	Key               string
	Season            int
	Week              int
	VenueKey          string
	HomeTeamKey       string
	AwayTeamKey       string
	State             MatchState
	HomePoints        *float64
	AwayPoints        *float64
	AvailableMachines []string
}

// Game is one machine instance within a match round.
type Game struct {
	MatchKey   string
	Round      int // 1..4
	Number     int
	MachineKey string
	Done       bool
}

// Score is one player's result on one game, denormalized with lineup context
// so the statistics passes never join back to lineup data.
type Score struct {
	MatchKey       string
	Round          int
	GameNumber     int
	Position       int // 1..4
	PlayerKey      string
	Score          int64
	TeamKey        string
	IsHome         bool
	IsSub          bool
	RatingSnapshot *float64
}

// ExtractedMatch is the validated output of the extractor for one raw record:
// everything the loader needs, in dependency order.
type ExtractedMatch struct {
	Match    Match
	Venue    Venue
	Teams    []Team
	Players  []Player
	Machines []Machine
	Games    []Game
	Scores   []Score
}

// ---- Derived rows (recomputed wholesale per season) ----

// ScorePercentile is one percentile threshold for a (machine, venue, season)
// score population. VenueKey may be VenueAll for the pooled group.
type ScorePercentile struct {
	MachineKey string
	VenueKey   string
	Season     int
	Percentile int
	Threshold  int64
	SampleSize int
}

// PlayerMachineStat summarizes one player's results on one machine at one venue.
// Percentile fields are nil when no percentile data exists for the group.
type PlayerMachineStat struct {
	PlayerKey  string
	MachineKey string
	VenueKey   string
	Season     int

	GamesPlayed int
	TotalScore  int64
	AvgScore    float64
	MedianScore float64
	BestScore   int64
	WorstScore  int64

	MedianPercentile *float64
	AvgPercentile    *float64
}

// TeamMachinePick quantifies how often a team selects a machine when it has
// the pick. WilsonLower is the ranking field; Wins and AvgScore are descriptive.
type TeamMachinePick struct {
	TeamKey    string
	MachineKey string
	Season     int
	IsHome     bool
	RoundType  RoundType

	TimesPicked        int
	TotalOpportunities int
	WilsonLower        float64
	Wins               int
	AvgScore           float64
}

// PickRate returns the raw pick proportion. Not used for ranking; see WilsonLower.
func (p *TeamMachinePick) PickRate() float64 {
	if p.TotalOpportunities == 0 {
		return 0
	}
	return float64(p.TimesPicked) / float64(p.TotalOpportunities)
}

// PlayerTotals is the cross-season totals row for one player.
type PlayerTotals struct {
	PlayerKey     string
	Name          string
	SeasonsPlayed int
	MatchesPlayed int
	GamesPlayed   int
	TotalScore    int64
	AvgScore      float64
	BestScore     int64
}

// MatchSummary is a lightweight record for the list command.
type MatchSummary struct {
	Key         string
	Season      int
	Week        int
	VenueKey    string
	HomeTeamKey string
	AwayTeamKey string
	State       MatchState
	GameCount   int
}
