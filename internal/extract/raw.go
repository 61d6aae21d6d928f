package extract

import (
	"encoding/json"
	"fmt"
	"os"
)

// Raw match records arrive as one JSON document per match. The shapes below are
// the only place the pipeline touches the loose source schema; everything
// downstream works on the typed entities in internal/model.

type RawMatch struct {
	Key        string     `json:"key"`
	Season     int        `json:"season"`
	Week       int        `json:"week"`
	State      string     `json:"state"`
	Venue      RawVenue   `json:"venue"`
	Home       RawLineup  `json:"home"`
	Away       RawLineup  `json:"away"`
	HomePoints *float64   `json:"home_points"`
	AwayPoints *float64   `json:"away_points"`
	Machines   []string   `json:"machines"` // venue lineup at the time of this match
	Rounds     []RawRound `json:"rounds"`
}

type RawVenue struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type RawLineup struct {
	TeamKey  string      `json:"team"`
	TeamName string      `json:"name"`
	Players  []RawPlayer `json:"lineup"`
}

type RawPlayer struct {
	Key    string   `json:"key"`
	Name   string   `json:"name"`
	Rating *float64 `json:"rating"`
	Sub    bool     `json:"sub"`
}

type RawRound struct {
	Number int       `json:"n"`
	Games  []RawGame `json:"games"`
}

// RawGame carries up to four positional player/score pairs. Singles rounds use
// positions 1 and 2; doubles rounds use all four.
type RawGame struct {
	Number  int    `json:"game"`
	Machine string `json:"machine"`
	Done    bool   `json:"done"`

	Player1 string `json:"player_1"`
	Player2 string `json:"player_2"`
	Player3 string `json:"player_3"`
	Player4 string `json:"player_4"`

	Score1 *int64 `json:"score_1"`
	Score2 *int64 `json:"score_2"`
	Score3 *int64 `json:"score_3"`
	Score4 *int64 `json:"score_4"`
}

// Position returns the player name and score at position 1..4.
func (g *RawGame) Position(i int) (string, *int64) {
	switch i {
	case 1:
		return g.Player1, g.Score1
	case 2:
		return g.Player2, g.Score2
	case 3:
		return g.Player3, g.Score3
	case 4:
		return g.Player4, g.Score4
	}
	return "", nil
}

// ReadFile decodes one raw match record from a JSON file.
func ReadFile(path string) (*RawMatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read match record: %w", err)
	}
	var rec RawMatch
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse match record %s: %w", path, err)
	}
	return &rec, nil
}
