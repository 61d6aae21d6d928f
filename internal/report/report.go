// Package report renders run summaries and stat tables.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pinleague/pipeline/internal/model"
	"github.com/pinleague/pipeline/internal/pipeline"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

// PrintRunReport prints the per-invocation summary: load counts, per-stage
// status, and accumulated validation problems.
func PrintRunReport(w io.Writer, r *pipeline.Report) {
	fmt.Fprintf(w, "\n=== Run Summary — season %d ===\n\n", r.Season)
	c := r.Counts
	fmt.Fprintf(w, "  Loaded: %d matches, %d games, %d scores, %d players, %d teams, %d venues, %d machines\n\n",
		c.Matches, c.Games, c.Scores, c.Players, c.Teams, c.Venues, c.Machines)

	table := newTable(w)
	table.Header("STAGE", "STATUS", "DETAIL")
	for _, s := range r.Stages {
		table.Append(s.Name, string(s.Status), s.Detail)
	}
	table.Render()

	if errs := r.Errors(); len(errs) > 0 {
		fmt.Fprintf(w, "\nRejected matches (%d):\n", len(errs))
		for _, p := range errs {
			fmt.Fprintf(w, "  %s: %s\n", p.MatchKey, p.Message)
		}
	}
	if warns := r.Warnings(); len(warns) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(warns))
		for _, p := range warns {
			fmt.Fprintf(w, "  %s: %s\n", p.MatchKey, p.Message)
		}
	}
	fmt.Fprintln(w)
}

// PrintMatchList prints the loaded matches of a season.
func PrintMatchList(w io.Writer, matches []model.MatchSummary) {
	table := newTable(w)
	table.Header("WEEK", "MATCH", "VENUE", "HOME", "AWAY", "STATE", "GAMES")
	for _, m := range matches {
		table.Append(
			strconv.Itoa(m.Week),
			m.Key,
			m.VenueKey,
			m.HomeTeamKey,
			m.AwayTeamKey,
			string(m.State),
			strconv.Itoa(m.GameCount),
		)
	}
	table.Render()
}

// PrintPlayerMachineTable prints per-player-per-machine summaries. Percentile
// columns show "—" when no percentile data existed for the group.
func PrintPlayerMachineTable(w io.Writer, rows []model.PlayerMachineStat) {
	table := newTable(w)
	table.Header("PLAYER", "MACHINE", "VENUE", "GP", "AVG", "MEDIAN", "BEST", "WORST", "MED_PCT", "AVG_PCT")
	for _, s := range rows {
		medPct := "—"
		if s.MedianPercentile != nil {
			medPct = fmt.Sprintf("%.1f", *s.MedianPercentile)
		}
		avgPct := "—"
		if s.AvgPercentile != nil {
			avgPct = fmt.Sprintf("%.1f", *s.AvgPercentile)
		}
		table.Append(
			s.PlayerKey,
			s.MachineKey,
			s.VenueKey,
			strconv.Itoa(s.GamesPlayed),
			fmt.Sprintf("%.0f", s.AvgScore),
			fmt.Sprintf("%.0f", s.MedianScore),
			strconv.FormatInt(s.BestScore, 10),
			strconv.FormatInt(s.WorstScore, 10),
			medPct,
			avgPct,
		)
	}
	table.Render()
}

// PrintPicksTable prints team machine-selection tendencies ranked by the
// Wilson lower bound.
func PrintPicksTable(w io.Writer, rows []model.TeamMachinePick) {
	table := newTable(w)
	table.Header("TEAM", "MACHINE", "SIDE", "TYPE", "PICKED", "OPPS", "RATE", "WILSON_LO", "WINS", "AVG_SCORE")
	for _, p := range rows {
		side := "away"
		if p.IsHome {
			side = "home"
		}
		table.Append(
			p.TeamKey,
			p.MachineKey,
			side,
			string(p.RoundType),
			strconv.Itoa(p.TimesPicked),
			strconv.Itoa(p.TotalOpportunities),
			fmt.Sprintf("%.0f%%", p.PickRate()*100),
			fmt.Sprintf("%.3f", p.WilsonLower),
			strconv.Itoa(p.Wins),
			fmt.Sprintf("%.0f", p.AvgScore),
		)
	}
	table.Render()
}

// PrintTotalsTable prints cross-season player totals.
func PrintTotalsTable(w io.Writer, rows []model.PlayerTotals) {
	table := newTable(w)
	table.Header("PLAYER", "NAME", "SEASONS", "MATCHES", "GAMES", "AVG", "BEST")
	for _, t := range rows {
		table.Append(
			t.PlayerKey,
			t.Name,
			strconv.Itoa(t.SeasonsPlayed),
			strconv.Itoa(t.MatchesPlayed),
			strconv.Itoa(t.GamesPlayed),
			fmt.Sprintf("%.0f", t.AvgScore),
			strconv.FormatInt(t.BestScore, 10),
		)
	}
	table.Render()
}
