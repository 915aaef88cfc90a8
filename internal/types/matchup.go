package types

import (
	"fmt"
	"strings"
)

// Team is one side of a matchup. Synonyms are the strings the winner
// extractor will accept as a mention of this team; the first synonym is
// the display label ("Houston Texans" in "Houston Texans,Texans,Houston").
type Team struct {
	Label    string
	Synonyms []string
}

// ParseTeam builds a Team from a comma-separated synonym list.
func ParseTeam(spec string) (Team, error) {
	var syns []string
	for _, s := range strings.Split(spec, ",") {
		if s = strings.TrimSpace(s); s != "" {
			syns = append(syns, s)
		}
	}
	if len(syns) == 0 {
		return Team{}, fmt.Errorf("empty team spec %q", spec)
	}
	return Team{Label: syns[0], Synonyms: syns}, nil
}

// Matchup pairs the two teams a query is about.
type Matchup struct {
	TeamA Team
	TeamB Team
}

// Query describes a single tally run. It is immutable once constructed;
// every run builds a fresh Query.
type Query struct {
	// Search is the raw search string, e.g. "Texans vs 49ers prediction".
	Search string

	Matchup Matchup

	// Results is how many search results to request from the provider.
	Results int

	// Days is the strict recency cutoff: articles without a detectable
	// publish date inside the window are dropped.
	Days int

	// Allow, when non-empty, restricts fetching to domains containing
	// one of its entries. Deny always excludes matching domains.
	Allow []string
	Deny  []string
}

// Validate checks the query for values the pipeline cannot work with.
func (q *Query) Validate() error {
	if strings.TrimSpace(q.Search) == "" {
		return fmt.Errorf("query string is empty")
	}
	if len(q.Matchup.TeamA.Synonyms) == 0 || len(q.Matchup.TeamB.Synonyms) == 0 {
		return fmt.Errorf("both teams need at least one synonym")
	}
	if q.Results < 1 {
		return fmt.Errorf("results must be >= 1, got %d", q.Results)
	}
	if q.Days < 1 {
		return fmt.Errorf("days must be >= 1, got %d", q.Days)
	}
	return nil
}
