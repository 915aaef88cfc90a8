package types

import (
	"net/url"
	"strings"
	"time"
)

// SearchResult is one organic hit returned by a search provider.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Domain returns the lowercase hostname of the result URL.
func (r SearchResult) Domain() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Article is a fetched, text-extracted page. Published is nil when no
// publish date could be detected; such articles never survive the
// recency filter.
type Article struct {
	URL         string
	Domain      string
	ResultTitle string
	PageTitle   string
	Snippet     string
	Text        string
	Published   *time.Time
	FetchedAt   time.Time
}

// Winner identifies which side of the matchup an article predicts.
type Winner string

const (
	WinnerTeamA     Winner = "A"
	WinnerTeamB     Winner = "B"
	WinnerAmbiguous Winner = "ambiguous"
)

// Prediction is the winner-extraction outcome for one article.
type Prediction struct {
	URL         string
	Winner      Winner
	Method      string // "final_score", "explicit", "scoreline", "pick_field", ...
	MatchPhrase string
}

// SourceRow is one line of the output CSV, in column order.
type SourceRow struct {
	PublishedUTC string `json:"published_utc"`
	Domain       string `json:"domain"`
	URL          string `json:"url"`
	ResultTitle  string `json:"result_title"`
	PageTitle    string `json:"page_title"`
	Snippet      string `json:"snippet"`
	Winner       Winner `json:"winner"`
	WinnerMethod string `json:"winner_method"`
	MatchPhrase  string `json:"match_phrase"`
}

// Tally is the final aggregate of one run. Ambiguous predictions are
// excluded from the vote counts but stay in Sources.
type Tally struct {
	Query            string      `json:"query"`
	TeamALabel       string      `json:"team_a_label"`
	TeamBLabel       string      `json:"team_b_label"`
	Days             int         `json:"days"`
	ResultsRequested int         `json:"results_requested"`
	VotesTeamA       int         `json:"votes_team_a"`
	VotesTeamB       int         `json:"votes_team_b"`
	Ambiguous        int         `json:"ambiguous"`
	FetchFailures    int         `json:"fetch_failures"`
	Sources          []SourceRow `json:"sources"`
}

// Counts returns the per-label vote map. Keys are always a subset of
// the two team labels.
func (t *Tally) Counts() map[string]int {
	counts := make(map[string]int, 2)
	if t.VotesTeamA > 0 {
		counts[t.TeamALabel] = t.VotesTeamA
	}
	if t.VotesTeamB > 0 {
		counts[t.TeamBLabel] = t.VotesTeamB
	}
	return counts
}
