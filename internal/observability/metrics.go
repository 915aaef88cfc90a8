package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational counters across tally runs.
type Metrics struct {
	// Search metrics
	SearchesTotal  atomic.Int64
	SearchesFailed atomic.Int64
	ResultsTotal   atomic.Int64

	// Fetch metrics
	FetchesTotal    atomic.Int64
	FetchesFailed   atomic.Int64
	BytesDownloaded atomic.Int64

	// Article metrics
	ArticlesKept     atomic.Int64
	ArticlesFiltered atomic.Int64
	ArticlesUndated  atomic.Int64

	// Vote metrics
	VotesTeamA     atomic.Int64
	VotesTeamB     atomic.Int64
	VotesAmbiguous atomic.Int64

	// Run metrics
	TalliesTotal atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"picktally_searches_total", "Total search API calls made", m.SearchesTotal.Load()},
		{"picktally_searches_failed_total", "Total failed search API calls", m.SearchesFailed.Load()},
		{"picktally_search_results_total", "Total organic results returned", m.ResultsTotal.Load()},
		{"picktally_fetches_total", "Total page fetches attempted", m.FetchesTotal.Load()},
		{"picktally_fetches_failed_total", "Total failed page fetches", m.FetchesFailed.Load()},
		{"picktally_bytes_downloaded_total", "Total bytes downloaded", m.BytesDownloaded.Load()},
		{"picktally_articles_kept_total", "Articles that passed the recency filter", m.ArticlesKept.Load()},
		{"picktally_articles_filtered_total", "Articles rejected by the recency filter", m.ArticlesFiltered.Load()},
		{"picktally_articles_undated_total", "Articles with no detectable publish date", m.ArticlesUndated.Load()},
		{"picktally_votes_team_a_total", "Votes credited to team A", m.VotesTeamA.Load()},
		{"picktally_votes_team_b_total", "Votes credited to team B", m.VotesTeamB.Load()},
		{"picktally_votes_ambiguous_total", "Articles with no clear winner call", m.VotesAmbiguous.Load()},
		{"picktally_tallies_total", "Completed tally runs", m.TalliesTotal.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// RecordVote bumps the counter for one extraction outcome.
func (m *Metrics) RecordVote(winner string) {
	switch winner {
	case "A":
		m.VotesTeamA.Add(1)
	case "B":
		m.VotesTeamB.Add(1)
	default:
		m.VotesAmbiguous.Add(1)
	}
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"searches_total":    m.SearchesTotal.Load(),
		"searches_failed":   m.SearchesFailed.Load(),
		"results_total":     m.ResultsTotal.Load(),
		"fetches_total":     m.FetchesTotal.Load(),
		"fetches_failed":    m.FetchesFailed.Load(),
		"bytes_downloaded":  m.BytesDownloaded.Load(),
		"articles_kept":     m.ArticlesKept.Load(),
		"articles_filtered": m.ArticlesFiltered.Load(),
		"articles_undated":  m.ArticlesUndated.Load(),
		"votes_team_a":      m.VotesTeamA.Load(),
		"votes_team_b":      m.VotesTeamB.Load(),
		"votes_ambiguous":   m.VotesAmbiguous.Load(),
		"tallies_total":     m.TalliesTotal.Load(),
	}
}
