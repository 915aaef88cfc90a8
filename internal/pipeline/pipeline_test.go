package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"picktally/internal/config"
	"picktally/internal/observability"
	"picktally/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubProvider struct {
	mu         sync.Mutex
	results    []types.SearchResult
	err        error
	calls      int
	gotQuery   string
	gotNum     int
	gotRecency string
}

func (s *stubProvider) Search(ctx context.Context, query string, num int, recency string) ([]types.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.gotQuery = query
	s.gotNum = num
	s.gotRecency = recency
	return s.results, s.err
}

func (s *stubProvider) Name() string { return "stub" }

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls int
}

func (s *stubFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	page, ok := s.pages[req.URLString()]
	if !ok {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: 502, Err: errors.New("bad gateway"), Retryable: true}
	}
	return &types.Response{
		StatusCode:  200,
		Body:        []byte(page),
		Request:     req,
		ContentType: "text/html; charset=utf-8",
		FinalURL:    req.URLString(),
		FetchedAt:   time.Now(),
	}, nil
}

func (s *stubFetcher) Close() error { return nil }

func (s *stubFetcher) Type() string { return "stub" }

// page renders a minimal article with a machine-readable publish date.
func page(title, published, body string) string {
	return fmt.Sprintf(`<html><head><title>%s</title>
<meta property="article:published_time" content="%s">
</head><body><article>%s</article></body></html>`, title, published, body)
}

func testQuery() types.Query {
	return types.Query{
		Search: "Texans vs 49ers prediction",
		Matchup: types.Matchup{
			TeamA: types.Team{Label: "Texans", Synonyms: []string{"Texans", "Houston"}},
			TeamB: types.Team{Label: "49ers", Synonyms: []string{"49ers", "Niners", "San Francisco"}},
		},
		Results: 10,
		Days:    5,
		Deny:    []string{"reddit.com"},
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Fetcher.PolitenessDelay = 0
	cfg.Fetcher.Concurrency = 4
	return cfg
}

func fixedNow() time.Time {
	return time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
}

func TestRunTalliesVotes(t *testing.T) {
	provider := &stubProvider{results: []types.SearchResult{
		{URL: "https://a.example.com/1", Title: "Preview 1"},
		{URL: "https://b.example.com/2", Title: "Preview 2"},
		{URL: "https://c.example.com/3", Title: "Preview 3"},
	}}
	f := &stubFetcher{pages: map[string]string{
		"https://a.example.com/1": page("One", "2025-01-09T10:00:00Z", "Pick: Texans"),
		"https://b.example.com/2": page("Two", "2025-01-08T10:00:00Z", "Pick: 49ers"),
		"https://c.example.com/3": page("Three", "2025-01-08T09:00:00Z", "A look at the injury report."),
	}}

	p := New(provider, f, testConfig(), testLogger, WithClock(fixedNow))
	tally, err := p.Run(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if tally.VotesTeamA != 1 || tally.VotesTeamB != 1 || tally.Ambiguous != 1 {
		t.Errorf("unexpected votes: A=%d B=%d ambiguous=%d", tally.VotesTeamA, tally.VotesTeamB, tally.Ambiguous)
	}
	if len(tally.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(tally.Sources))
	}

	// Sources keep the provider's result order.
	if tally.Sources[0].URL != "https://a.example.com/1" || tally.Sources[2].URL != "https://c.example.com/3" {
		t.Errorf("sources out of order: %+v", tally.Sources)
	}
	if tally.Sources[0].Winner != types.WinnerTeamA || tally.Sources[0].WinnerMethod == "" {
		t.Errorf("unexpected first source: %+v", tally.Sources[0])
	}
	if tally.Sources[0].PublishedUTC != "2025-01-09T10:00:00Z" {
		t.Errorf("unexpected published timestamp %q", tally.Sources[0].PublishedUTC)
	}
	if provider.gotRecency != "qdr:w" {
		t.Errorf("expected weekly recency bias, got %q", provider.gotRecency)
	}
}

func TestRunFiveSourceSplit(t *testing.T) {
	provider := &stubProvider{results: []types.SearchResult{
		{URL: "https://s1.example.com/a"},
		{URL: "https://s2.example.com/b"},
		{URL: "https://s3.example.com/c"},
		{URL: "https://s4.example.com/d"},
		{URL: "https://s5.example.com/e"},
	}}
	f := &stubFetcher{pages: map[string]string{
		"https://s1.example.com/a": page("A", "2025-01-09T10:00:00Z", "Pick: Texans"),
		"https://s2.example.com/b": page("B", "2025-01-09T11:00:00Z", "Winner: Houston"),
		"https://s3.example.com/c": page("C", "2025-01-08T10:00:00Z", "Final score: Texans 27, 49ers 20."),
		"https://s4.example.com/d": page("D", "2025-01-08T11:00:00Z", "Pick: 49ers"),
		"https://s5.example.com/e": page("E", "2025-01-07T10:00:00Z", "Who wins? Niners, comfortably."),
	}}

	p := New(provider, f, testConfig(), testLogger, WithClock(fixedNow))
	tally, err := p.Run(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if tally.VotesTeamA != 3 || tally.VotesTeamB != 2 {
		t.Errorf("expected 3/2 split, got A=%d B=%d", tally.VotesTeamA, tally.VotesTeamB)
	}
	if len(tally.Sources) != 5 {
		t.Errorf("expected 5 sources, got %d", len(tally.Sources))
	}

	counts := tally.Counts()
	if counts["Texans"] != 3 || counts["49ers"] != 2 {
		t.Errorf("unexpected counts map: %v", counts)
	}
}

func TestRunPartialFetchFailures(t *testing.T) {
	provider := &stubProvider{results: []types.SearchResult{
		{URL: "https://a.example.com/1"},
		{URL: "https://down.example.com/2"},
		{URL: "https://b.example.com/3"},
		{URL: "https://down.example.com/4"},
		{URL: "https://c.example.com/5"},
	}}
	f := &stubFetcher{pages: map[string]string{
		"https://a.example.com/1": page("One", "2025-01-09T10:00:00Z", "Pick: Texans"),
		"https://b.example.com/3": page("Three", "2025-01-09T10:00:00Z", "Pick: Houston"),
		"https://c.example.com/5": page("Five", "2025-01-09T10:00:00Z", "Pick: Niners"),
	}}

	p := New(provider, f, testConfig(), testLogger, WithClock(fixedNow))
	tally, err := p.Run(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Run failed despite only partial failures: %v", err)
	}

	if tally.FetchFailures != 2 {
		t.Errorf("expected 2 fetch failures, got %d", tally.FetchFailures)
	}
	if tally.VotesTeamA != 2 || tally.VotesTeamB != 1 {
		t.Errorf("unexpected votes: A=%d B=%d", tally.VotesTeamA, tally.VotesTeamB)
	}
	if len(tally.Sources) != 3 {
		t.Errorf("expected 3 sources, got %d", len(tally.Sources))
	}
}

func TestRunRecencyFilter(t *testing.T) {
	provider := &stubProvider{results: []types.SearchResult{
		{URL: "https://fresh.example.com/1"},
		{URL: "https://stale.example.com/2"},
		{URL: "https://undated.example.com/3"},
	}}
	f := &stubFetcher{pages: map[string]string{
		"https://fresh.example.com/1": page("Fresh", "2025-01-09T10:00:00Z", "Pick: Texans"),
		"https://stale.example.com/2": page("Stale", "2024-12-01T10:00:00Z", "Pick: Texans"),
		"https://undated.example.com/3": `<html><head><title>Undated</title></head>
<body><article>Pick: Texans</article></body></html>`,
	}}

	p := New(provider, f, testConfig(), testLogger, WithClock(fixedNow))
	tally, err := p.Run(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(tally.Sources) != 1 {
		t.Fatalf("expected only the fresh article, got %d sources", len(tally.Sources))
	}
	if tally.Sources[0].Domain != "fresh.example.com" {
		t.Errorf("unexpected surviving source: %+v", tally.Sources[0])
	}

	// Filtered articles are not fetch failures.
	if tally.FetchFailures != 0 {
		t.Errorf("expected 0 fetch failures, got %d", tally.FetchFailures)
	}
}

func TestRunDomainFilters(t *testing.T) {
	provider := &stubProvider{results: []types.SearchResult{
		{URL: "https://www.reddit.com/r/nfl/1"},
		{URL: "https://a.example.com/1"},
		{URL: "https://a.example.com/1"},
		{URL: "https://other.example.net/2"},
	}}
	f := &stubFetcher{pages: map[string]string{
		"https://a.example.com/1":     page("One", "2025-01-09T10:00:00Z", "Pick: Texans"),
		"https://other.example.net/2": page("Two", "2025-01-09T10:00:00Z", "Pick: 49ers"),
	}}

	q := testQuery()
	q.Allow = []string{"example.com"}

	p := New(provider, f, testConfig(), testLogger, WithClock(fixedNow))
	tally, err := p.Run(context.Background(), q)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// reddit.com is denied, example.net misses the allow list, and the
	// duplicate URL is deduped.
	if len(tally.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d: %+v", len(tally.Sources), tally.Sources)
	}
	if f.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", f.calls)
	}
}

func TestRunProviderError(t *testing.T) {
	provider := &stubProvider{err: &types.ProviderError{Provider: "stub", StatusCode: 403, Err: errors.New("forbidden")}}
	f := &stubFetcher{}

	p := New(provider, f, testConfig(), testLogger, WithClock(fixedNow))
	_, err := p.Run(context.Background(), testQuery())
	if err == nil {
		t.Fatal("expected provider error")
	}

	var perr *types.ProviderError
	if !errors.As(err, &perr) {
		t.Errorf("expected *types.ProviderError, got %T", err)
	}
	if f.calls != 0 {
		t.Errorf("expected no fetches after search failure, got %d", f.calls)
	}
}

func TestRunInvalidQuery(t *testing.T) {
	provider := &stubProvider{}
	p := New(provider, &stubFetcher{}, testConfig(), testLogger)

	q := testQuery()
	q.Search = "  "
	if _, err := p.Run(context.Background(), q); err == nil {
		t.Fatal("expected validation error")
	}
	if provider.calls != 0 {
		t.Errorf("expected no search calls for invalid query, got %d", provider.calls)
	}
}

func TestRunEmptyResults(t *testing.T) {
	p := New(&stubProvider{}, &stubFetcher{}, testConfig(), testLogger, WithClock(fixedNow))
	tally, err := p.Run(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if tally.Sources == nil || len(tally.Sources) != 0 {
		t.Errorf("expected empty non-nil sources, got %+v", tally.Sources)
	}
	if tally.TeamALabel != "Texans" || tally.Days != 5 {
		t.Errorf("tally metadata not populated: %+v", tally)
	}
}

func TestRunIdempotent(t *testing.T) {
	provider := &stubProvider{results: []types.SearchResult{
		{URL: "https://a.example.com/1"},
		{URL: "https://b.example.com/2"},
	}}
	f := &stubFetcher{pages: map[string]string{
		"https://a.example.com/1": page("One", "2025-01-09T10:00:00Z", "Pick: Texans"),
		"https://b.example.com/2": page("Two", "2025-01-08T10:00:00Z", "Pick: 49ers"),
	}}

	p := New(provider, f, testConfig(), testLogger, WithClock(fixedNow))

	first, err := p.Run(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := p.Run(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.VotesTeamA != second.VotesTeamA || first.VotesTeamB != second.VotesTeamB {
		t.Errorf("runs disagree: %+v vs %+v", first, second)
	}
	if len(first.Sources) != len(second.Sources) {
		t.Fatalf("source counts differ: %d vs %d", len(first.Sources), len(second.Sources))
	}
	for i := range first.Sources {
		if first.Sources[i] != second.Sources[i] {
			t.Errorf("source %d differs: %+v vs %+v", i, first.Sources[i], second.Sources[i])
		}
	}
}

func TestRunMetrics(t *testing.T) {
	provider := &stubProvider{results: []types.SearchResult{
		{URL: "https://a.example.com/1"},
		{URL: "https://down.example.com/2"},
	}}
	f := &stubFetcher{pages: map[string]string{
		"https://a.example.com/1": page("One", "2025-01-09T10:00:00Z", "Pick: Texans"),
	}}

	m := observability.NewMetrics(testLogger)
	p := New(provider, f, testConfig(), testLogger, WithClock(fixedNow), WithMetrics(m))
	if _, err := p.Run(context.Background(), testQuery()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snap := m.Snapshot()
	if snap["searches_total"] != 1 {
		t.Errorf("expected 1 search, got %d", snap["searches_total"])
	}
	if snap["fetches_total"] != 2 || snap["fetches_failed"] != 1 {
		t.Errorf("unexpected fetch counters: %+v", snap)
	}
	if snap["articles_kept"] != 1 || snap["votes_team_a"] != 1 {
		t.Errorf("unexpected article counters: %+v", snap)
	}
	if snap["tallies_total"] != 1 {
		t.Errorf("expected 1 tally, got %d", snap["tallies_total"])
	}
}

func TestResultFilters(t *testing.T) {
	deny := &DomainDenyFilter{Deny: []string{"reddit.com"}}
	if deny.Keep(types.SearchResult{URL: "https://www.reddit.com/r/nfl"}) {
		t.Error("deny filter kept a denied domain")
	}
	if !deny.Keep(types.SearchResult{URL: "https://example.com/a"}) {
		t.Error("deny filter dropped an unrelated domain")
	}

	allow := &DomainAllowFilter{}
	if !allow.Keep(types.SearchResult{URL: "https://anything.example.com"}) {
		t.Error("empty allow list should keep everything")
	}
	allow.Allow = []string{"espn.com"}
	if allow.Keep(types.SearchResult{URL: "https://example.com/a"}) {
		t.Error("allow filter kept an unlisted domain")
	}

	dedup := NewDedupFilter()
	r := types.SearchResult{URL: "https://example.com/a"}
	if !dedup.Keep(r) {
		t.Error("dedup dropped first occurrence")
	}
	if dedup.Keep(r) {
		t.Error("dedup kept duplicate")
	}
}
