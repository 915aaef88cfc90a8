// Package pipeline orchestrates one tally run: search, filter, fetch,
// extract, predict, aggregate.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"picktally/internal/config"
	"picktally/internal/extract"
	"picktally/internal/fetcher"
	"picktally/internal/observability"
	"picktally/internal/predict"
	"picktally/internal/search"
	"picktally/internal/types"
)

// Pipeline runs tally queries end to end. A single Pipeline is safe for
// concurrent Run calls.
type Pipeline struct {
	provider  search.Provider
	fetcher   fetcher.Fetcher
	extractor *extract.Extractor
	factory   predict.Factory
	filters   []ResultFilter
	cfg       *config.Config
	metrics   *observability.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithMetrics attaches operational counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithStrategyFactory overrides the winner-extraction strategy.
func WithStrategyFactory(f predict.Factory) Option {
	return func(p *Pipeline) { p.factory = f }
}

// WithClock overrides the time source used by the recency filter.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline.
func New(provider search.Provider, f fetcher.Fetcher, cfg *config.Config, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		provider:  provider,
		fetcher:   f,
		extractor: extract.New(logger),
		factory:   predict.DefaultFactory,
		cfg:       cfg,
		logger:    logger.With("component", "pipeline"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Use adds a result filter to the chain, ahead of the per-query
// allow/deny/dedup filters.
func (p *Pipeline) Use(f ResultFilter) {
	p.filters = append(p.filters, f)
	p.logger.Debug("filter added", "name", f.Name(), "position", len(p.filters))
}

// outcome is the processing result for one search hit. At most one of
// the fields is set.
type outcome struct {
	row         *types.SourceRow
	fetchFailed bool
	filtered    bool
	undated     bool
}

// Run executes one tally query. Per-URL failures are counted and
// skipped; only an invalid query, a search provider error, or context
// cancellation fails the run.
func (p *Pipeline) Run(ctx context.Context, q types.Query) (*types.Tally, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	strategy := p.factory(q.Matchup)

	recency := search.RecencyBias(q.Days)
	p.logger.Info("searching",
		"provider", p.provider.Name(),
		"query", q.Search,
		"results", q.Results,
		"recency", recency)

	if p.metrics != nil {
		p.metrics.SearchesTotal.Add(1)
	}
	results, err := p.provider.Search(ctx, q.Search, q.Results, recency)
	if err != nil {
		if p.metrics != nil {
			p.metrics.SearchesFailed.Add(1)
		}
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.ResultsTotal.Add(int64(len(results)))
	}

	eligible := p.applyFilters(q, results)
	p.logger.Info("results filtered", "total", len(results), "eligible", len(eligible))

	outcomes := make([]outcome, len(eligible))

	var gate <-chan time.Time
	if d := p.cfg.Fetcher.PolitenessDelay; d > 0 {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		gate = ticker.C
	}

	concurrency := p.cfg.Fetcher.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, r := range eligible {
		g.Go(func() error {
			if gate != nil {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case <-gate:
				}
			}
			outcomes[i] = p.processResult(gctx, r, q, strategy)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tally := p.aggregate(q, outcomes)
	if p.metrics != nil {
		p.metrics.TalliesTotal.Add(1)
	}
	p.logger.Info("tally complete",
		"sources", len(tally.Sources),
		q.Matchup.TeamA.Label, tally.VotesTeamA,
		q.Matchup.TeamB.Label, tally.VotesTeamB,
		"ambiguous", tally.Ambiguous,
		"fetch_failures", tally.FetchFailures)
	return tally, nil
}

// applyFilters runs every result through the filter chain in order,
// preserving the provider's ranking.
func (p *Pipeline) applyFilters(q types.Query, results []types.SearchResult) []types.SearchResult {
	filters := make([]ResultFilter, 0, len(p.filters)+3)
	filters = append(filters, p.filters...)
	filters = append(filters,
		&DomainAllowFilter{Allow: q.Allow},
		&DomainDenyFilter{Deny: q.Deny},
		NewDedupFilter(),
	)

	eligible := make([]types.SearchResult, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		keep := true
		for _, f := range filters {
			if !f.Keep(r) {
				p.logger.Debug("result dropped", "filter", f.Name(), "url", r.URL)
				keep = false
				break
			}
		}
		if keep {
			eligible = append(eligible, r)
		}
	}
	return eligible
}

// processResult fetches one result, extracts the article, applies the
// recency window, and runs winner extraction.
func (p *Pipeline) processResult(ctx context.Context, r types.SearchResult, q types.Query, strategy predict.Strategy) outcome {
	req, err := types.NewRequest(r.URL)
	if err != nil {
		p.logger.Warn("invalid result url", "url", r.URL, "error", err)
		return outcome{fetchFailed: true}
	}
	req.Timeout = p.cfg.Fetcher.RequestTimeout

	if p.metrics != nil {
		p.metrics.FetchesTotal.Add(1)
	}
	resp, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		if p.metrics != nil {
			p.metrics.FetchesFailed.Add(1)
		}
		p.logger.Debug("fetch failed", "url", r.URL, "error", err)
		return outcome{fetchFailed: true}
	}
	if p.metrics != nil {
		p.metrics.BytesDownloaded.Add(int64(len(resp.Body)))
	}

	article, err := p.extractor.Article(resp, r)
	if err != nil {
		if p.metrics != nil {
			p.metrics.FetchesFailed.Add(1)
		}
		p.logger.Debug("extraction failed", "url", r.URL, "error", err)
		return outcome{fetchFailed: true}
	}

	if !extract.WithinWindow(article.Published, q.Days, p.now()) {
		if article.Published == nil {
			if p.metrics != nil {
				p.metrics.ArticlesUndated.Add(1)
			}
			p.logger.Debug("article dropped, no publish date", "url", r.URL)
			return outcome{filtered: true, undated: true}
		}
		if p.metrics != nil {
			p.metrics.ArticlesFiltered.Add(1)
		}
		p.logger.Debug("article dropped, outside window",
			"url", r.URL, "published", article.Published, "days", q.Days)
		return outcome{filtered: true}
	}
	if p.metrics != nil {
		p.metrics.ArticlesKept.Add(1)
	}

	text := strings.Join([]string{article.PageTitle, article.Snippet, article.Text}, " ")
	pred := strategy.Predict(text)
	pred.URL = article.URL
	if p.metrics != nil {
		p.metrics.RecordVote(string(pred.Winner))
	}

	return outcome{row: &types.SourceRow{
		PublishedUTC: article.Published.UTC().Format(time.RFC3339),
		Domain:       article.Domain,
		URL:          pred.URL,
		ResultTitle:  article.ResultTitle,
		PageTitle:    article.PageTitle,
		Snippet:      article.Snippet,
		Winner:       pred.Winner,
		WinnerMethod: pred.Method,
		MatchPhrase:  pred.MatchPhrase,
	}}
}

// aggregate folds the per-result outcomes into a Tally, keeping the
// provider's result order in Sources.
func (p *Pipeline) aggregate(q types.Query, outcomes []outcome) *types.Tally {
	tally := &types.Tally{
		Query:            q.Search,
		TeamALabel:       q.Matchup.TeamA.Label,
		TeamBLabel:       q.Matchup.TeamB.Label,
		Days:             q.Days,
		ResultsRequested: q.Results,
		Sources:          []types.SourceRow{},
	}
	for _, o := range outcomes {
		switch {
		case o.row != nil:
			tally.Sources = append(tally.Sources, *o.row)
			switch o.row.Winner {
			case types.WinnerTeamA:
				tally.VotesTeamA++
			case types.WinnerTeamB:
				tally.VotesTeamB++
			default:
				tally.Ambiguous++
			}
		case o.fetchFailed:
			tally.FetchFailures++
		}
	}
	return tally
}
