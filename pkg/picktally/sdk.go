// Package picktally provides a public SDK for embedding prediction
// tallies as a library.
//
// Example usage:
//
//	client, err := picktally.New(
//	    picktally.WithProvider("serper"),
//	    picktally.WithResults(50),
//	    picktally.WithDays(5),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	tally, err := client.Tally(ctx,
//	    "Texans vs 49ers prediction",
//	    "Houston Texans,Texans,Houston",
//	    "San Francisco 49ers,49ers,San Francisco,Niners",
//	)
package picktally

import (
	"context"
	"log/slog"
	"os"
	"time"

	"picktally/internal/config"
	"picktally/internal/fetcher"
	"picktally/internal/pipeline"
	"picktally/internal/search"
	"picktally/internal/types"
)

// Tally is the aggregate result of one run.
type Tally = types.Tally

// SourceRow is one per-article line of the tally.
type SourceRow = types.SourceRow

// Client runs prediction tallies with a fixed configuration.
type Client struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider search.Provider
	fetch    fetcher.Fetcher

	// ownsFetcher is false when the fetcher was injected.
	ownsFetcher bool
}

// Option configures a Client.
type Option func(*Client)

// WithProvider selects the search provider ("serper" or "serpapi").
func WithProvider(name string) Option {
	return func(c *Client) { c.cfg.Search.Provider = name }
}

// WithAPIKey sets the search API key explicitly instead of reading it
// from the environment.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.cfg.Search.APIKey = key }
}

// WithResults sets how many search results to request per run.
func WithResults(n int) Option {
	return func(c *Client) { c.cfg.Search.Results = n }
}

// WithDays sets the recency window in days.
func WithDays(n int) Option {
	return func(c *Client) { c.cfg.Filter.Days = n }
}

// WithAllow restricts fetching to domains containing one of the
// entries.
func WithAllow(domains ...string) Option {
	return func(c *Client) { c.cfg.Filter.Allow = domains }
}

// WithDeny excludes domains containing one of the entries.
func WithDeny(domains ...string) Option {
	return func(c *Client) { c.cfg.Filter.Deny = domains }
}

// WithFetcherType selects the page fetcher ("http" or "browser").
func WithFetcherType(t string) Option {
	return func(c *Client) { c.cfg.Fetcher.Type = t }
}

// WithConcurrency sets how many pages are fetched in parallel.
func WithConcurrency(n int) Option {
	return func(c *Client) { c.cfg.Fetcher.Concurrency = n }
}

// WithDelay sets the politeness delay between fetches.
func WithDelay(d time.Duration) Option {
	return func(c *Client) { c.cfg.Fetcher.PolitenessDelay = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSearchProvider injects a custom search provider, bypassing the
// provider/API-key configuration.
func WithSearchProvider(p search.Provider) Option {
	return func(c *Client) { c.provider = p }
}

// WithFetcher injects a custom page fetcher. The client will not close
// an injected fetcher.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *Client) { c.fetch = f }
}

// New creates a Client. Unless a provider is injected, the API key is
// resolved up front so a misconfigured client fails before any run.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		cfg:    config.DefaultConfig(),
		logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := config.Validate(c.cfg); err != nil {
		return nil, err
	}

	if c.provider == nil {
		key, err := c.cfg.ResolveAPIKey()
		if err != nil {
			return nil, err
		}
		provider, err := search.New(&c.cfg.Search, key, c.logger)
		if err != nil {
			return nil, err
		}
		c.provider = provider
	}

	if c.fetch == nil {
		var (
			f   fetcher.Fetcher
			err error
		)
		switch c.cfg.Fetcher.Type {
		case "browser":
			var opts []fetcher.BrowserOption
			if c.cfg.Proxy.Enabled {
				opts = append(opts, fetcher.WithBrowserProxy(fetcher.NewProxyManager(&c.cfg.Proxy, c.logger)))
			}
			f, err = fetcher.NewBrowserFetcher(c.cfg, c.logger, opts...)
		default:
			f, err = fetcher.NewHTTPFetcher(c.cfg, c.logger)
		}
		if err != nil {
			return nil, err
		}
		c.fetch = f
		c.ownsFetcher = true
	}

	return c, nil
}

// Tally runs one prediction tally. Team specs are comma-separated
// synonym lists; the first entry is the display label.
func (c *Client) Tally(ctx context.Context, query, teamA, teamB string) (*Tally, error) {
	a, err := types.ParseTeam(teamA)
	if err != nil {
		return nil, err
	}
	b, err := types.ParseTeam(teamB)
	if err != nil {
		return nil, err
	}

	q := types.Query{
		Search:  query,
		Matchup: types.Matchup{TeamA: a, TeamB: b},
		Results: c.cfg.Search.Results,
		Days:    c.cfg.Filter.Days,
		Allow:   c.cfg.Filter.Allow,
		Deny:    c.cfg.Filter.Deny,
	}

	pipe := pipeline.New(c.provider, c.fetch, c.cfg, c.logger)
	return pipe.Run(ctx, q)
}

// Close releases the client's fetcher resources.
func (c *Client) Close() error {
	if c.ownsFetcher && c.fetch != nil {
		return c.fetch.Close()
	}
	return nil
}
