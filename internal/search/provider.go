// Package search discovers candidate prediction articles through a
// third-party search API. Two providers are supported behind the same
// interface; which one runs is a configuration choice made at startup.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"picktally/internal/config"
	"picktally/internal/types"
)

// Provider abstracts a search API that returns organic results for a
// query. The num parameter caps the number of results returned; recency
// is a provider-level freshness bias (see RecencyBias) and never
// replaces the pipeline's strict date filter.
type Provider interface {
	Search(ctx context.Context, query string, num int, recency string) ([]types.SearchResult, error)

	// Name returns the provider identifier.
	Name() string
}

// New constructs the configured provider. The API key must already be
// resolved; New performs no network calls.
func New(cfg *config.SearchConfig, apiKey string, logger *slog.Logger) (Provider, error) {
	switch cfg.Provider {
	case "serper":
		return NewSerper(apiKey, cfg.Timeout, logger), nil
	case "serpapi":
		return NewSerpAPI(apiKey, cfg.Timeout, logger), nil
	default:
		return nil, &types.ConfigError{
			Field: "search.provider",
			Err:   fmt.Errorf("unknown provider %q", cfg.Provider),
		}
	}
}

// RecencyBias maps a day window to Google's tbs freshness parameter.
// The granularity is coarse (day/week/month), so results are only
// biased toward the window; the date filter downstream enforces it.
func RecencyBias(days int) string {
	switch {
	case days <= 1:
		return "qdr:d"
	case days <= 7:
		return "qdr:w"
	case days <= 31:
		return "qdr:m"
	default:
		return ""
	}
}
