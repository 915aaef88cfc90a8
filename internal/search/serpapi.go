package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"picktally/internal/types"
)

const serpapiEndpoint = "https://serpapi.com/search.json"

// SerpAPI queries the serpapi.com Google search API.
type SerpAPI struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewSerpAPI creates a serpapi.com provider.
func NewSerpAPI(apiKey string, timeout time.Duration, logger *slog.Logger) *SerpAPI {
	return &SerpAPI{
		apiKey:   apiKey,
		endpoint: serpapiEndpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "serpapi"),
	}
}

func (s *SerpAPI) Name() string { return "serpapi" }

// Search GETs the query and returns the organic results.
func (s *SerpAPI) Search(ctx context.Context, query string, num int, recency string) ([]types.SearchResult, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))
	params.Set("api_key", s.apiKey)
	if recency != "" {
		params.Set("tbs", recency)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &types.ProviderError{Provider: s.Name(), Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &types.ProviderError{Provider: s.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &types.ProviderError{
			Provider:   s.Name(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	var parsed struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &types.ProviderError{Provider: s.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}

	results := make([]types.SearchResult, 0, len(parsed.OrganicResults))
	for _, it := range parsed.OrganicResults {
		if it.Link == "" {
			continue
		}
		results = append(results, types.SearchResult{
			URL:     it.Link,
			Title:   it.Title,
			Snippet: it.Snippet,
		})
		if len(results) >= num {
			break
		}
	}

	s.logger.Debug("search complete", "query", query, "results", len(results))
	return results, nil
}
