package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"picktally/internal/types"
)

const serperEndpoint = "https://google.serper.dev/search"

// Serper queries the serper.dev Google search API.
type Serper struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewSerper creates a serper.dev provider.
func NewSerper(apiKey string, timeout time.Duration, logger *slog.Logger) *Serper {
	return &Serper{
		apiKey:   apiKey,
		endpoint: serperEndpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "serper"),
	}
}

func (s *Serper) Name() string { return "serper" }

// Search POSTs the query and returns the organic results.
func (s *Serper) Search(ctx context.Context, query string, num int, recency string) ([]types.SearchResult, error) {
	payload := map[string]any{
		"q":   query,
		"num": num,
	}
	if recency != "" {
		payload["tbs"] = recency
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &types.ProviderError{Provider: s.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &types.ProviderError{Provider: s.Name(), Err: err}
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

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
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &types.ProviderError{Provider: s.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}

	results := make([]types.SearchResult, 0, len(parsed.Organic))
	for _, it := range parsed.Organic {
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
