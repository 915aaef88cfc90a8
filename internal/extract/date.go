package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/araddon/dateparse"
	"golang.org/x/net/html"

	"picktally/internal/types"
)

// metaDateNames are the meta tag property/name values checked for a
// publish date, in priority order.
var metaDateNames = []string{
	"article:published_time",
	"og:published_time",
	"pubdate",
	"publishdate",
	"parsely-pub-date",
}

// jsonldDateKeys are the JSON-LD fields checked for a publish date.
var jsonldDateKeys = []string{"datePublished", "dateModified", "uploadDate"}

// PublishedDate extracts the page's publish date, normalized to UTC.
// Sources, first match wins: <time datetime>, JSON-LD, meta tags.
func PublishedDate(body []byte) (*time.Time, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	if node := htmlquery.FindOne(doc, "//time[@datetime]"); node != nil {
		if ts := normalizeDate(htmlquery.SelectAttr(node, "datetime")); ts != nil {
			return ts, nil
		}
	}

	if ts := jsonldDate(doc); ts != nil {
		return ts, nil
	}

	for _, name := range metaDateNames {
		expr := fmt.Sprintf("//meta[@property=%q or @name=%q]", name, name)
		if node := htmlquery.FindOne(doc, expr); node != nil {
			if ts := normalizeDate(htmlquery.SelectAttr(node, "content")); ts != nil {
				return ts, nil
			}
		}
	}

	return nil, types.ErrNoDate
}

// jsonldDate scans application/ld+json blocks for a date field. Both a
// single object and a top-level list are accepted; malformed blocks
// are skipped.
func jsonldDate(doc *html.Node) *time.Time {
	for _, node := range htmlquery.Find(doc, "//script[@type='application/ld+json']") {
		raw := htmlquery.InnerText(node)

		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			continue
		}

		objects, ok := parsed.([]any)
		if !ok {
			objects = []any{parsed}
		}

		for _, obj := range objects {
			m, ok := obj.(map[string]any)
			if !ok {
				continue
			}
			for _, key := range jsonldDateKeys {
				if val, ok := m[key].(string); ok {
					if ts := normalizeDate(val); ts != nil {
						return ts
					}
				}
			}
		}
	}
	return nil
}

// normalizeDate parses a date string and converts it to UTC. Strings
// without timezone information are taken as UTC.
func normalizeDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	ts, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	utc := ts.UTC()
	return &utc
}

// WithinWindow reports whether ts falls inside the last `days` days
// relative to now. A nil timestamp never qualifies; the recency filter
// treats undated articles as too old.
func WithinWindow(ts *time.Time, days int, now time.Time) bool {
	if ts == nil {
		return false
	}
	return !ts.Before(now.Add(-time.Duration(days) * 24 * time.Hour))
}
