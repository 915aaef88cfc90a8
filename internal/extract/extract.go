// Package extract turns fetched pages into Articles: plain body text
// for the winner heuristics, and a best-effort publish date for the
// recency filter.
package extract

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"picktally/internal/types"
)

// maxTextLen caps extracted body text. Prediction verdicts live in the
// article body, so the cap is generous; anything past it is boilerplate.
const maxTextLen = 20000

// Extractor converts fetched responses into Articles.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With("component", "extractor")}
}

// Article extracts title, plain text, and publish date from a fetched
// page. The search result supplies the snippet and result title; the
// page itself supplies everything else. Published stays nil when no
// date could be detected.
func (e *Extractor) Article(resp *types.Response, result types.SearchResult) (*types.Article, error) {
	if !resp.IsHTML() {
		return nil, &types.ParseError{URL: result.URL, Err: types.ErrNotHTML}
	}

	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: result.URL, Err: err}
	}

	published, err := PublishedDate(resp.Body)
	if err != nil {
		// Undated pages are still returned; the filter drops them later.
		e.logger.Debug("no publish date", "url", result.URL, "reason", err)
	}

	article := &types.Article{
		URL:         result.URL,
		Domain:      result.Domain(),
		ResultTitle: result.Title,
		PageTitle:   strings.TrimSpace(doc.Find("title").First().Text()),
		Snippet:     result.Snippet,
		Text:        bodyText(doc),
		Published:   published,
		FetchedAt:   resp.FetchedAt,
	}
	return article, nil
}

// bodyText returns the page's visible text with chrome elements
// stripped and whitespace collapsed.
func bodyText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, nav, footer, header, aside, .sidebar, .menu, .nav, .cookie").Remove()

	words := strings.Fields(body.Text())
	text := strings.Join(words, " ")
	if len(text) > maxTextLen {
		text = text[:maxTextLen]
	}
	return text
}
