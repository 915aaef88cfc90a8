package extract

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"picktally/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const articleHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Texans vs 49ers Prediction — Week 5</title>
    <meta property="article:published_time" content="2026-08-27T14:30:00Z">
</head>
<body>
    <nav>Home | NFL | NBA</nav>
    <header>Site header</header>
    <script>var ads = true;</script>
    <article>
        <h1>Texans vs 49ers Prediction</h1>
        <p>Our pick: Texans to win outright on Sunday.</p>
    </article>
    <footer>Copyright</footer>
</body>
</html>`

func htmlResponse(t *testing.T, url, body string) *types.Response {
	t.Helper()
	req, err := types.NewRequest(url)
	if err != nil {
		t.Fatal(err)
	}
	return &types.Response{
		Request:     req,
		StatusCode:  200,
		Body:        []byte(body),
		ContentType: "text/html; charset=utf-8",
		FetchedAt:   time.Now(),
	}
}

func TestExtractArticle(t *testing.T) {
	e := New(testLogger)
	resp := htmlResponse(t, "https://www.espn.com/story", articleHTML)
	result := types.SearchResult{
		URL:     "https://www.espn.com/story",
		Title:   "Result title",
		Snippet: "Snippet text",
	}

	article, err := e.Article(resp, result)
	if err != nil {
		t.Fatalf("extract error: %v", err)
	}
	if article.PageTitle != "Texans vs 49ers Prediction — Week 5" {
		t.Errorf("unexpected page title %q", article.PageTitle)
	}
	if article.Domain != "www.espn.com" {
		t.Errorf("unexpected domain %q", article.Domain)
	}
	if article.Published == nil {
		t.Fatal("expected publish date")
	}
	if article.Published.Format("2006-01-02") != "2026-08-27" {
		t.Errorf("unexpected publish date %s", article.Published)
	}
	if !strings.Contains(article.Text, "Texans to win outright") {
		t.Errorf("body text missing article content: %q", article.Text)
	}
	if strings.Contains(article.Text, "Site header") || strings.Contains(article.Text, "var ads") {
		t.Errorf("chrome elements should be stripped: %q", article.Text)
	}
}

func TestExtractRejectsNonHTML(t *testing.T) {
	e := New(testLogger)
	resp := htmlResponse(t, "https://example.com/report.pdf", "%PDF-1.4")
	resp.ContentType = "application/pdf"

	if _, err := e.Article(resp, types.SearchResult{URL: "https://example.com/report.pdf"}); err == nil {
		t.Error("expected error for non-HTML content")
	}
}

func TestExtractUndatedArticle(t *testing.T) {
	e := New(testLogger)
	resp := htmlResponse(t, "https://example.com/a", "<html><head><title>T</title></head><body>text</body></html>")

	article, err := e.Article(resp, types.SearchResult{URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("extract error: %v", err)
	}
	if article.Published != nil {
		t.Errorf("expected nil publish date, got %s", article.Published)
	}
}

func TestPublishedDateFromTimeTag(t *testing.T) {
	body := `<html><body><time datetime="2026-08-25T10:00:00-05:00">Aug 25</time></body></html>`
	ts, err := PublishedDate([]byte(body))
	if err != nil {
		t.Fatalf("expected date, got error: %v", err)
	}
	if ts.Location() != time.UTC {
		t.Error("date should be normalized to UTC")
	}
	if ts.Hour() != 15 {
		t.Errorf("expected 15:00 UTC, got %s", ts)
	}
}

func TestPublishedDateFromJSONLD(t *testing.T) {
	body := `<html><head>
<script type="application/ld+json">{"@type":"NewsArticle","datePublished":"2026-08-26T08:00:00Z"}</script>
</head><body></body></html>`
	ts, err := PublishedDate([]byte(body))
	if err != nil {
		t.Fatalf("expected date, got error: %v", err)
	}
	if ts.Day() != 26 {
		t.Errorf("unexpected date %s", ts)
	}
}

func TestPublishedDateFromJSONLDList(t *testing.T) {
	body := `<html><head>
<script type="application/ld+json">[{"@type":"WebPage"},{"@type":"NewsArticle","dateModified":"2026-08-24T00:00:00Z"}]</script>
</head><body></body></html>`
	ts, err := PublishedDate([]byte(body))
	if err != nil {
		t.Fatalf("expected date, got error: %v", err)
	}
	if ts.Day() != 24 {
		t.Errorf("unexpected date %s", ts)
	}
}

func TestPublishedDateFromMeta(t *testing.T) {
	cases := []string{
		`<meta property="article:published_time" content="2026-08-23T12:00:00Z">`,
		`<meta name="pubdate" content="2026-08-23">`,
		`<meta name="parsely-pub-date" content="2026-08-23T12:00:00Z">`,
	}
	for _, meta := range cases {
		body := "<html><head>" + meta + "</head><body></body></html>"
		ts, err := PublishedDate([]byte(body))
		if err != nil {
			t.Errorf("%s: expected date, got error: %v", meta, err)
			continue
		}
		if ts.Day() != 23 {
			t.Errorf("%s: unexpected date %s", meta, ts)
		}
	}
}

func TestPublishedDateMalformedJSONLDSkipped(t *testing.T) {
	body := `<html><head>
<script type="application/ld+json">{not json}</script>
<meta name="pubdate" content="2026-08-22">
</head><body></body></html>`
	ts, err := PublishedDate([]byte(body))
	if err != nil {
		t.Fatalf("expected fallback to meta, got error: %v", err)
	}
	if ts.Day() != 22 {
		t.Errorf("unexpected date %s", ts)
	}
}

func TestPublishedDateNone(t *testing.T) {
	if _, err := PublishedDate([]byte("<html><body>nothing here</body></html>")); err == nil {
		t.Error("expected error when no date present")
	}
}

func TestWithinWindow(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	fresh := now.Add(-2 * 24 * time.Hour)
	stale := now.Add(-10 * 24 * time.Hour)
	boundary := now.Add(-5 * 24 * time.Hour)

	if !WithinWindow(&fresh, 5, now) {
		t.Error("2-day-old article should be inside a 5-day window")
	}
	if WithinWindow(&stale, 5, now) {
		t.Error("10-day-old article should be outside a 5-day window")
	}
	if !WithinWindow(&boundary, 5, now) {
		t.Error("article exactly at the boundary should be included")
	}
	if WithinWindow(nil, 5, now) {
		t.Error("undated article must never be within the window")
	}
}
