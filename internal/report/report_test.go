package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"picktally/internal/types"
)

func sampleTally() *types.Tally {
	return &types.Tally{
		Query:            "Texans vs 49ers prediction",
		TeamALabel:       "Texans",
		TeamBLabel:       "49ers",
		Days:             5,
		ResultsRequested: 50,
		VotesTeamA:       3,
		VotesTeamB:       1,
		Ambiguous:        2,
		Sources: []types.SourceRow{
			{
				PublishedUTC: "2025-01-02T15:00:00Z",
				Domain:       "example.com",
				URL:          "https://example.com/preview",
				ResultTitle:  "Texans vs 49ers preview",
				PageTitle:    "Game preview",
				Snippet:      "Who wins Sunday?",
				Winner:       types.WinnerTeamA,
				WinnerMethod: "explicit",
				MatchPhrase:  "Pick: Texans",
			},
			{
				PublishedUTC: "2025-01-01T09:30:00Z",
				Domain:       "sports.example.org",
				URL:          "https://sports.example.org/tale-of-the-tape",
				Winner:       types.WinnerAmbiguous,
				WinnerMethod: "none",
			},
		},
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	tally := sampleTally()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, tally); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	rows, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(rows) != len(tally.Sources) {
		t.Fatalf("expected %d rows, got %d", len(tally.Sources), len(rows))
	}
	if rows[0] != tally.Sources[0] {
		t.Errorf("row mismatch:\n got %+v\nwant %+v", rows[0], tally.Sources[0])
	}
}

func TestWriteCSVEmptyTally(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, &types.Tally{}); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected header only, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "published_utc,domain,url") {
		t.Errorf("unexpected header: %q", lines[0])
	}
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	if err := WriteCSVFile(path, sampleTally()); err != nil {
		t.Fatalf("WriteCSVFile failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, sampleTally()); err != nil {
		t.Fatalf("WriteMarkdown failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Prediction Tally – last 5 days",
		"- **Texans**: 3",
		"- **49ers**: 1",
		"- Ambiguous/Unclear (excluded): 2",
		"## Sources",
		"**Game preview** (example.com)",
		"winner: A via explicit",
		"<https://example.com/preview>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}

	// The second source has no page title so the result title shows.
	// Here both are empty, which still renders the bullet.
	if !strings.Contains(out, "(sports.example.org)") {
		t.Errorf("markdown missing second source:\n%s", out)
	}
}

func TestWriteMarkdownNoSources(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, &types.Tally{Days: 5}); err != nil {
		t.Fatalf("WriteMarkdown failed: %v", err)
	}
	if got := buf.String(); got != "# Prediction Tally (No eligible sources)\n" {
		t.Errorf("unexpected empty-tally markdown: %q", got)
	}
}

func TestWriteText(t *testing.T) {
	tally := sampleTally()
	tally.FetchFailures = 2

	var buf bytes.Buffer
	if err := WriteText(&buf, tally); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"=== Prediction Tally (last 5 days) ===",
		"Texans: 3",
		"49ers: 1",
		"Ambiguous/Unclear (excluded): 2",
		"Fetch failures (skipped): 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteTextNoFailures(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleTally()); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	if strings.Contains(buf.String(), "Fetch failures") {
		t.Errorf("text summary should omit failure line when zero:\n%s", buf.String())
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleTally()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var decoded types.Tally
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding json: %v", err)
	}
	if decoded.VotesTeamA != 3 || decoded.TeamBLabel != "49ers" {
		t.Errorf("unexpected decoded tally: %+v", decoded)
	}
	if len(decoded.Sources) != 2 {
		t.Errorf("expected 2 sources, got %d", len(decoded.Sources))
	}
}
