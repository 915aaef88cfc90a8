// Package report renders a finished tally as CSV, Markdown, JSON, or
// console text.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"

	"picktally/internal/types"
)

const textTmpl = `=== Prediction Tally (last {{.Days}} days) ===
{{.TeamALabel}}: {{.VotesTeamA}}
{{.TeamBLabel}}: {{.VotesTeamB}}
Ambiguous/Unclear (excluded): {{.Ambiguous}}
{{- if gt .FetchFailures 0}}
Fetch failures (skipped): {{.FetchFailures}}
{{- end}}
`

// WriteText writes a human-readable console summary to w.
func WriteText(w io.Writer, tally *types.Tally) error {
	t, err := template.New("text").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parsing text template: %w", err)
	}
	if err := t.Execute(w, tally); err != nil {
		return fmt.Errorf("rendering text summary: %w", err)
	}
	return nil
}

// WriteJSON writes the full tally to w as indented JSON.
func WriteJSON(w io.Writer, tally *types.Tally) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tally); err != nil {
		return fmt.Errorf("encoding tally json: %w", err)
	}
	return nil
}
