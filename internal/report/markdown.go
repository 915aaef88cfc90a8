package report

import (
	"fmt"
	"io"
	"os"
	"text/template"

	"picktally/internal/types"
)

const markdownTmpl = `# Prediction Tally – last {{.Days}} days

- **{{.TeamALabel}}**: {{.VotesTeamA}}
- **{{.TeamBLabel}}**: {{.VotesTeamB}}
- Ambiguous/Unclear (excluded): {{.Ambiguous}}

## Sources
{{- range .Sources}}
- {{.PublishedUTC}} — **{{if .PageTitle}}{{.PageTitle}}{{else}}{{.ResultTitle}}{{end}}** ({{.Domain}}) — winner: {{.Winner}} via {{.WinnerMethod}}

  <{{.URL}}>
{{end}}`

// WriteMarkdown writes the Markdown summary to w. A tally with no
// sources produces only a heading.
func WriteMarkdown(w io.Writer, tally *types.Tally) error {
	if len(tally.Sources) == 0 {
		_, err := io.WriteString(w, "# Prediction Tally (No eligible sources)\n")
		return err
	}

	t, err := template.New("markdown").Parse(markdownTmpl)
	if err != nil {
		return fmt.Errorf("parsing markdown template: %w", err)
	}
	if err := t.Execute(w, tally); err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}
	return nil
}

// WriteMarkdownFile writes the Markdown summary to path.
func WriteMarkdownFile(path string, tally *types.Tally) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating markdown file: %w", err)
	}
	if err := WriteMarkdown(f, tally); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
