package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"picktally/internal/types"
)

// csvHeader defines the CSV column order.
var csvHeader = []string{
	"published_utc",
	"domain",
	"url",
	"result_title",
	"page_title",
	"snippet",
	"winner",
	"winner_method",
	"match_phrase",
}

// WriteCSV writes the source rows to w. The header row is written even
// when the tally holds no sources, so an empty run still produces a
// well-formed file.
func WriteCSV(w io.Writer, tally *types.Tally) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, row := range tally.Sources {
		record := []string{
			row.PublishedUTC,
			row.Domain,
			row.URL,
			row.ResultTitle,
			row.PageTitle,
			row.Snippet,
			string(row.Winner),
			row.WinnerMethod,
			row.MatchPhrase,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// WriteCSVFile writes the source rows to path, truncating any existing
// file.
func WriteCSVFile(path string, tally *types.Tally) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv file: %w", err)
	}
	if err := WriteCSV(f, tally); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV parses a file previously produced by WriteCSV back into
// source rows. Malformed rows are skipped.
func ReadCSV(r io.Reader) ([]types.SourceRow, error) {
	cr := csv.NewReader(r)

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return []types.SourceRow{}, nil
		}
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	var rows []types.SourceRow
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row: %w", err)
		}
		if len(record) != len(csvHeader) {
			continue
		}
		rows = append(rows, types.SourceRow{
			PublishedUTC: record[0],
			Domain:       record[1],
			URL:          record[2],
			ResultTitle:  record[3],
			PageTitle:    record[4],
			Snippet:      record[5],
			Winner:       types.Winner(record[6]),
			WinnerMethod: record[7],
			MatchPhrase:  record[8],
		})
	}
	return rows, nil
}
