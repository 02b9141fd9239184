package ingestion

import (
	"encoding/csv"
	"io"
	"strings"

	"pharma-margin/internal/errors"
)

// RawRow is a positional record with no meaning attached yet
type RawRow struct {
	// Line is the 1-based source line of the first cell
	Line  int
	Cells []string
}

// IsBlank reports whether every cell is empty after trimming
func (r RawRow) IsBlank() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// RawTable is the output of the reader
type RawTable struct {
	Format Format

	// Header is kept for display only; mapping is positional
	Header []string

	// Width is the header width up to its last non-empty cell
	Width int

	Rows []RawRow

	// BlankRows and NarrowRows count records that were dropped
	BlankRows  int
	NarrowRows int
}

// buildTable applies the width rules shared by text and spreadsheet sources.
// records[0] is the header.
func buildTable(format Format, records []RawRow, minWidth int) (*RawTable, error) {
	if len(records) == 0 {
		return nil, errors.SchemaTooNarrow(0, minWidth, nil)
	}

	header := records[0].Cells
	width := len(header)
	for width > 0 && strings.TrimSpace(header[width-1]) == "" {
		width--
	}
	if width < minWidth {
		return nil, errors.SchemaTooNarrow(width, minWidth, nil)
	}

	table := &RawTable{
		Format: format,
		Header: header,
		Width:  width,
	}
	for _, rec := range records[1:] {
		switch {
		case rec.IsBlank():
			table.BlankRows++
		case len(rec.Cells) < minWidth:
			table.NarrowRows++
		default:
			table.Rows = append(table.Rows, rec)
		}
	}

	if len(table.Rows) == 0 && table.NarrowRows > 0 {
		return nil, errors.SchemaTooNarrow(width, minWidth, nil).
			WithContext("narrow_rows", table.NarrowRows)
	}
	return table, nil
}

// Read parses lines from the candidate's header row onward
func (c FormatCandidate) Read(lines []string, minWidth int) (*RawTable, error) {
	body := strings.Join(lines[c.HeaderRow:], "\n")

	r := csv.NewReader(strings.NewReader(body))
	r.Comma = c.Delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false

	var records []RawRow
	for {
		cells, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Parsing("malformed delimited text", err).
				WithContext("candidate", c.String())
		}
		line, _ := r.FieldPos(0)
		records = append(records, RawRow{Line: c.HeaderRow + line, Cells: cells})
	}

	return buildTable(c.Format(), records, minWidth)
}

// ReadTable tries candidates in order and returns the first viable table.
// When every candidate is too narrow the preferred candidate's failure is
// reported.
func ReadTable(candidates []FormatCandidate, lines []string, minWidth int) (*RawTable, error) {
	if len(candidates) == 0 {
		return nil, errors.Config("no format candidates")
	}

	var firstErr error
	var narrow *errors.Error
	for _, c := range candidates {
		table, err := c.Read(lines, minWidth)
		if err == nil {
			return table, nil
		}
		if e, ok := errors.As(err); ok && e.Type == errors.TypeSchemaTooNarrow {
			if narrow == nil {
				narrow = e.WithContext("delimiter", string(c.Delimiter))
			}
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if narrow != nil {
		return nil, narrow
	}
	return nil, firstErr
}
