package ingestion

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"pharma-margin/internal/errors"
)

var zipMagic = []byte("PK\x03\x04")

// IsSpreadsheet reports whether a source should go through the workbook reader
func IsSpreadsheet(path string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return bytes.HasPrefix(data, zipMagic)
}

// ReadSpreadsheet reads the first sheet carrying a header row. Cells are
// taken raw so numeric rates are not reformatted by the workbook's styles.
func ReadSpreadsheet(data []byte, opts Options) (*RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Parsing("open workbook", err)
	}
	defer func() { _ = f.Close() }()

	sniffer := NewSniffer(opts)
	var previewLines []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, errors.Parsing("read sheet "+sheet, err)
		}

		lines := make([]string, len(rows))
		for i, cells := range rows {
			lines[i] = strings.Join(cells, " ")
		}
		if previewLines == nil {
			previewLines = lines
		}

		header, err := sniffer.FindHeader(lines)
		if err != nil {
			continue
		}

		// excelize drops trailing empty cells; pad data rows back to the header width
		width := len(rows[header])
		records := make([]RawRow, 0, len(rows)-header)
		for i := header; i < len(rows); i++ {
			cells := rows[i]
			if len(cells) > 0 && len(cells) < width {
				cells = append(cells, make([]string, width-len(cells))...)
			}
			records = append(records, RawRow{Line: i + 1, Cells: cells})
		}
		format := Format{Kind: KindSpreadsheet, HeaderRow: header, Sheet: sheet}
		return buildTable(format, records, opts.MinWidth())
	}

	return nil, errors.HeaderNotFound(opts.ClusterMarker, preview(previewLines, opts.PreviewLines))
}
