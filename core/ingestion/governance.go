package ingestion

import (
	"go.uber.org/zap"

	"pharma-margin/core/types"
)

// FlaggedRow is a record excluded by validation
type FlaggedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Diagnostics summarizes one ingestion run
type Diagnostics struct {
	Format          Format              `json:"format"`
	Schema          types.SchemaVersion `json:"schema"`
	Columns         []string            `json:"columns"`
	RowsRead        int                 `json:"rows_read"`
	RowsKept        int                 `json:"rows_kept"`
	BlankRows       int                 `json:"blank_rows"`
	NarrowRows      int                 `json:"narrow_rows"`
	ExtraColumns    int                 `json:"extra_columns"`
	IneligibleCells int                 `json:"ineligible_cells"`
	MissingCells    int                 `json:"missing_cells"`
	Flagged         []FlaggedRow        `json:"flagged,omitempty"`
}

// Fields renders the diagnostics as log fields
func (d Diagnostics) Fields() []zap.Field {
	return []zap.Field{
		zap.String("kind", string(d.Format.Kind)),
		zap.String("encoding", d.Format.Encoding),
		zap.String("delimiter", d.Format.DelimiterName()),
		zap.Int("header_row", d.Format.HeaderRow),
		zap.String("schema", string(d.Schema)),
		zap.Int("rows_read", d.RowsRead),
		zap.Int("rows_kept", d.RowsKept),
		zap.Int("blank_rows", d.BlankRows),
		zap.Int("narrow_rows", d.NarrowRows),
		zap.Int("flagged_rows", len(d.Flagged)),
		zap.Int("ineligible_cells", d.IneligibleCells),
		zap.Int("missing_cells", d.MissingCells),
	}
}

// RowValidator enforces the row invariants before rows enter a table
type RowValidator struct{}

// NewRowValidator creates a validator
func NewRowValidator() *RowValidator {
	return &RowValidator{}
}

// Validate splits rows into kept and flagged, preserving order
func (v *RowValidator) Validate(rows []types.RateRow) ([]types.RateRow, []FlaggedRow) {
	kept := make([]types.RateRow, 0, len(rows))
	var flagged []FlaggedRow
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			flagged = append(flagged, FlaggedRow{Line: rows[i].Line, Reason: err.Error()})
			continue
		}
		kept = append(kept, rows[i])
	}
	return kept, flagged
}
