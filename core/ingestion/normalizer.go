package ingestion

import (
	"pharma-margin/core/types"
	"pharma-margin/internal/errors"
)

// NormalizedTable is the typed form of a RawTable
type NormalizedTable struct {
	Schema      types.ColumnSchema
	Rows        []types.RateRow
	Diagnostics Diagnostics
}

// SchemaNormalizer maps positional columns to canonical fields and coerces values
type SchemaNormalizer struct {
	schema    SchemaOptions
	rates     RatePolicy
	validator *RowValidator
}

// NewSchemaNormalizer creates a normalizer
func NewSchemaNormalizer(opts Options) *SchemaNormalizer {
	return &SchemaNormalizer{
		schema:    opts.Schema,
		rates:     opts.Rates,
		validator: NewRowValidator(),
	}
}

// Normalize converts raw records. Rows breaking the band invariant are
// dropped and reported in the diagnostics.
func (n *SchemaNormalizer) Normalize(raw *RawTable) (*NormalizedTable, error) {
	schema, ok := n.schema.Resolve(raw.Width)
	if !ok {
		return nil, errors.SchemaTooNarrow(raw.Width, n.schema.Compact().Width(), nil)
	}

	diag := Diagnostics{
		Format:     raw.Format,
		Schema:     schema.Version,
		Columns:    schema.Fields(),
		RowsRead:   len(raw.Rows),
		BlankRows:  raw.BlankRows,
		NarrowRows: raw.NarrowRows,
	}
	if raw.Width > schema.Width() {
		diag.ExtraColumns = raw.Width - schema.Width()
	}

	rows := make([]types.RateRow, 0, len(raw.Rows))
	for _, rec := range raw.Rows {
		row := n.NormalizeRow(rec, schema)
		for _, v := range row.Rates {
			switch v.Status {
			case types.RateIneligible:
				diag.IneligibleCells++
			case types.RateMissing:
				diag.MissingCells++
			}
		}
		rows = append(rows, row)
	}

	kept, flagged := n.validator.Validate(rows)
	diag.RowsKept = len(kept)
	diag.Flagged = flagged

	return &NormalizedTable{Schema: schema, Rows: kept, Diagnostics: diag}, nil
}

// NormalizeRow coerces one record under schema
func (n *SchemaNormalizer) NormalizeRow(rec RawRow, schema types.ColumnSchema) types.RateRow {
	cell := func(i int) string {
		if i < len(rec.Cells) {
			return rec.Cells[i]
		}
		return ""
	}

	row := types.RateRow{
		Line:       rec.Line,
		Cluster:    types.NormalizeIdentity(cell(0)),
		SupplyMode: types.NormalizeIdentity(cell(1)),
		RevenueMin: CleanCurrency(cell(2)),
		RevenueMax: CleanCurrency(cell(3)),
		Rates:      make(map[types.RateKey]types.RateValue, len(schema.Suppliers)*2),
	}
	for _, col := range schema.RateColumns() {
		row.Rates[col.Key] = n.rates.Clean(cell(col.Index))
	}
	if w := schema.Width(); len(rec.Cells) > w {
		row.Extra = append([]string(nil), rec.Cells[w:]...)
	}
	return row
}
