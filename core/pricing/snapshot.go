// Package pricing provides the immutable rate table, its process-wide cache
// and the profile and tier lookups run against it.
package pricing

import (
	"encoding/hex"
	"time"

	"pharma-margin/core/determinism"
	"pharma-margin/core/ingestion"
	"pharma-margin/core/types"
	"pharma-margin/internal/errors"
)

// TableID identifies a rate table by content
type TableID string

// TableSource records where a table was read from
type TableSource struct {
	Path        string                  `json:"path"`
	Signature   string                  `json:"signature"`
	Fingerprint determinism.Fingerprint `json:"fingerprint"`
}

// RateTable is IMMUTABLE after Build. Rows keep file order; the first
// matching row wins every lookup.
type RateTable struct {
	ID          TableID
	ContentHash determinism.ContentHash
	CreatedAt   time.Time

	Source      TableSource
	Format      ingestion.Format
	Schema      types.ColumnSchema
	Diagnostics ingestion.Diagnostics

	rows      []types.RateRow
	byProfile map[types.PharmacyProfile][]int
	profiles  []types.PharmacyProfile

	sealed bool
}

// TableBuilder builds a rate table
type TableBuilder struct {
	schema types.ColumnSchema
	source TableSource
	format ingestion.Format
	diag   ingestion.Diagnostics
	rows   []types.RateRow
	built  bool
}

// NewTableBuilder creates a builder for rows laid out by schema
func NewTableBuilder(schema types.ColumnSchema) *TableBuilder {
	return &TableBuilder{schema: schema}
}

// WithSource sets the source information
func (b *TableBuilder) WithSource(source TableSource) *TableBuilder {
	b.source = source
	return b
}

// WithFormat records the sniffed format
func (b *TableBuilder) WithFormat(format ingestion.Format) *TableBuilder {
	b.format = format
	return b
}

// WithDiagnostics records the ingestion diagnostics
func (b *TableBuilder) WithDiagnostics(diag ingestion.Diagnostics) *TableBuilder {
	b.diag = diag
	return b
}

// AddRow appends a row. Rows breaking the band invariant are rejected.
func (b *TableBuilder) AddRow(row types.RateRow) error {
	if b.built {
		panic("INVARIANT VIOLATED: row added after table was built")
	}
	if err := row.Validate(); err != nil {
		return errors.Wrap(errors.TypeInput, "invalid rate row", err)
	}
	b.rows = append(b.rows, row)
	return nil
}

// Build seals the table
func (b *TableBuilder) Build() *RateTable {
	b.built = true

	t := &RateTable{
		CreatedAt:   time.Now().UTC(),
		Source:      b.source,
		Format:      b.format,
		Schema:      b.schema,
		Diagnostics: b.diag,
		rows:        b.rows,
		byProfile:   make(map[types.PharmacyProfile][]int),
	}
	for i := range t.rows {
		p := t.rows[i].Profile()
		if _, seen := t.byProfile[p]; !seen {
			t.profiles = append(t.profiles, p)
		}
		t.byProfile[p] = append(t.byProfile[p], i)
	}

	t.ContentHash = t.computeHash()
	t.ID = TableID(hex.EncodeToString(t.ContentHash[:8]))
	t.sealed = true
	return t
}

// FromIngestion builds a table from an ingestion result
func FromIngestion(res *ingestion.Result) (*RateTable, error) {
	b := NewTableBuilder(res.Schema).
		WithSource(TableSource{Path: res.Path, Signature: res.Signature, Fingerprint: res.Fingerprint}).
		WithFormat(res.Format).
		WithDiagnostics(res.Diagnostics)
	for _, row := range res.Rows {
		if err := b.AddRow(row); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// computeHash covers the schema and every row in file order, not the source
// path, so identical content read from two places hashes the same.
func (t *RateTable) computeHash() determinism.ContentHash {
	h := determinism.NewHasher().
		String(string(t.Schema.Version)).
		Int(t.Schema.CurrentYear).
		Int(t.Schema.PriorYear)
	for _, s := range t.Schema.Suppliers {
		h.String(string(s))
	}

	cols := t.Schema.RateColumns()
	for i := range t.rows {
		r := &t.rows[i]
		h.String(r.Cluster).String(r.SupplyMode).
			String(r.RevenueMin.String()).String(r.RevenueMax.String())
		for _, col := range cols {
			v := r.Rates[col.Key]
			h.String(v.Value.String()).String(string(v.Status))
		}
	}
	return h.Sum()
}

// Verify checks content hash integrity
func (t *RateTable) Verify() bool {
	return t.sealed && t.computeHash() == t.ContentHash
}

// Len returns the number of rows
func (t *RateTable) Len() int {
	return len(t.rows)
}

// Rows returns a copy of all rows in file order
func (t *RateTable) Rows() []types.RateRow {
	out := make([]types.RateRow, len(t.rows))
	copy(out, t.rows)
	return out
}

// Profiles lists distinct cluster and supply mode pairs in file order
func (t *RateTable) Profiles() []types.PharmacyProfile {
	out := make([]types.PharmacyProfile, len(t.profiles))
	copy(out, t.profiles)
	return out
}

// Suppliers returns the suppliers carried by the table
func (t *RateTable) Suppliers() []types.Supplier {
	return t.Schema.Suppliers
}

// HasSupplier reports whether the table carries rates for s
func (t *RateTable) HasSupplier(s types.Supplier) bool {
	for _, sup := range t.Schema.Suppliers {
		if sup == s {
			return true
		}
	}
	return false
}
