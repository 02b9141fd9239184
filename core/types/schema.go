// Package types - Positional column schema
package types

// SchemaVersion names a known file layout
type SchemaVersion string

const (
	// SchemaCompact has three suppliers: 10 columns
	SchemaCompact SchemaVersion = "compact"

	// SchemaExtended adds a fourth supplier: 12 columns
	SchemaExtended SchemaVersion = "extended"
)

// Canonical names of the identity and band columns
const (
	FieldCluster    = "CLUSTER"
	FieldSupplyMode = "APPROVISIONNEMENT"
	FieldRevenueMin = "CA_MIN"
	FieldRevenueMax = "CA_MAX"
)

// identityWidth is the number of columns before the first rate column
const identityWidth = 4

// RateColumn maps a column index to the rate it carries
type RateColumn struct {
	Index int
	Key   RateKey
}

// ColumnSchema is the ordered list of canonical fields of a layout.
// Columns are mapped by position, never by header text.
type ColumnSchema struct {
	Version     SchemaVersion `json:"version"`
	Suppliers   []Supplier    `json:"suppliers"`
	CurrentYear int           `json:"current_year"`
	PriorYear   int           `json:"prior_year"`
}

// NewColumnSchema builds a schema. The extended layout appends the extra
// supplier after the base ones within each year group.
func NewColumnSchema(version SchemaVersion, base []Supplier, extra Supplier, currentYear, priorYear int) ColumnSchema {
	suppliers := make([]Supplier, 0, len(base)+1)
	suppliers = append(suppliers, base...)
	if version == SchemaExtended {
		suppliers = append(suppliers, extra)
	}
	return ColumnSchema{
		Version:     version,
		Suppliers:   suppliers,
		CurrentYear: currentYear,
		PriorYear:   priorYear,
	}
}

// Width is the number of mapped columns
func (s ColumnSchema) Width() int {
	return identityWidth + 2*len(s.Suppliers)
}

// RateColumns lists rate columns in file order: current year, then prior year
func (s ColumnSchema) RateColumns() []RateColumn {
	cols := make([]RateColumn, 0, 2*len(s.Suppliers))
	idx := identityWidth
	for _, year := range []int{s.CurrentYear, s.PriorYear} {
		for _, sup := range s.Suppliers {
			cols = append(cols, RateColumn{Index: idx, Key: RateKey{Supplier: sup, Year: year}})
			idx++
		}
	}
	return cols
}

// Fields returns the canonical column names in order
func (s ColumnSchema) Fields() []string {
	fields := []string{FieldCluster, FieldSupplyMode, FieldRevenueMin, FieldRevenueMax}
	for _, col := range s.RateColumns() {
		fields = append(fields, col.Key.String())
	}
	return fields
}

