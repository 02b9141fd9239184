package ingestion

import (
	"github.com/shopspring/decimal"

	"pharma-margin/core/types"
)

// MissingPolicy decides what a blank or unparsable rate cell becomes
type MissingPolicy string

const (
	// MissingLenient resolves missing rates to 0
	MissingLenient MissingPolicy = "lenient"

	// MissingStrict resolves missing rates to the -1 sentinel
	MissingStrict MissingPolicy = "strict"
)

// Valid reports whether the policy is known
func (p MissingPolicy) Valid() bool {
	return p == MissingLenient || p == MissingStrict
}

// DefaultIneligibleFallback is the rate applied to cells marked ineligible
var DefaultIneligibleFallback = decimal.RequireFromString("0.12")

var strictSentinel = decimal.NewFromInt(-1)

// RatePolicy drives rate cell coercion
type RatePolicy struct {
	// IneligibleMarker is matched case- and accent-insensitively as a substring
	IneligibleMarker string

	// IneligibleFallback replaces cells carrying the marker
	IneligibleFallback decimal.Decimal

	// Missing selects lenient (0) or strict (-1) for unusable cells
	Missing MissingPolicy
}

// SchemaOptions describes the supplier layout of the file
type SchemaOptions struct {
	// Suppliers are the base suppliers in column order
	Suppliers []types.Supplier

	// ExtraSupplier is the fourth supplier of the extended layout
	ExtraSupplier types.Supplier

	// CurrentYear labels the first rate group, PriorYear the second
	CurrentYear int
	PriorYear   int
}

// Compact returns the schema without the extra supplier
func (o SchemaOptions) Compact() types.ColumnSchema {
	return types.NewColumnSchema(types.SchemaCompact, o.Suppliers, o.ExtraSupplier, o.CurrentYear, o.PriorYear)
}

// Extended returns the schema with the extra supplier
func (o SchemaOptions) Extended() types.ColumnSchema {
	return types.NewColumnSchema(types.SchemaExtended, o.Suppliers, o.ExtraSupplier, o.CurrentYear, o.PriorYear)
}

// Resolve picks the layout from the observed column count
func (o SchemaOptions) Resolve(columns int) (types.ColumnSchema, bool) {
	if ext := o.Extended(); columns >= ext.Width() {
		return ext, true
	}
	if compact := o.Compact(); columns >= compact.Width() {
		return compact, true
	}
	return types.ColumnSchema{}, false
}

// Options configures the whole ingestion lifecycle
type Options struct {
	// Encodings are tried in order
	Encodings []Encoding

	// Delimiters are the candidates; the first wins count ties
	Delimiters []rune

	// ClusterMarker must appear in the uppercased header line
	ClusterMarker string

	// SupplyMarker must also appear when RequireSupplyMarker is set
	SupplyMarker        string
	RequireSupplyMarker bool

	// PreviewLines bounds the preview attached to HEADER_NOT_FOUND
	PreviewLines int

	Schema SchemaOptions
	Rates  RatePolicy
}

// DefaultOptions returns the settings matching the published rate grid
func DefaultOptions() Options {
	return Options{
		Encodings:     DefaultEncodings(),
		Delimiters:    []rune{',', ';'},
		ClusterMarker: "CLUSTER",
		SupplyMarker:  "APPRO",
		PreviewLines:  5,
		Schema: SchemaOptions{
			Suppliers:     []types.Supplier{types.SupplierNestle, types.SupplierLactalis, types.SupplierNutricia},
			ExtraSupplier: "OTHER",
			CurrentYear:   2026,
			PriorYear:     2025,
		},
		Rates: RatePolicy{
			IneligibleMarker:   "NON ELIGIBLE",
			IneligibleFallback: DefaultIneligibleFallback,
			Missing:            MissingLenient,
		},
	}
}

// MinWidth is the narrowest viable row
func (o Options) MinWidth() int {
	return o.Schema.Compact().Width()
}
