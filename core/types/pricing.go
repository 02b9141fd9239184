// Package types - Rate table row types
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateStatus records how a rate cell was resolved
type RateStatus string

const (
	// RatePresent is a numeric cell
	RatePresent RateStatus = "present"

	// RateIneligible is a cell carrying the ineligibility phrase
	RateIneligible RateStatus = "ineligible"

	// RateMissing is a blank or unparsable cell
	RateMissing RateStatus = "missing"
)

// RateValue is a coerced rate cell
type RateValue struct {
	// Value is the fraction used in calculations (fallback, 0 or -1 for non-present cells)
	Value decimal.Decimal `json:"value"`

	// Status says where Value came from
	Status RateStatus `json:"status"`
}

// IsSentinel reports whether the value is the strict-policy missing marker
func (v RateValue) IsSentinel() bool {
	return v.Status == RateMissing && v.Value.IsNegative()
}

// RateRow is one revenue band of a cluster and supply mode
type RateRow struct {
	// Line is the 1-based source line (or sheet row) of the record
	Line int `json:"line"`

	// Cluster is the buying group
	Cluster string `json:"cluster"`

	// SupplyMode is the procurement channel
	SupplyMode string `json:"supply_mode"`

	// RevenueMin is the band lower bound (inclusive)
	RevenueMin decimal.Decimal `json:"revenue_min"`

	// RevenueMax is the band upper bound (inclusive)
	RevenueMax decimal.Decimal `json:"revenue_max"`

	// Rates holds one value per supplier and year
	Rates map[RateKey]RateValue `json:"-"`

	// Extra carries columns beyond the schema width, untouched
	Extra []string `json:"extra,omitempty"`
}

// Rate returns the rate of a supplier for a year
func (r *RateRow) Rate(supplier Supplier, year int) (RateValue, bool) {
	v, ok := r.Rates[RateKey{Supplier: supplier, Year: year}]
	return v, ok
}

// Contains reports whether amount lies inside the band, bounds included
func (r *RateRow) Contains(amount decimal.Decimal) bool {
	return r.RevenueMin.LessThanOrEqual(amount) && amount.LessThanOrEqual(r.RevenueMax)
}

// Validate checks the band invariant
func (r *RateRow) Validate() error {
	if r.RevenueMin.GreaterThan(r.RevenueMax) {
		return fmt.Errorf("line %d: revenue min %s exceeds max %s", r.Line, r.RevenueMin, r.RevenueMax)
	}
	return nil
}

// Profile returns the cluster and supply mode of the row
func (r *RateRow) Profile() PharmacyProfile {
	return PharmacyProfile{Cluster: r.Cluster, SupplyMode: r.SupplyMode}
}

// TierOutcome explains how a band was chosen for an amount
type TierOutcome string

const (
	// TierMatched means the amount lies inside the band
	TierMatched TierOutcome = "matched"

	// TierClampedToTop means the amount exceeds every band; the top band applies
	TierClampedToTop TierOutcome = "clamped_to_top"

	// TierBetween means the amount falls in a gap; the band below applies
	TierBetween TierOutcome = "between_tiers"

	// TierBelowAll means no band is reached yet; rates are zero
	TierBelowAll TierOutcome = "below_all_tiers"
)

// HasRow reports whether the outcome selected a band
func (o TierOutcome) HasRow() bool {
	return o != TierBelowAll
}

// TierTrace records the band used for one lookup
type TierTrace struct {
	Outcome    TierOutcome     `json:"outcome"`
	Amount     decimal.Decimal `json:"amount"`
	RevenueMin decimal.Decimal `json:"revenue_min"`
	RevenueMax decimal.Decimal `json:"revenue_max"`
	Line       int             `json:"line,omitempty"`
}
