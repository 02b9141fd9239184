// Package types - Calculation result
package types

import (
	"github.com/shopspring/decimal"
)

// SupplierContribution is one term of the historical weighted rate
type SupplierContribution struct {
	Supplier Supplier        `json:"supplier"`
	Amount   decimal.Decimal `json:"amount"`
	Rate     RateValue       `json:"rate"`
	Tier     TierTrace       `json:"tier"`
}

// ProjectionLeg is the winner or loser side of the projected blend
type ProjectionLeg struct {
	Supplier Supplier        `json:"supplier"`
	Share    decimal.Decimal `json:"share"`
	Volume   decimal.Decimal `json:"volume"`
	Rate     RateValue       `json:"rate"`
	Tier     TierTrace       `json:"tier"`
}

// CalculationResult is returned to the presentation layer
type CalculationResult struct {
	Profile PharmacyProfile `json:"profile"`

	// TotalVolume is the sum of the purchase allocation
	TotalVolume decimal.Decimal `json:"total_volume"`

	// HistoricalPolicy names the strategy used for the historical rate
	HistoricalPolicy string `json:"historical_policy"`

	// ReferenceYear and TargetYear are the rate years used
	ReferenceYear int `json:"reference_year"`
	TargetYear    int `json:"target_year"`

	HistoricalWeightedRate decimal.Decimal `json:"historical_weighted_rate"`
	ProjectedBlendedRate   decimal.Decimal `json:"projected_blended_rate"`

	WinningSupplier Supplier `json:"winning_supplier"`
	LosingSupplier  Supplier `json:"losing_supplier"`

	// Delta is projected minus historical
	Delta decimal.Decimal `json:"delta"`

	// DeltaPer10k is Delta scaled to ten thousand of purchases
	DeltaPer10k decimal.Decimal `json:"delta_per_10k"`

	Contributions []SupplierContribution `json:"contributions"`
	Winner        ProjectionLeg          `json:"winner"`
	Loser         ProjectionLeg          `json:"loser"`
}
