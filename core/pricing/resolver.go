package pricing

import (
	"github.com/shopspring/decimal"

	"pharma-margin/core/types"
	"pharma-margin/internal/errors"
)

// ProfileRows is the sub-table of one profile, in file order
type ProfileRows struct {
	Profile types.PharmacyProfile
	Rows    []types.RateRow
}

// Filter returns the rows matching a profile exactly. Profile fields are
// normalized the same way as table identity cells before comparison.
func (t *RateTable) Filter(profile types.PharmacyProfile) (ProfileRows, error) {
	profile = types.NewPharmacyProfile(profile.Cluster, profile.SupplyMode)
	if err := profile.Validate(); err != nil {
		return ProfileRows{}, err
	}

	idx := t.byProfile[profile]
	if len(idx) == 0 {
		return ProfileRows{}, errors.ProfileNotFound(profile.Cluster, profile.SupplyMode)
	}

	rows := make([]types.RateRow, len(idx))
	for i, j := range idx {
		rows[i] = t.rows[j]
	}
	return ProfileRows{Profile: profile, Rows: rows}, nil
}

// TierMatch is the outcome of one tier lookup
type TierMatch struct {
	// Row is nil when the amount is below every band
	Row   *types.RateRow
	Trace types.TierTrace
}

// Rate returns the rate of supplier for year under this match. Below every
// band the rate is zero. ok is false when the table has no such column.
func (m TierMatch) Rate(supplier types.Supplier, year int) (types.RateValue, bool) {
	if m.Row == nil {
		return types.RateValue{Value: decimal.Zero, Status: types.RatePresent}, true
	}
	return m.Row.Rate(supplier, year)
}

// Resolve picks the band of rows applying to amount:
//   - the first row in file order containing amount
//   - above every band, the first row with the greatest max
//   - below every band, no row (zero rate)
//   - in a gap between bands, the first row with the greatest max below amount
func Resolve(rows []types.RateRow, amount decimal.Decimal) TierMatch {
	var top, under *types.RateRow
	below := true

	for i := range rows {
		r := &rows[i]
		if r.Contains(amount) {
			return newMatch(r, types.TierMatched, amount)
		}
		if top == nil || r.RevenueMax.GreaterThan(top.RevenueMax) {
			top = r
		}
		if r.RevenueMin.LessThanOrEqual(amount) {
			below = false
		}
		if r.RevenueMax.LessThan(amount) && (under == nil || r.RevenueMax.GreaterThan(under.RevenueMax)) {
			under = r
		}
	}

	switch {
	case top == nil || below:
		return TierMatch{Trace: types.TierTrace{Outcome: types.TierBelowAll, Amount: amount}}
	case amount.GreaterThan(top.RevenueMax):
		return newMatch(top, types.TierClampedToTop, amount)
	default:
		return newMatch(under, types.TierBetween, amount)
	}
}

func newMatch(r *types.RateRow, outcome types.TierOutcome, amount decimal.Decimal) TierMatch {
	return TierMatch{
		Row: r,
		Trace: types.TierTrace{
			Outcome:    outcome,
			Amount:     amount,
			RevenueMin: r.RevenueMin,
			RevenueMax: r.RevenueMax,
			Line:       r.Line,
		},
	}
}

// Resolve runs the tier lookup over the profile's rows
func (p ProfileRows) Resolve(amount decimal.Decimal) TierMatch {
	return Resolve(p.Rows, amount)
}
