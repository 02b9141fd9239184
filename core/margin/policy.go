package margin

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"pharma-margin/core/pricing"
	"pharma-margin/core/types"
	"pharma-margin/internal/errors"
)

// HistoricalPolicy decides at which amount each supplier's reference-year
// rate is looked up
type HistoricalPolicy interface {
	Name() string
	Lookup(rows pricing.ProfileRows, amount, total decimal.Decimal) pricing.TierMatch
}

// PerSupplier resolves each supplier's band from its own volume
type PerSupplier struct{}

// Name implements HistoricalPolicy
func (PerSupplier) Name() string { return "per_supplier" }

// Lookup implements HistoricalPolicy
func (PerSupplier) Lookup(rows pricing.ProfileRows, amount, _ decimal.Decimal) pricing.TierMatch {
	return rows.Resolve(amount)
}

// BlendedTotal resolves one band from the total volume for every supplier
type BlendedTotal struct{}

// Name implements HistoricalPolicy
func (BlendedTotal) Name() string { return "blended_total" }

// Lookup implements HistoricalPolicy
func (BlendedTotal) Lookup(rows pricing.ProfileRows, _, total decimal.Decimal) pricing.TierMatch {
	return rows.Resolve(total)
}

var historicalPolicies = map[string]HistoricalPolicy{
	PerSupplier{}.Name():  PerSupplier{},
	BlendedTotal{}.Name(): BlendedTotal{},
}

// HistoricalPolicyByName returns a registered policy
func HistoricalPolicyByName(name string) (HistoricalPolicy, error) {
	p, ok := historicalPolicies[name]
	if !ok {
		return nil, errors.Newf(errors.TypeConfig, "unknown historical policy %q (want one of %v)", name, HistoricalPolicyNames())
	}
	return p, nil
}

// HistoricalPolicyNames lists registered policies
func HistoricalPolicyNames() []string {
	names := make([]string, 0, len(historicalPolicies))
	for name := range historicalPolicies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultWinnerShare is the share of the total given to the better competitor
var DefaultWinnerShare = decimal.RequireFromString("0.7")

var half = decimal.RequireFromString("0.5")

// ProjectionPolicy is the two-supplier allocation applied to the target year
type ProjectionPolicy struct {
	Competitors [2]types.Supplier
	Preferred   types.Supplier
	WinnerShare decimal.Decimal
}

// DefaultProjectionPolicy returns the published projection
func DefaultProjectionPolicy() ProjectionPolicy {
	return ProjectionPolicy{
		Competitors: [2]types.Supplier{types.SupplierNestle, types.SupplierNutricia},
		Preferred:   types.SupplierNestle,
		WinnerShare: DefaultWinnerShare,
	}
}

// LoserShare is the complement of WinnerShare
func (p ProjectionPolicy) LoserShare() decimal.Decimal {
	return decimal.NewFromInt(1).Sub(p.WinnerShare)
}

// Validate checks the policy is usable
func (p ProjectionPolicy) Validate() error {
	if p.Competitors[0] == "" || p.Competitors[1] == "" {
		return errors.Config("projection needs two competitors")
	}
	if p.Competitors[0] == p.Competitors[1] {
		return errors.Newf(errors.TypeConfig, "projection competitors must differ, got %s twice", p.Competitors[0])
	}
	if p.Preferred != p.Competitors[0] && p.Preferred != p.Competitors[1] {
		return errors.Newf(errors.TypeConfig, "preferred supplier %s is not a competitor", p.Preferred)
	}
	if p.WinnerShare.LessThanOrEqual(half) || p.WinnerShare.GreaterThan(decimal.NewFromInt(1)) {
		return errors.Newf(errors.TypeConfig, "winner share must be in (0.5, 1], got %s", p.WinnerShare)
	}
	return nil
}

// String implements Stringer
func (p ProjectionPolicy) String() string {
	return fmt.Sprintf("%s vs %s at %s/%s, ties to %s",
		p.Competitors[0], p.Competitors[1], p.WinnerShare, p.LoserShare(), p.Preferred)
}
