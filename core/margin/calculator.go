// Package margin computes the historical weighted rate, the projected blended
// rate and the delta between them for one pharmacy.
package margin

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharma-margin/core/pricing"
	"pharma-margin/core/types"
	"pharma-margin/internal/errors"
	"pharma-margin/internal/logging"
)

var tenThousand = decimal.NewFromInt(10000)

// Options configures a Calculator
type Options struct {
	Historical HistoricalPolicy
	Projection ProjectionPolicy

	// TargetYear rates drive the projection, ReferenceYear rates the history
	TargetYear    int
	ReferenceYear int
}

// DefaultOptions returns per-supplier history and the default projection
func DefaultOptions() Options {
	return Options{
		Historical:    PerSupplier{},
		Projection:    DefaultProjectionPolicy(),
		TargetYear:    2026,
		ReferenceYear: 2025,
	}
}

// Calculator is stateless; one instance serves any number of tables
type Calculator struct {
	opts Options
	log  *zap.Logger
}

// NewCalculator validates opts and creates a calculator
func NewCalculator(opts Options) (*Calculator, error) {
	if opts.Historical == nil {
		opts.Historical = PerSupplier{}
	}
	if err := opts.Projection.Validate(); err != nil {
		return nil, err
	}
	if opts.TargetYear == 0 || opts.ReferenceYear == 0 {
		return nil, errors.Config("target and reference years are required")
	}
	return &Calculator{opts: opts, log: logging.Named("margin")}, nil
}

// Options returns the calculator settings
func (c *Calculator) Options() Options {
	return c.opts
}

// Calculate evaluates profile and alloc against table
func (c *Calculator) Calculate(table *pricing.RateTable, profile types.PharmacyProfile, alloc types.PurchaseAllocation) (*types.CalculationResult, error) {
	if err := alloc.Validate(); err != nil {
		return nil, err
	}
	if err := c.checkSuppliers(table, alloc); err != nil {
		return nil, err
	}

	rows, err := table.Filter(profile)
	if err != nil {
		return nil, err
	}

	total := alloc.Total()
	result := &types.CalculationResult{
		Profile:          rows.Profile,
		TotalVolume:      total,
		HistoricalPolicy: c.opts.Historical.Name(),
		ReferenceYear:    c.opts.ReferenceYear,
		TargetYear:       c.opts.TargetYear,
	}

	if err := c.historical(rows, alloc, total, result); err != nil {
		return nil, err
	}
	if err := c.project(rows, total, result); err != nil {
		return nil, err
	}

	result.Delta = result.ProjectedBlendedRate.Sub(result.HistoricalWeightedRate)
	result.DeltaPer10k = result.Delta.Mul(tenThousand)

	c.log.Debug("calculated",
		zap.Stringer("profile", rows.Profile),
		zap.String("total", total.String()),
		zap.String("historical", result.HistoricalWeightedRate.String()),
		zap.String("projected", result.ProjectedBlendedRate.String()),
		zap.String("winner", string(result.WinningSupplier)),
		zap.String("delta", result.Delta.String()))

	return result, nil
}

// checkSuppliers rejects suppliers the table has no columns for
func (c *Calculator) checkSuppliers(table *pricing.RateTable, alloc types.PurchaseAllocation) error {
	for _, s := range alloc.Suppliers() {
		if !table.HasSupplier(s) {
			return errors.Newf(errors.TypeInput, "supplier %s has no column in the rate table", s).
				WithContext("known", table.Suppliers())
		}
	}
	for _, s := range c.opts.Projection.Competitors {
		if !table.HasSupplier(s) {
			return errors.Newf(errors.TypeConfig, "competitor %s has no column in the rate table", s)
		}
	}
	return nil
}

// historical computes sum(alloc[s] * rate[s]) / total
func (c *Calculator) historical(rows pricing.ProfileRows, alloc types.PurchaseAllocation, total decimal.Decimal, result *types.CalculationResult) error {
	if total.IsZero() {
		return errors.ZeroAllocation()
	}

	weighted := decimal.Zero
	for _, s := range alloc.Suppliers() {
		amount := alloc.Amount(s)
		match := c.opts.Historical.Lookup(rows, amount, total)
		rate, _ := match.Rate(s, c.opts.ReferenceYear)

		if amount.IsPositive() {
			if rate.IsSentinel() {
				return errors.RateMissing(string(s), c.opts.ReferenceYear).WithContext("line", match.Trace.Line)
			}
			weighted = weighted.Add(amount.Mul(rate.Value))
		}

		result.Contributions = append(result.Contributions, types.SupplierContribution{
			Supplier: s,
			Amount:   amount,
			Rate:     rate,
			Tier:     match.Trace,
		})
	}

	result.HistoricalWeightedRate = weighted.Div(total)
	return nil
}

// project picks the winner at the winner-share volume and blends its rate
// with the loser's rate at the loser-share volume
func (c *Calculator) project(rows pricing.ProfileRows, total decimal.Decimal, result *types.CalculationResult) error {
	p := c.opts.Projection
	year := c.opts.TargetYear
	winnerVolume := total.Mul(p.WinnerShare)
	loserVolume := total.Sub(winnerVolume)

	legs := make([]types.ProjectionLeg, 0, len(p.Competitors))
	for _, s := range p.Competitors {
		match := rows.Resolve(winnerVolume)
		rate, _ := match.Rate(s, year)
		if rate.IsSentinel() {
			return errors.RateMissing(string(s), year).WithContext("line", match.Trace.Line)
		}
		legs = append(legs, types.ProjectionLeg{
			Supplier: s,
			Share:    p.WinnerShare,
			Volume:   winnerVolume,
			Rate:     rate,
			Tier:     match.Trace,
		})
	}

	winner, loser := legs[0], legs[1]
	switch cmp := winner.Rate.Value.Cmp(loser.Rate.Value); {
	case cmp < 0:
		winner, loser = loser, winner
	case cmp == 0 && loser.Supplier == p.Preferred:
		winner, loser = loser, winner
	}

	match := rows.Resolve(loserVolume)
	rate, _ := match.Rate(loser.Supplier, year)
	if rate.IsSentinel() {
		return errors.RateMissing(string(loser.Supplier), year).WithContext("line", match.Trace.Line)
	}
	loser.Share = p.LoserShare()
	loser.Volume = loserVolume
	loser.Rate = rate
	loser.Tier = match.Trace

	result.WinningSupplier = winner.Supplier
	result.LosingSupplier = loser.Supplier
	result.Winner = winner
	result.Loser = loser
	result.ProjectedBlendedRate = p.WinnerShare.Mul(winner.Rate.Value).Add(loser.Share.Mul(loser.Rate.Value))
	return nil
}
