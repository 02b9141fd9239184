package scenario

import (
	"go.uber.org/zap"

	"pharma-margin/core/margin"
	"pharma-margin/core/pricing"
	"pharma-margin/core/types"
	"pharma-margin/internal/errors"
	"pharma-margin/internal/logging"
)

// Outcome is the result of one scenario. Exactly one of Result and Err is set.
type Outcome struct {
	Scenario Scenario
	Result   *types.CalculationResult
	Err      error
}

// Summary counts outcomes of a batch
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Rejected  int `json:"rejected"`
	Failed    int `json:"failed"`
}

// Runner evaluates scenarios against one table
type Runner struct {
	base  margin.Options
	calcs map[string]*margin.Calculator
	log   *zap.Logger
}

// NewRunner creates a runner. Scenarios without a policy override use base.
func NewRunner(base margin.Options) (*Runner, error) {
	calc, err := margin.NewCalculator(base)
	if err != nil {
		return nil, err
	}
	return &Runner{
		base:  base,
		calcs: map[string]*margin.Calculator{"": calc},
		log:   logging.Named("scenario"),
	}, nil
}

func (r *Runner) calculator(policy string) (*margin.Calculator, error) {
	if c, ok := r.calcs[policy]; ok {
		return c, nil
	}
	hp, err := margin.HistoricalPolicyByName(policy)
	if err != nil {
		return nil, err
	}
	opts := r.base
	opts.Historical = hp
	c, err := margin.NewCalculator(opts)
	if err != nil {
		return nil, err
	}
	r.calcs[policy] = c
	return c, nil
}

// Run evaluates every scenario in order. A failing scenario does not stop the batch.
func (r *Runner) Run(table *pricing.RateTable, scenarios []Scenario) ([]Outcome, Summary) {
	outcomes := make([]Outcome, 0, len(scenarios))
	var sum Summary

	for _, sc := range scenarios {
		out := Outcome{Scenario: sc}
		calc, err := r.calculator(sc.Historical)
		if err == nil {
			out.Result, err = calc.Calculate(table, sc.Profile, sc.Allocation)
		}
		out.Err = err

		sum.Total++
		switch {
		case err == nil:
			sum.Succeeded++
		case errors.Recoverable(err):
			sum.Rejected++
			r.log.Info("scenario rejected", zap.String("scenario", sc.Name), zap.Error(err))
		default:
			sum.Failed++
			r.log.Warn("scenario failed", zap.String("scenario", sc.Name), zap.Error(err))
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, sum
}
