// Package output renders calculation results for humans and machines.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pharma-margin/core/determinism"
	"pharma-margin/core/pricing"
	"pharma-margin/core/scenario"
	"pharma-margin/core/types"
	"pharma-margin/internal/errors"
)

// Format represents output format type
type Format string

const (
	// FormatCLI is a human-readable CLI table
	FormatCLI Format = "cli"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"

	// FormatMarkdown is a markdown report
	FormatMarkdown Format = "markdown"

	// FormatHTML is an HTML report
	FormatHTML Format = "html"
)

// Formatter produces output in a specific format
type Formatter interface {
	// Format returns the format type
	Format() Format

	// Render writes one calculation
	Render(w io.Writer, report *Report) error

	// RenderBatch writes the outcomes of a scenario file
	RenderBatch(w io.Writer, report *BatchReport) error
}

// Metadata contains execution context
type Metadata struct {
	// RequestID identifies the calculation in logs and reports
	RequestID string `json:"request_id"`

	// Timestamp is when the calculation was performed
	Timestamp string `json:"timestamp"`

	// Duration is how long the calculation took, table load included
	Duration string `json:"duration"`

	// TableID is the content-derived identifier of the rate table
	TableID string `json:"table_id"`

	// Source is the rate file path
	Source string `json:"source"`

	// Version is the tool version
	Version string `json:"version"`
}

// NewMetadata stamps a report with a fresh request id
func NewMetadata(table *pricing.RateTable, started time.Time, version string) Metadata {
	md := Metadata{
		RequestID: uuid.NewString(),
		Timestamp: started.UTC().Format(time.RFC3339),
		Duration:  time.Since(started).Round(time.Microsecond).String(),
		Version:   version,
	}
	if table != nil {
		md.TableID = string(table.ID)
		md.Source = table.Source.Path
	}
	return md
}

// Report is one calculation. Result is nil when the calculation was rejected;
// Rejection then says why.
type Report struct {
	Result    *types.CalculationResult `json:"result"`
	Rejection *errors.Error            `json:"rejection,omitempty"`
	Metadata  Metadata                 `json:"metadata"`
}

// BatchReport is the outcome of a scenario file
type BatchReport struct {
	File     string           `json:"file"`
	Items    []BatchItem      `json:"items"`
	Summary  scenario.Summary `json:"summary"`
	Metadata Metadata         `json:"metadata"`
}

// BatchItem is one scenario outcome
type BatchItem struct {
	Name   string                   `json:"name"`
	Result *types.CalculationResult `json:"result,omitempty"`
	Error  *errors.Error            `json:"error,omitempty"`
}

// NewBatchReport collects runner outcomes
func NewBatchReport(file string, outcomes []scenario.Outcome, sum scenario.Summary, md Metadata) *BatchReport {
	r := &BatchReport{File: file, Summary: sum, Metadata: md}
	for _, o := range outcomes {
		item := BatchItem{Name: o.Scenario.Name, Result: o.Result}
		if o.Err != nil {
			item.Error = asError(o.Err)
		}
		r.Items = append(r.Items, item)
	}
	return r
}

func asError(err error) *errors.Error {
	if e, ok := errors.As(err); ok {
		return e
	}
	return errors.Internal(err.Error(), err)
}

// Rejected wraps a recoverable error into a report
func Rejected(err error, md Metadata) *Report {
	return &Report{Rejection: asError(err), Metadata: md}
}

// Registry manages formatter registration
type Registry struct {
	formatters map[Format]Formatter
}

// NewRegistry creates a registry with every built-in formatter
func NewRegistry(noColor bool) *Registry {
	r := &Registry{formatters: make(map[Format]Formatter)}
	for _, f := range []Formatter{NewCLIFormatter(noColor), NewJSONFormatter(), NewMarkdownFormatter(), NewHTMLFormatter()} {
		_ = r.Register(f)
	}
	return r
}

// Register adds a formatter to the registry
func (r *Registry) Register(f Formatter) error {
	if _, dup := r.formatters[f.Format()]; dup {
		return errors.Newf(errors.TypeConfig, "formatter %s already registered", f.Format())
	}
	r.formatters[f.Format()] = f
	return nil
}

// Get returns a formatter for a format type
func (r *Registry) Get(format Format) (Formatter, error) {
	f, ok := r.formatters[format]
	if !ok {
		return nil, errors.Newf(errors.TypeConfig, "unknown output format %q (want one of %v)", format, r.Formats())
	}
	return f, nil
}

// Formats lists registered formats
func (r *Registry) Formats() []Format {
	return determinism.SortedKeys(r.formatters, func(a, b Format) bool { return a < b })
}

var hundred = decimal.NewFromInt(100)

// Percent renders a rate fraction as a percentage with two decimals
func Percent(rate decimal.Decimal) string {
	return rate.Mul(hundred).StringFixed(2) + " %"
}

// Points renders a rate difference in percentage points with a sign
func Points(delta decimal.Decimal) string {
	s := delta.Mul(hundred).StringFixed(2)
	if delta.IsPositive() {
		s = "+" + s
	}
	return s + " pts"
}

// Amount renders a euro amount with two decimals
func Amount(v decimal.Decimal) string {
	return v.StringFixed(2) + " €"
}

// SignedAmount renders an amount with an explicit sign
func SignedAmount(v decimal.Decimal) string {
	s := Amount(v)
	if v.IsPositive() {
		s = "+" + s
	}
	return s
}

func tierLabel(t types.TierTrace) string {
	if !t.Outcome.HasRow() {
		return string(t.Outcome)
	}
	return fmt.Sprintf("%s-%s (line %d, %s)", t.RevenueMin.StringFixed(0), t.RevenueMax.StringFixed(0), t.Line, t.Outcome)
}

func rateLabel(v types.RateValue) string {
	s := Percent(v.Value)
	switch v.Status {
	case types.RateIneligible:
		s += " (non eligible)"
	case types.RateMissing:
		s += " (missing)"
	}
	return s
}
