package output

import (
	"io"

	"pharma-margin/core/types"
	"pharma-margin/core/ui"
)

// CLIFormatter renders colored terminal output
type CLIFormatter struct {
	noColor bool
}

// NewCLIFormatter creates a terminal formatter
func NewCLIFormatter(noColor bool) *CLIFormatter {
	return &CLIFormatter{noColor: noColor}
}

// Format implements Formatter
func (f *CLIFormatter) Format() Format { return FormatCLI }

// Render implements Formatter
func (f *CLIFormatter) Render(w io.Writer, report *Report) error {
	uw := ui.NewWriter(w, f.noColor)

	if report.Result == nil {
		uw.Warning("No result: %s", report.Rejection.Message)
		return nil
	}
	res := report.Result

	uw.Header("Margin " + res.Profile.String())

	s := uw.NewMarginSummary()
	s.Historical = Percent(res.HistoricalWeightedRate)
	s.Projected = Percent(res.ProjectedBlendedRate)
	s.Delta = Points(res.Delta)
	s.Per10k = SignedAmount(res.DeltaPer10k)
	s.Winner = string(res.WinningSupplier)
	s.Increase = !res.Delta.IsNegative()
	s.Render()

	uw.Println("")
	uw.SubHeader("Historical " + itoa(res.ReferenceYear) + " (" + res.HistoricalPolicy + ")")
	t := uw.NewTable("Supplier", "Purchases", "Rate", "Band")
	for _, c := range res.Contributions {
		t.AddRow(string(c.Supplier), Amount(c.Amount), rateLabel(c.Rate), tierLabel(c.Tier))
	}
	t.AddRow("TOTAL", Amount(res.TotalVolume), Percent(res.HistoricalWeightedRate), "")
	t.Render()

	uw.Println("")
	uw.SubHeader("Projection " + itoa(res.TargetYear))
	t = uw.NewTable("Supplier", "Share", "Volume", "Rate", "Band")
	for _, leg := range []types.ProjectionLeg{res.Winner, res.Loser} {
		t.AddRow(string(leg.Supplier), Percent(leg.Share), Amount(leg.Volume), rateLabel(leg.Rate), tierLabel(leg.Tier))
	}
	t.Render()

	uw.Println("")
	uw.Debug("request %s, table %s, %s", report.Metadata.RequestID, report.Metadata.TableID, report.Metadata.Duration)
	return nil
}

// RenderBatch implements Formatter
func (f *CLIFormatter) RenderBatch(w io.Writer, report *BatchReport) error {
	uw := ui.NewWriter(w, f.noColor)
	uw.Header("Scenarios " + report.File)

	t := uw.NewTable("Scenario", "Profile", "Historical", "Projected", "Delta", "Per 10k", "Winner")
	for _, item := range report.Items {
		if item.Result == nil {
			t.AddRow(item.Name, "", "", "", "", "", string(item.Error.Type))
			continue
		}
		r := item.Result
		t.AddRow(item.Name, r.Profile.String(), Percent(r.HistoricalWeightedRate), Percent(r.ProjectedBlendedRate),
			Points(r.Delta), SignedAmount(r.DeltaPer10k), string(r.WinningSupplier))
	}
	t.Render()

	uw.Println("")
	sum := report.Summary
	if sum.Failed > 0 {
		uw.Error("%d of %d scenarios failed", sum.Failed, sum.Total)
	}
	if sum.Rejected > 0 {
		uw.Warning("%d of %d scenarios rejected", sum.Rejected, sum.Total)
	}
	uw.Success("%d of %d scenarios calculated", sum.Succeeded, sum.Total)
	return nil
}
