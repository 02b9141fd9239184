package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MarkdownFormatter renders GitHub-flavored markdown
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a markdown formatter
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format implements Formatter
func (f *MarkdownFormatter) Format() Format { return FormatMarkdown }

// Render implements Formatter
func (f *MarkdownFormatter) Render(w io.Writer, report *Report) error {
	_, err := io.WriteString(w, reportMarkdown(report))
	return err
}

// RenderBatch implements Formatter
func (f *MarkdownFormatter) RenderBatch(w io.Writer, report *BatchReport) error {
	_, err := io.WriteString(w, batchMarkdown(report))
	return err
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// mdEscape keeps cell text from breaking table columns
func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func mdRow(b *strings.Builder, cells ...string) {
	for i := range cells {
		cells[i] = mdEscape(cells[i])
	}
	b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
}

func mdHeader(b *strings.Builder, cells ...string) {
	mdRow(b, cells...)
	b.WriteString("|" + strings.Repeat(" --- |", len(cells)) + "\n")
}

func reportMarkdown(report *Report) string {
	var b strings.Builder

	if report.Result == nil {
		b.WriteString("# Margin\n\n")
		fmt.Fprintf(&b, "No result: %s\n", report.Rejection.Message)
		return b.String()
	}
	res := report.Result

	fmt.Fprintf(&b, "# Margin %s\n\n", res.Profile)
	mdHeader(&b, "Figure", "Value")
	mdRow(&b, "Historical rate "+itoa(res.ReferenceYear), Percent(res.HistoricalWeightedRate))
	mdRow(&b, "Projected rate "+itoa(res.TargetYear), Percent(res.ProjectedBlendedRate))
	mdRow(&b, "Delta", Points(res.Delta))
	mdRow(&b, "Delta per 10 000 €", SignedAmount(res.DeltaPer10k))
	mdRow(&b, "Winning supplier", string(res.WinningSupplier))

	fmt.Fprintf(&b, "\n## Historical (%s)\n\n", res.HistoricalPolicy)
	mdHeader(&b, "Supplier", "Purchases", "Rate", "Band")
	for _, c := range res.Contributions {
		mdRow(&b, string(c.Supplier), Amount(c.Amount), rateLabel(c.Rate), tierLabel(c.Tier))
	}
	mdRow(&b, "**Total**", Amount(res.TotalVolume), Percent(res.HistoricalWeightedRate), "")

	b.WriteString("\n## Projection\n\n")
	mdHeader(&b, "Supplier", "Share", "Volume", "Rate", "Band")
	mdRow(&b, string(res.Winner.Supplier)+" (winner)", Percent(res.Winner.Share), Amount(res.Winner.Volume),
		rateLabel(res.Winner.Rate), tierLabel(res.Winner.Tier))
	mdRow(&b, string(res.Loser.Supplier)+" (loser)", Percent(res.Loser.Share), Amount(res.Loser.Volume),
		rateLabel(res.Loser.Rate), tierLabel(res.Loser.Tier))

	writeMetadata(&b, report.Metadata)
	return b.String()
}

func batchMarkdown(report *BatchReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Scenarios %s\n\n", report.File)
	mdHeader(&b, "Scenario", "Profile", "Historical", "Projected", "Delta", "Per 10k", "Winner")
	for _, item := range report.Items {
		if item.Result == nil {
			mdRow(&b, item.Name, "", "", "", "", "", string(item.Error.Type)+": "+item.Error.Message)
			continue
		}
		r := item.Result
		mdRow(&b, item.Name, r.Profile.String(), Percent(r.HistoricalWeightedRate), Percent(r.ProjectedBlendedRate),
			Points(r.Delta), SignedAmount(r.DeltaPer10k), string(r.WinningSupplier))
	}

	s := report.Summary
	fmt.Fprintf(&b, "\n%d scenarios: %d calculated, %d rejected, %d failed.\n", s.Total, s.Succeeded, s.Rejected, s.Failed)
	writeMetadata(&b, report.Metadata)
	return b.String()
}

func writeMetadata(b *strings.Builder, md Metadata) {
	fmt.Fprintf(b, "\n---\n\n_Request %s, table %s (%s), %s, pharma-margin %s_\n",
		md.RequestID, md.TableID, md.Source, md.Timestamp, md.Version)
}
