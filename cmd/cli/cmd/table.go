package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pharma-margin/core/ingestion"
	"pharma-margin/core/output"
	"pharma-margin/core/types"
	"pharma-margin/internal/config"
)

var tableCluster string

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Inspect the rate grid",
}

var tableShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the profiles of the grid, or the bands of one cluster",
	Args:  cobra.NoArgs,
	RunE:  runTableShow,
}

var tableSniffCmd = &cobra.Command{
	Use:   "sniff [file]",
	Short: "Report how the grid file was read (encoding, delimiter, header, schema)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTableSniff,
}

func init() {
	rootCmd.AddCommand(tableCmd)
	tableCmd.AddCommand(tableShowCmd)
	tableCmd.AddCommand(tableSniffCmd)

	tableShowCmd.Flags().StringVarP(&tableCluster, "cluster", "c", "", "only show the bands of this cluster")
}

func runTableShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(config.Get())
	if err != nil {
		return err
	}
	table, err := a.table(cmd.Context(), sourcePath)
	if err != nil {
		return err
	}
	w := a.writer(cmd.OutOrStdout())

	w.Header("Rate grid " + table.Source.Path)
	w.KeyValue("Table", string(table.ID))
	w.KeyValue("Schema", fmt.Sprintf("%s (%d columns)", table.Schema.Version, table.Schema.Width()))
	w.KeyValue("Rows", fmt.Sprint(table.Len()))
	w.Println("")

	if tableCluster == "" {
		counts := make(map[types.PharmacyProfile]int)
		for _, r := range table.Rows() {
			counts[r.Profile()]++
		}
		t := w.NewTable("Cluster", "Supply mode", "Bands")
		for _, p := range table.Profiles() {
			t.AddRow(p.Cluster, p.SupplyMode, fmt.Sprint(counts[p]))
		}
		t.Render()
		return nil
	}

	cluster := types.NormalizeIdentity(tableCluster)
	headers := []string{"Line", "Supply mode", "Min", "Max"}
	cols := table.Schema.RateColumns()
	for _, col := range cols {
		headers = append(headers, col.Key.String())
	}
	t := w.NewTable(headers...)
	for _, r := range table.Rows() {
		if r.Cluster != cluster {
			continue
		}
		cells := []string{fmt.Sprint(r.Line), r.SupplyMode, output.Amount(r.RevenueMin), output.Amount(r.RevenueMax)}
		for _, col := range cols {
			v, _ := r.Rate(col.Key.Supplier, col.Key.Year)
			cells = append(cells, rateCell(v))
		}
		t.AddRow(cells...)
	}
	if t.Len() == 0 {
		w.Warning("No bands for cluster %q", cluster)
		return nil
	}
	t.Render()
	return nil
}

func rateCell(v types.RateValue) string {
	switch v.Status {
	case types.RateIneligible:
		return output.Percent(v.Value) + "*"
	case types.RateMissing:
		if v.IsSentinel() {
			return "-"
		}
		return output.Percent(v.Value) + "?"
	default:
		return output.Percent(v.Value)
	}
}

func runTableSniff(cmd *cobra.Command, args []string) error {
	a, err := newApp(config.Get())
	if err != nil {
		return err
	}
	explicit := sourcePath
	if len(args) > 0 {
		explicit = args[0]
	}
	path, err := a.locate(explicit)
	if err != nil {
		return err
	}

	// Sniffing bypasses the cache so the report reflects the file as it is now.
	res, err := a.lifecycle.Load(path)
	if err != nil {
		return err
	}
	d := res.Diagnostics
	w := a.writer(cmd.OutOrStdout())

	w.Header("Sniff " + res.Path)
	w.KeyValue("Kind", string(res.Format.Kind))
	if res.Format.Kind == ingestion.KindSpreadsheet {
		w.KeyValue("Sheet", res.Format.Sheet)
	} else {
		w.KeyValue("Encoding", res.Format.Encoding)
		w.KeyValue("Delimiter", res.Format.DelimiterName())
	}
	w.KeyValue("Header row", fmt.Sprint(res.Format.HeaderRow+1))
	w.KeyValue("Schema", fmt.Sprintf("%s (%d columns)", res.Schema.Version, res.Schema.Width()))
	w.KeyValue("Columns", strings.Join(res.Schema.Fields(), ", "))
	w.KeyValue("Fingerprint", res.Fingerprint.String())
	w.KeyValue("Duration", res.Duration.String())
	w.Println("")

	t := w.NewTable("Rows", "Count")
	t.AddRow("read", fmt.Sprint(d.RowsRead))
	t.AddRow("kept", fmt.Sprint(d.RowsKept))
	t.AddRow("blank", fmt.Sprint(d.BlankRows))
	t.AddRow("too narrow", fmt.Sprint(d.NarrowRows))
	t.AddRow("extra columns", fmt.Sprint(d.ExtraColumns))
	t.AddRow("ineligible cells", fmt.Sprint(d.IneligibleCells))
	t.AddRow("missing cells", fmt.Sprint(d.MissingCells))
	t.Render()

	if len(d.Flagged) > 0 {
		w.Println("")
		for _, f := range d.Flagged {
			w.Warning("line %d excluded: %s", f.Line, f.Reason)
		}
	}
	return nil
}
