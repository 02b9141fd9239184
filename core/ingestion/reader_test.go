package ingestion

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"pharma-margin/core/types"
	"pharma-margin/internal/errors"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func readText(t *testing.T, opts Options, text string) (*RawTable, error) {
	t.Helper()
	candidates, lines, err := NewSniffer(opts).Candidates([]byte(text))
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}
	return ReadTable(candidates, lines, opts.MinWidth())
}

func TestReadTableLineNumbers(t *testing.T) {
	table, err := readText(t, DefaultOptions(), semicolonGrid)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if table.Width != 10 {
		t.Errorf("Width = %d, want 10", table.Width)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(table.Rows))
	}
	if table.Rows[0].Line != 4 || table.Rows[1].Line != 5 {
		t.Errorf("lines = %d,%d want 4,5", table.Rows[0].Line, table.Rows[1].Line)
	}
}

func TestReadTableCountsBlankRows(t *testing.T) {
	text := commaGrid + ",,,,,,,,,\n  ,,,,,,,,,\n"
	table, err := readText(t, DefaultOptions(), text)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if table.BlankRows != 2 || len(table.Rows) != 1 {
		t.Errorf("BlankRows = %d rows = %d, want 2 and 1", table.BlankRows, len(table.Rows))
	}
}

func TestReadTableFallsBackToNextDelimiter(t *testing.T) {
	enc := EncodingUTF8
	lines := splitLines(semicolonGrid)
	candidates := []FormatCandidate{
		{Encoding: enc, Delimiter: ',', HeaderRow: 2},
		{Encoding: enc, Delimiter: ';', HeaderRow: 2},
	}

	table, err := ReadTable(candidates, lines, DefaultOptions().MinWidth())
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if table.Format.Delimiter != ';' {
		t.Errorf("Delimiter = %q, want ';'", table.Format.Delimiter)
	}
}

func TestReadTableTooNarrow(t *testing.T) {
	_, err := readText(t, DefaultOptions(), "CLUSTER;APPRO;A;B\nAprium;Direct;1;2\n")
	e, ok := errors.As(err)
	if !ok || e.Type != errors.TypeSchemaTooNarrow {
		t.Fatalf("error = %v, want SCHEMA_TOO_NARROW", err)
	}
	if e.Context["delimiter"] != ";" {
		t.Errorf("reported delimiter = %v, want the preferred one", e.Context["delimiter"])
	}
}

func TestReadTableNarrowRowsOnly(t *testing.T) {
	text := "CLUSTER;APPRO;A;B;C;D;E;F;G;H\nAprium;Direct;1;2\n"
	_, err := readText(t, DefaultOptions(), text)
	e, ok := errors.As(err)
	if !ok || e.Type != errors.TypeSchemaTooNarrow {
		t.Fatalf("error = %v, want SCHEMA_TOO_NARROW", err)
	}
	if e.Context["narrow_rows"] != 1 {
		t.Errorf("narrow_rows = %v, want 1", e.Context["narrow_rows"])
	}
}

func TestReadTableIgnoresTrailingEmptyHeaderCells(t *testing.T) {
	text := "CLUSTER;APPRO;A;B;C;D;E;F;G;H;;\nAprium;Direct;0;10;0,1;0,1;0,1;0,1;0,1;0,1;;\n"
	table, err := readText(t, DefaultOptions(), text)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if table.Width != 10 {
		t.Errorf("Width = %d, want 10", table.Width)
	}
}

func TestReadTableNoCandidates(t *testing.T) {
	_, err := ReadTable(nil, []string{"CLUSTER"}, 10)
	if !errors.IsType(err, errors.TypeConfig) {
		t.Fatalf("error = %v, want CONFIG_ERROR", err)
	}
}

func TestNormalizeCompact(t *testing.T) {
	opts := DefaultOptions()
	raw, err := readText(t, opts, semicolonGrid)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}

	table, err := NewSchemaNormalizer(opts).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if table.Schema.Version != types.SchemaCompact {
		t.Errorf("schema = %s, want compact", table.Schema.Version)
	}

	want := types.RateRow{
		Line:       4,
		Cluster:    "Aprium",
		SupplyMode: "Direct",
		RevenueMin: decimal.Zero,
		RevenueMax: decimal.NewFromInt(100000),
		Rates: map[types.RateKey]types.RateValue{
			{Supplier: types.SupplierNestle, Year: 2026}:   present("0.25"),
			{Supplier: types.SupplierLactalis, Year: 2026}: {Value: decimal.RequireFromString("0.12"), Status: types.RateIneligible},
			{Supplier: types.SupplierNutricia, Year: 2026}: present("0.20"),
			{Supplier: types.SupplierNestle, Year: 2025}:   present("0.18"),
			{Supplier: types.SupplierLactalis, Year: 2025}: present("0.10"),
			{Supplier: types.SupplierNutricia, Year: 2025}: present("0.15"),
		},
	}
	if diff := cmp.Diff(want, table.Rows[0], decimalComparer); diff != "" {
		t.Errorf("first row mismatch (-want +got):\n%s", diff)
	}

	d := table.Diagnostics
	if d.RowsRead != 2 || d.RowsKept != 2 || d.IneligibleCells != 1 || d.MissingCells != 0 {
		t.Errorf("diagnostics = %+v", d)
	}
}

func TestNormalizeExtended(t *testing.T) {
	text := "CLUSTER,APPRO,MIN,MAX,N26,L26,U26,O26,N25,L25,U25,O25,NOTE\n" +
		"Aprium,Direct,0,10000,0.1,0.2,0.3,0.4,0.05,0.06,0.07,0.08,hello\n"

	opts := DefaultOptions()
	raw, err := readText(t, opts, text)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	table, err := NewSchemaNormalizer(opts).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if table.Schema.Version != types.SchemaExtended {
		t.Fatalf("schema = %s, want extended", table.Schema.Version)
	}
	row := table.Rows[0]
	if v, _ := row.Rate("OTHER", 2026); !v.Value.Equal(decimal.RequireFromString("0.4")) {
		t.Errorf("OTHER_2026 = %s, want 0.4", v.Value)
	}
	if v, _ := row.Rate(types.SupplierNestle, 2025); !v.Value.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("NESTLE_2025 = %s, want 0.05", v.Value)
	}
	if diff := cmp.Diff([]string{"hello"}, row.Extra); diff != "" {
		t.Errorf("extra mismatch:\n%s", diff)
	}
	if table.Diagnostics.ExtraColumns != 1 {
		t.Errorf("ExtraColumns = %d, want 1", table.Diagnostics.ExtraColumns)
	}
}

func TestNormalizeFlagsInvertedBands(t *testing.T) {
	text := commaGrid + "Aprium,Grossiste,5000,1000,0.1,0.1,0.1,0.1,0.1,0.1\n"

	opts := DefaultOptions()
	raw, err := readText(t, opts, text)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	table, err := NewSchemaNormalizer(opts).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if len(table.Rows) != 1 {
		t.Errorf("kept rows = %d, want 1", len(table.Rows))
	}
	if len(table.Diagnostics.Flagged) != 1 || table.Diagnostics.Flagged[0].Line != 3 {
		t.Errorf("flagged = %+v, want line 3", table.Diagnostics.Flagged)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	opts := DefaultOptions()
	run := func() []types.RateRow {
		raw, err := readText(t, opts, semicolonGrid)
		if err != nil {
			t.Fatalf("ReadTable() error = %v", err)
		}
		table, err := NewSchemaNormalizer(opts).Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		return table.Rows
	}

	if diff := cmp.Diff(run(), run(), decimalComparer); diff != "" {
		t.Errorf("second run differs:\n%s", diff)
	}
}

func present(v string) types.RateValue {
	return types.RateValue{Value: decimal.RequireFromString(v), Status: types.RatePresent}
}
