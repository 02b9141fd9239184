package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"pharma-margin/internal/errors"
)

var baseSuppliers = []Supplier{SupplierNestle, SupplierLactalis, SupplierNutricia}

func TestColumnSchemaFields(t *testing.T) {
	compact := NewColumnSchema(SchemaCompact, baseSuppliers, "OTHER", 2026, 2025)
	want := []string{
		"CLUSTER", "APPROVISIONNEMENT", "CA_MIN", "CA_MAX",
		"NESTLE_2026", "LACTALIS_2026", "NUTRICIA_2026",
		"NESTLE_2025", "LACTALIS_2025", "NUTRICIA_2025",
	}
	if diff := cmp.Diff(want, compact.Fields()); diff != "" {
		t.Errorf("compact fields mismatch (-want +got):\n%s", diff)
	}
	if compact.Width() != 10 {
		t.Errorf("compact width = %d, want 10", compact.Width())
	}

	extended := NewColumnSchema(SchemaExtended, baseSuppliers, "OTHER", 2026, 2025)
	if extended.Width() != 12 {
		t.Errorf("extended width = %d, want 12", extended.Width())
	}
	fields := extended.Fields()
	if fields[7] != "OTHER_2026" || fields[11] != "OTHER_2025" {
		t.Errorf("extra supplier not interleaved per year: %v", fields)
	}
}

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Aprium ", "Aprium"},
		{" Direct ", "Direct"},
		{"Générale", "Générale"},
		{"aprium", "aprium"},
	}
	for _, tt := range tests {
		if got := NormalizeIdentity(tt.in); got != tt.want {
			t.Errorf("NormalizeIdentity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseAllocation(t *testing.T) {
	alloc, err := ParseAllocation(map[string]string{
		"nestle":    "7000",
		" NUTRICIA": "2999,5",
		"Lactalis":  "",
	})
	if err != nil {
		t.Fatalf("ParseAllocation() error: %v", err)
	}
	if !alloc.Total().Equal(decimal.RequireFromString("9999.5")) {
		t.Errorf("total = %s", alloc.Total())
	}
	if got := alloc.Suppliers(); len(got) != 3 || got[0] != SupplierLactalis {
		t.Errorf("suppliers not sorted: %v", got)
	}

	if _, err := ParseAllocation(map[string]string{"NESTLE": "abc"}); !errors.IsType(err, errors.TypeInput) {
		t.Errorf("expected input error, got %v", err)
	}
}

func TestParseAllocationAcceptsGridAmounts(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5 000", "5000"},
		{"5 000 €", "5000"},
		{"5\u00a0000,50\u00a0€", "5000.5"},
		{"1.234,56", "1234.56"},
		{"-", "0"},
	}
	for _, tt := range tests {
		alloc, err := ParseAllocation(map[string]string{"NESTLE": tt.in})
		if err != nil {
			t.Errorf("ParseAllocation(%q) error: %v", tt.in, err)
			continue
		}
		if got := alloc.Amount(SupplierNestle); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ParseAllocation(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"5 000 euros", "12abc"} {
		if _, err := ParseAllocation(map[string]string{"NESTLE": bad}); !errors.IsType(err, errors.TypeInput) {
			t.Errorf("ParseAllocation(%q) error = %v, want INPUT_ERROR", bad, err)
		}
	}
}

func TestAllocationValidate(t *testing.T) {
	zero := PurchaseAllocation{SupplierNestle: decimal.Zero}
	if err := zero.Validate(); !errors.IsType(err, errors.TypeZeroAllocation) {
		t.Errorf("expected zero allocation error, got %v", err)
	}

	negative := PurchaseAllocation{SupplierNestle: decimal.NewFromInt(-1), SupplierNutricia: decimal.NewFromInt(5)}
	if err := negative.Validate(); !errors.IsType(err, errors.TypeInput) {
		t.Errorf("expected input error, got %v", err)
	}
}

func TestRateRowInvariant(t *testing.T) {
	row := RateRow{Line: 3, RevenueMin: decimal.NewFromInt(2000), RevenueMax: decimal.NewFromInt(1000)}
	if err := row.Validate(); err == nil {
		t.Fatal("expected min > max to be rejected")
	}

	row.RevenueMax = decimal.NewFromInt(2000)
	if err := row.Validate(); err != nil {
		t.Fatalf("degenerate band should be valid: %v", err)
	}
	if !row.Contains(decimal.NewFromInt(2000)) {
		t.Error("bounds are inclusive")
	}
}
