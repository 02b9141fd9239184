package margin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"pharma-margin/core/ingestion"
	"pharma-margin/core/pricing"
	"pharma-margin/core/types"
	"pharma-margin/internal/errors"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// row builds a compact row; rates follow file order: NESTLE, LACTALIS,
// NUTRICIA for 2026 then for 2025. "-1" marks a strict missing cell.
func row(line int, cluster, mode, min, max string, rates ...string) types.RateRow {
	schema := ingestion.DefaultOptions().Schema.Compact()
	r := types.RateRow{
		Line:       line,
		Cluster:    cluster,
		SupplyMode: mode,
		RevenueMin: d(min),
		RevenueMax: d(max),
		Rates:      make(map[types.RateKey]types.RateValue),
	}
	for i, col := range schema.RateColumns() {
		v := types.RateValue{Value: d(rates[i]), Status: types.RatePresent}
		if v.Value.IsNegative() {
			v.Status = types.RateMissing
		}
		r.Rates[col.Key] = v
	}
	return r
}

func table(t *testing.T, rows ...types.RateRow) *pricing.RateTable {
	t.Helper()
	b := pricing.NewTableBuilder(ingestion.DefaultOptions().Schema.Compact())
	for _, r := range rows {
		if err := b.AddRow(r); err != nil {
			t.Fatalf("AddRow() error = %v", err)
		}
	}
	return b.Build()
}

func calculator(t *testing.T, opts Options) *Calculator {
	t.Helper()
	c, err := NewCalculator(opts)
	if err != nil {
		t.Fatalf("NewCalculator() error = %v", err)
	}
	return c
}

func alloc(n, l, u string) types.PurchaseAllocation {
	return types.PurchaseAllocation{
		types.SupplierNestle:   d(n),
		types.SupplierLactalis: d(l),
		types.SupplierNutricia: d(u),
	}
}

var profile = types.PharmacyProfile{Cluster: "Aprium", SupplyMode: "Direct"}

func TestHistoricalWeightedRate(t *testing.T) {
	tbl := table(t, row(2, "Aprium", "Direct", "0", "100000",
		"0.2", "0.1", "0.2", "0.20", "0.10", "0.15"))

	res, err := calculator(t, DefaultOptions()).Calculate(tbl, profile, alloc("6000", "4000", "0"))
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if !res.HistoricalWeightedRate.Equal(d("0.16")) {
		t.Errorf("historical = %s, want 0.16", res.HistoricalWeightedRate)
	}
	if len(res.Contributions) != 3 {
		t.Errorf("contributions = %d, want 3", len(res.Contributions))
	}
}

const e2eGrid = "Grille Remises 2026\n" +
	"CLUSTER;APPROVISIONNEMENT;CA MIN;CA MAX;NESTLE 2026;LACTALIS 2026;NUTRICIA 2026;NESTLE 2025;LACTALIS 2025;NUTRICIA 2025\n" +
	"Aprium;Direct;0 €;5 000 €;0,22;NON ELIGIBLE;0,20;0,18;NON ELIGIBLE;0,225\n" +
	"Aprium;Direct;5 000,01 €;20 000 €;0,25;0,10;0,22;0,20;0,10;0,24\n" +
	"Aprium;Grossiste;0 €;20 000 €;0,15;0,08;0,12;0,14;0,07;0,11\n"

func loadE2E(t *testing.T) *pricing.RateTable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grille_remises.csv")
	if err := os.WriteFile(path, []byte(e2eGrid), 0o644); err != nil {
		t.Fatalf("write grid: %v", err)
	}
	cache := pricing.NewTableCache(ingestion.NewLifecycle(ingestion.DefaultOptions()), pricing.DefaultCachePolicy())
	tbl, err := cache.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return tbl
}

func TestEndToEndAprium(t *testing.T) {
	tbl := loadE2E(t)

	res, err := calculator(t, DefaultOptions()).Calculate(tbl, profile, alloc("5000", "3000", "2000"))
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"historical", res.HistoricalWeightedRate, "0.171"},
		{"projected", res.ProjectedBlendedRate, "0.235"},
		{"delta", res.Delta, "0.064"},
		{"delta per 10k", res.DeltaPer10k, "640"},
	}
	for _, c := range checks {
		if !c.got.Equal(d(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}

	if res.WinningSupplier != types.SupplierNestle || res.LosingSupplier != types.SupplierNutricia {
		t.Errorf("winner/loser = %s/%s", res.WinningSupplier, res.LosingSupplier)
	}
	if res.Winner.Tier.Line != 4 || res.Loser.Tier.Line != 3 {
		t.Errorf("winner line %d loser line %d, want 4 and 3", res.Winner.Tier.Line, res.Loser.Tier.Line)
	}
	if !res.Loser.Volume.Equal(d("3000")) {
		t.Errorf("loser volume = %s", res.Loser.Volume)
	}
}

func TestEndToEndBlendedTotal(t *testing.T) {
	tbl := loadE2E(t)
	opts := DefaultOptions()
	opts.Historical = BlendedTotal{}

	res, err := calculator(t, opts).Calculate(tbl, profile, alloc("5000", "3000", "2000"))
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if !res.HistoricalWeightedRate.Equal(d("0.178")) {
		t.Errorf("historical = %s, want 0.178", res.HistoricalWeightedRate)
	}
	if res.HistoricalPolicy != "blended_total" {
		t.Errorf("policy = %s", res.HistoricalPolicy)
	}
}

func TestTieBreakTowardPreferred(t *testing.T) {
	tbl := table(t, row(2, "Aprium", "Direct", "0", "100000",
		"0.2", "0.1", "0.2", "0.1", "0.1", "0.1"))
	a := alloc("1000", "0", "0")

	tests := []struct {
		name        string
		competitors [2]types.Supplier
		preferred   types.Supplier
		want        types.Supplier
	}{
		{"preferred first", [2]types.Supplier{types.SupplierNestle, types.SupplierNutricia}, types.SupplierNestle, types.SupplierNestle},
		{"preferred second", [2]types.Supplier{types.SupplierNutricia, types.SupplierNestle}, types.SupplierNestle, types.SupplierNestle},
		{"other preferred", [2]types.Supplier{types.SupplierNestle, types.SupplierNutricia}, types.SupplierNutricia, types.SupplierNutricia},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Projection.Competitors = tt.competitors
			opts.Projection.Preferred = tt.preferred

			for i := 0; i < 5; i++ {
				res, err := calculator(t, opts).Calculate(tbl, profile, a)
				if err != nil {
					t.Fatalf("Calculate() error = %v", err)
				}
				if res.WinningSupplier != tt.want {
					t.Fatalf("winner = %s, want %s", res.WinningSupplier, tt.want)
				}
			}
		})
	}
}

func TestHigherRateWins(t *testing.T) {
	tbl := table(t, row(2, "Aprium", "Direct", "0", "100000",
		"0.1", "0.1", "0.3", "0.1", "0.1", "0.1"))

	res, err := calculator(t, DefaultOptions()).Calculate(tbl, profile, alloc("1000", "0", "0"))
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if res.WinningSupplier != types.SupplierNutricia {
		t.Errorf("winner = %s, want NUTRICIA", res.WinningSupplier)
	}
	// 0.7*0.3 + 0.3*0.1
	if !res.ProjectedBlendedRate.Equal(d("0.24")) {
		t.Errorf("projected = %s, want 0.24", res.ProjectedBlendedRate)
	}
}

func TestCalculateRejections(t *testing.T) {
	tbl := table(t, row(2, "Aprium", "Direct", "0", "100000",
		"0.2", "0.1", "0.2", "0.1", "0.1", "0.1"))
	calc := calculator(t, DefaultOptions())

	tests := []struct {
		name    string
		profile types.PharmacyProfile
		alloc   types.PurchaseAllocation
		want    errors.Type
	}{
		{"zero total", profile, alloc("0", "0", "0"), errors.TypeZeroAllocation},
		{"empty allocation", profile, types.PurchaseAllocation{}, errors.TypeZeroAllocation},
		{"negative amount", profile, alloc("-5", "10", "0"), errors.TypeInput},
		{"unknown supplier", profile, types.PurchaseAllocation{"OTHER": d("10")}, errors.TypeInput},
		{"unknown profile", types.PharmacyProfile{Cluster: "Giphar", SupplyMode: "Direct"}, alloc("10", "0", "0"), errors.TypeProfileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Calculate(tbl, tt.profile, tt.alloc)
			if !errors.IsType(err, tt.want) {
				t.Fatalf("error = %v, want %s", err, tt.want)
			}
			if !errors.Recoverable(err) {
				t.Errorf("%s should be recoverable", tt.want)
			}
		})
	}
}

func TestStrictMissingRates(t *testing.T) {
	t.Run("historical supplier with volume", func(t *testing.T) {
		tbl := table(t, row(2, "Aprium", "Direct", "0", "100000",
			"0.2", "0.1", "0.2", "0.1", "-1", "0.1"))
		_, err := calculator(t, DefaultOptions()).Calculate(tbl, profile, alloc("10", "10", "0"))
		if !errors.IsType(err, errors.TypeRateMissing) {
			t.Fatalf("error = %v, want RATE_MISSING", err)
		}
	})

	t.Run("historical supplier without volume", func(t *testing.T) {
		tbl := table(t, row(2, "Aprium", "Direct", "0", "100000",
			"0.2", "0.1", "0.2", "0.1", "-1", "0.1"))
		if _, err := calculator(t, DefaultOptions()).Calculate(tbl, profile, alloc("10", "0", "0")); err != nil {
			t.Fatalf("Calculate() error = %v", err)
		}
	})

	t.Run("competitor", func(t *testing.T) {
		tbl := table(t, row(2, "Aprium", "Direct", "0", "100000",
			"0.2", "0.1", "-1", "0.1", "0.1", "0.1"))
		_, err := calculator(t, DefaultOptions()).Calculate(tbl, profile, alloc("10", "0", "0"))
		if !errors.IsType(err, errors.TypeRateMissing) {
			t.Fatalf("error = %v, want RATE_MISSING", err)
		}
	})
}

func TestBelowAllTiersGivesZeroRate(t *testing.T) {
	tbl := table(t, row(2, "Aprium", "Direct", "1000", "100000",
		"0.2", "0.1", "0.2", "0.1", "0.1", "0.1"))

	res, err := calculator(t, DefaultOptions()).Calculate(tbl, profile, alloc("500", "0", "0"))
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if !res.HistoricalWeightedRate.IsZero() {
		t.Errorf("historical = %s, want 0", res.HistoricalWeightedRate)
	}
	if res.Contributions[0].Tier.Outcome != types.TierBelowAll {
		t.Errorf("outcome = %s", res.Contributions[0].Tier.Outcome)
	}
}

func TestProjectionPolicyValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ProjectionPolicy)
		ok     bool
	}{
		{"default", func(*ProjectionPolicy) {}, true},
		{"full share", func(p *ProjectionPolicy) { p.WinnerShare = d("1") }, true},
		{"half share", func(p *ProjectionPolicy) { p.WinnerShare = d("0.5") }, false},
		{"share above one", func(p *ProjectionPolicy) { p.WinnerShare = d("1.2") }, false},
		{"same competitors", func(p *ProjectionPolicy) { p.Competitors[1] = p.Competitors[0] }, false},
		{"preferred outside", func(p *ProjectionPolicy) { p.Preferred = types.SupplierLactalis }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProjectionPolicy()
			tt.mutate(&p)
			if err := p.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestHistoricalPolicyByName(t *testing.T) {
	for _, name := range HistoricalPolicyNames() {
		p, err := HistoricalPolicyByName(name)
		if err != nil || p.Name() != name {
			t.Errorf("HistoricalPolicyByName(%q) = %v, %v", name, p, err)
		}
	}
	if _, err := HistoricalPolicyByName("average"); !errors.IsType(err, errors.TypeConfig) {
		t.Errorf("unknown policy error = %v", err)
	}
}
