// Package types - Pharmacy profile and purchase allocation
package types

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"pharma-margin/core/determinism"
	"pharma-margin/internal/errors"
)

// PharmacyProfile selects a rate sub-table
type PharmacyProfile struct {
	Cluster    string `json:"cluster"`
	SupplyMode string `json:"supply_mode"`
}

// NewPharmacyProfile builds a profile with normalized identity fields
func NewPharmacyProfile(cluster, supplyMode string) PharmacyProfile {
	return PharmacyProfile{
		Cluster:    NormalizeIdentity(cluster),
		SupplyMode: NormalizeIdentity(supplyMode),
	}
}

// Validate rejects empty identity fields
func (p PharmacyProfile) Validate() error {
	if p.Cluster == "" {
		return errors.Input("cluster is required")
	}
	if p.SupplyMode == "" {
		return errors.Input("supply mode is required")
	}
	return nil
}

// String returns "cluster / supply mode"
func (p PharmacyProfile) String() string {
	return p.Cluster + " / " + p.SupplyMode
}

// PurchaseAllocation is the reference-year purchase amount per supplier
type PurchaseAllocation map[Supplier]decimal.Decimal

// ParseAllocation builds an allocation from textual amounts keyed by supplier name.
// Amounts are read like the grid's revenue cells: "5 000,50 €" is 5000.50.
func ParseAllocation(raw map[string]string) (PurchaseAllocation, error) {
	alloc := make(PurchaseAllocation, len(raw))
	for name, text := range raw {
		sup := ParseSupplier(name)
		if sup == "" {
			return nil, errors.Input("empty supplier name in allocation")
		}
		amount, err := ParseAmount(text)
		if err != nil {
			return nil, errors.Newf(errors.TypeInput, "invalid amount %q for %s", text, sup)
		}
		alloc[sup] = alloc[sup].Add(amount)
	}
	return alloc, nil
}

// Total returns the sum of all amounts
func (a PurchaseAllocation) Total() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range a {
		total = total.Add(amount)
	}
	return total
}

// Suppliers returns suppliers in lexical order
func (a PurchaseAllocation) Suppliers() []Supplier {
	return determinism.SortedKeys(a, func(x, y Supplier) bool { return x < y })
}

// Amount returns the amount of a supplier, zero when absent
func (a PurchaseAllocation) Amount(s Supplier) decimal.Decimal {
	return a[s]
}

// Validate rejects negative amounts and a zero total
func (a PurchaseAllocation) Validate() error {
	for _, s := range a.Suppliers() {
		if a[s].IsNegative() {
			return errors.Newf(errors.TypeInput, "purchase amount for %s is negative: %s", s, a[s])
		}
	}
	if a.Total().IsZero() {
		return errors.ZeroAllocation()
	}
	return nil
}

// ParseAmount reads a euro amount. Currency symbols and all whitespace,
// NBSP included, are dropped and a decimal comma becomes a point. Blank and a
// lone dash read as 0; any other non-numeric residue is an error.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, raw)

	if s == "" || s == "-" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(decimalPoint(s))
}

// decimalPoint turns a decimal comma into a point. When both separators are
// present and the comma comes last, points are thousands separators.
func decimalPoint(s string) string {
	comma := strings.LastIndexByte(s, ',')
	if comma < 0 {
		return s
	}
	if strings.LastIndexByte(s, '.') < comma {
		s = strings.ReplaceAll(s, ".", "")
	}
	return strings.ReplaceAll(s, ",", ".")
}
