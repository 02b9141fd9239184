// Package types defines core domain types shared across all layers.
// This package contains NO business logic - only type definitions and invariants.
package types

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Supplier identifies an infant-nutrition laboratory
type Supplier string

const (
	SupplierNestle   Supplier = "NESTLE"
	SupplierLactalis Supplier = "LACTALIS"
	SupplierNutricia Supplier = "NUTRICIA"
)

// String returns the string representation of the supplier
func (s Supplier) String() string {
	return string(s)
}

// ParseSupplier normalizes user input to a Supplier
func ParseSupplier(raw string) Supplier {
	return Supplier(strings.ToUpper(strings.TrimSpace(raw)))
}

// RateKey addresses one rate column: a supplier for a given year
type RateKey struct {
	Supplier Supplier `json:"supplier"`
	Year     int      `json:"year"`
}

// String returns the canonical column name, e.g. NESTLE_2026
func (k RateKey) String() string {
	return fmt.Sprintf("%s_%d", k.Supplier, k.Year)
}

// NormalizeIdentity trims surrounding whitespace (including non-breaking
// spaces) and composes the text to NFC. Identity fields are compared with
// exact, case-sensitive equality after this step.
func NormalizeIdentity(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
