package ingestion

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"pharma-margin/core/types"
)

var hundred = decimal.NewFromInt(100)

// CleanCurrency coerces a revenue cell. It never fails: blanks, a lone dash
// and any non-numeric residue become 0.
func CleanCurrency(raw string) decimal.Decimal {
	d, err := types.ParseAmount(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// foldAccents strips combining marks so "Non éligible" matches "NON ELIGIBLE"
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// canonicalText uppercases, folds accents and collapses inner whitespace
func canonicalText(s string) string {
	return strings.Join(strings.Fields(foldAccents(strings.ToUpper(s))), " ")
}

// wordSeparators reads "NON-ELIGIBLE" and "non_eligible" as two words
var wordSeparators = strings.NewReplacer("-", " ", "_", " ")

// markerText is canonicalText with word separators folded, for phrase matching only
func markerText(s string) string {
	return canonicalText(wordSeparators.Replace(s))
}

// Clean coerces a rate cell. Precedence: ineligibility phrase, then numeric
// fraction, then the missing policy.
func (p RatePolicy) Clean(raw string) types.RateValue {
	s := canonicalText(raw)

	if marker := markerText(p.IneligibleMarker); marker != "" && strings.Contains(markerText(raw), marker) {
		return types.RateValue{Value: p.IneligibleFallback, Status: types.RateIneligible}
	}

	s = strings.ReplaceAll(s, " ", "")
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")
	if s == "" {
		return p.missing()
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil || d.IsNegative() {
		return p.missing()
	}
	if percent {
		d = d.Div(hundred)
	}
	return types.RateValue{Value: d, Status: types.RatePresent}
}

func (p RatePolicy) missing() types.RateValue {
	if p.Missing == MissingStrict {
		return types.RateValue{Value: strictSentinel, Status: types.RateMissing}
	}
	return types.RateValue{Value: decimal.Zero, Status: types.RateMissing}
}
