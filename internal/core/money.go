// Package core defines the domain types shared by every layer of the
// application, plus money formatting helpers.
//
// Amounts are plain float64 decimals end to end; computations that could
// produce NaN or Infinity substitute defined fallbacks instead (see IsFinite).
// Formatting goes through shopspring/decimal so user-facing figures are always
// rendered with exactly two decimal places, half-up rounded.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatBRL renders a value as Brazilian currency, e.g. 1234.5 -> "R$ 1.234,50".
// Negative values render as "-R$ 1.234,50".
func FormatBRL(v float64) string {
	d := decimal.NewFromFloat(v)
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)

	intPart, fracPart, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("R$ ")
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(fracPart)
	return b.String()
}

// FormatPercent renders a percentage with one decimal place and a comma
// separator, e.g. 25.0 -> "25,0%".
func FormatPercent(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(1)
	return strings.ReplaceAll(s, ".", ",") + "%"
}
