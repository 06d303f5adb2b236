// Package core holds the domain model and the commission computation
// engine. Everything in this package is pure: deterministic functions of
// (job, settings) with no storage or transport concerns.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered amount string to a decimal, applying
// the boundary coercion policy: anything that is not a well-formed
// non-negative number becomes zero. Callers rely on this never failing so
// half-typed form values flow through the engine as zeros instead of
// errors.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParsePercent parses a percentage with the same coercion policy as
// ParseAmount and additionally clamps the result to the 0-100 range.
func ParsePercent(s string) decimal.Decimal {
	p := ParseAmount(s)
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}
