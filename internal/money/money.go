// Package money provides the exact-decimal arithmetic helpers shared by the
// order book, settlement, and production engine. Every cash and unit-price
// value in the auction house flows through decimal.Decimal rather than
// float64 so that conservation invariants (spec I1, P1) hold exactly rather
// than approximately.
package money

import "github.com/shopspring/decimal"

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return Min(Max(v, lo), hi)
}

// MinInt returns the smaller of a and b.
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// MaxInt returns the larger of a and b.
func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
