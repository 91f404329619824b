// Package money holds fixed-point helpers for amounts stored in minor currency units.
//
// Every helper rounds HALF_UP (half away from zero) to the nearest minor unit at
// the point of computation. Callers never see fractional minor units.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

var (
	hundred     = decimal.NewFromInt(100)
	tenThousand = decimal.NewFromInt(10000)
)

// Round converts a decimal amount expressed in minor units to Money using HALF_UP.
func Round(d decimal.Decimal) Money {
	return d.Round(0).IntPart()
}

// PercentBps returns amount * bps / 10000, where bps is expressed in basis points.
func PercentBps(amount Money, bps int64) Money {
	if amount == 0 || bps == 0 {
		return 0
	}
	return Round(decimal.NewFromInt(amount).Mul(decimal.NewFromInt(bps)).Div(tenThousand))
}

// Percent returns amount * pct / 100 where pct may carry a fraction (e.g. 7.5).
func Percent(amount Money, pct decimal.Decimal) Money {
	if amount == 0 || pct.IsZero() {
		return 0
	}
	return Round(decimal.NewFromInt(amount).Mul(pct).Div(hundred))
}

// MulQuantity scales a unit amount by a possibly fractional quantity.
func MulQuantity(unit Money, qty decimal.Decimal) Money {
	return Round(decimal.NewFromInt(unit).Mul(qty))
}

// DivRound divides amount by n. A non-positive divisor yields zero.
func DivRound(amount Money, n int) Money {
	if n <= 0 {
		return 0
	}
	return Round(decimal.NewFromInt(amount).Div(decimal.NewFromInt(int64(n))))
}

// BpsFraction renders bps as a four-digit fraction of one ("1500" -> "0.1500").
func BpsFraction(bps int64) string {
	return decimal.NewFromInt(bps).Abs().Div(tenThousand).StringFixed(4)
}

// Format renders minor units as a major-unit string with two decimals.
func Format(m Money) string {
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	return fmt.Sprintf("%s%d.%02d", sign, m/100, m%100)
}
