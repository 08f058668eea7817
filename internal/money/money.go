// Package money converts between exact decimal amounts and the integer cents
// stored by the embedded backend.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for every amount.
const Scale = 2

// MaxAmount is the largest amount either backend can store (NUMERIC(12,2)).
var MaxAmount = decimal.RequireFromString("9999999999.99")

var ErrOutOfRange = errors.New("money: amount out of range")

// FromCents returns the decimal amount for an integer number of cents.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -Scale)
}

// ToCents rounds d to two decimals and returns it as integer cents. Amounts
// beyond MaxAmount in either direction are rejected with ErrOutOfRange.
func ToCents(d decimal.Decimal) (int64, error) {
	rounded := d.Round(Scale)
	if !InRange(rounded) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, rounded.String())
	}
	return rounded.Shift(Scale).IntPart(), nil
}

// InRange reports whether |d| does not exceed MaxAmount.
func InRange(d decimal.Decimal) bool {
	return !d.Abs().GreaterThan(MaxAmount)
}

// HasValidScale reports whether d carries at most two fractional digits.
func HasValidScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(Scale))
}

// Format renders d with exactly two fractional digits, e.g. "30.00".
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
