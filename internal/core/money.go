// Package core provides money parsing and handling utilities.
//
// Amounts on bank statements are signed decimals with two fractional digits.
// They are parsed with shopspring/decimal and stored as integer cents so sums
// in SQL stay exact; series sent to the chart carry float64 amounts.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a signed decimal amount. Both dot and comma decimal
// separators are accepted; thousands separators are not.
//
// Examples:
//
//	ParseAmount("-12.34") -> -12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ToCents converts an amount to cents with half-up rounding on the third decimal.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromCents converts cents back to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// CentsToFloat returns the amount as a float64 for charting.
// Use cents for calculations to avoid floating-point precision issues.
func CentsToFloat(cents int64) float64 {
	f, _ := FromCents(cents).Float64()
	return f
}
