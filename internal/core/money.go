// Package core holds the transaction record, its validation rules and the
// parsing helpers shared by every inbound adapter.
//
// Amounts are kept as exact decimals and never as floats. ParseAmount is the
// single entry point for user-typed amounts:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("1e3")    -> error
//	ParseAmount("-5")     -> error
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// MaxFractionDigits bounds the precision accepted from user input.
const MaxFractionDigits = 8

// ParseAmount converts a user-typed decimal string into an exact amount.
//
// Both dot and comma are accepted as decimal separator. Signs, exponents,
// thousands separators and more than MaxFractionDigits fractional digits are
// rejected. Zero is a valid amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrNegativeAmount
	}
	if strings.HasPrefix(s, "+") {
		return decimal.Zero, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if len(fracPart) > MaxFractionDigits {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if intPart == "" {
		intPart = "0"
	}
	normalized := intPart
	if fracPart != "" {
		normalized += "." + fracPart
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
