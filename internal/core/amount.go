// Package core provides the expense tracking domain model.
//
// This file contains parsing for user-entered monetary amounts. Amounts are
// kept as fixed-precision decimals; floating point never enters arithmetic.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a user-entered amount string to a decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Negative amounts are allowed; they represent refunds or corrections.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-5")    -> -5, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
