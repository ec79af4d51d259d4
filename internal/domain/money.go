package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places accepted for trade amounts
// and quoted prices.
const AmountScale = 18

// MaxAmount bounds the magnitude of trade amounts and quoted prices.
var MaxAmount = decimal.New(1, 15)

// maxCoefficientBits caps the unscaled value at roughly 77 digits.
const maxCoefficientBits = 256

// WithinPrecision reports whether d has at most AmountScale decimal places
// and a magnitude no greater than MaxAmount. Checks are ordered so that no
// step does work proportional to the exponent.
func WithinPrecision(d decimal.Decimal) bool {
	if d.Sign() == 0 {
		return true
	}
	if d.Coefficient().BitLen() > maxCoefficientBits {
		return false
	}
	exp := d.Exponent()
	if exp > 15 {
		return false
	}
	// A coefficient below 10^78 cannot carry a non-zero value at or above
	// 10^-AmountScale past this exponent.
	if exp < -(AmountScale + 80) {
		return false
	}
	if exp < -AmountScale && !d.Equal(d.Truncate(AmountScale)) {
		return false
	}
	return !d.Abs().GreaterThan(MaxAmount)
}

// FormatUSD renders a currency amount with at least two decimal places.
// Extra precision is kept so that a displayed cost always matches the
// recorded total exactly.
func FormatUSD(d decimal.Decimal) string {
	if d.Exponent() >= -2 {
		return d.StringFixed(2)
	}
	return d.String()
}

// ParseAmount parses a user-supplied decimal string and applies the
// WithinPrecision bound. It does not check the sign; the trading engine
// rejects non-positive amounts.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount must be a number")
	}
	if !WithinPrecision(d) {
		return decimal.Zero, fmt.Errorf("amount must have at most %d decimal places and not exceed %s", AmountScale, MaxAmount)
	}
	return d, nil
}
