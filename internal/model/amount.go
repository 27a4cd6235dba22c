package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a positive decimal payment amount such as "2.0".
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount %q must be positive", s)
	}
	return d, nil
}

// FormatAmount renders d keeping the scale it was written with, so "2.0"
// stays "2.0" rather than collapsing to "2".
func FormatAmount(d decimal.Decimal) string {
	places := -d.Exponent()
	if places < 0 {
		places = 0
	}
	return d.StringFixed(places)
}
