package normalizer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of fractional digits amounts are compared at.
const AmountPlaces = 2

var amountNoise = regexp.MustCompile(`[$\s']|MXN|MN`)

// StandardizeAmount strips currency markers, whitespace and thousands
// separators so the result can be read by decimal.NewFromString. Amounts in
// the batch and in CEP documents use a dot as decimal separator, so every
// comma is a thousands separator.
func StandardizeAmount(amountStr string) string {
	amountStr = amountNoise.ReplaceAllString(strings.ToUpper(amountStr), "")
	return strings.ReplaceAll(amountStr, ",", "")
}

// ParseAmount reads an amount and rounds it to AmountPlaces.
// "123", "123.0" and "$1,234.00" style inputs are accepted; empty or
// non-numeric input is an error.
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	standardized := StandardizeAmount(amountStr)
	if standardized == "" {
		return decimal.Zero, fmt.Errorf("empty amount %q", amountStr)
	}

	amount, err := decimal.NewFromString(standardized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	return amount.Round(AmountPlaces), nil
}

// AmountsEqual compares two amounts numerically after rounding both to two
// fractional digits, so "100", "100.0" and "100.00" are equal.
func AmountsEqual(a, b string) (bool, error) {
	left, err := ParseAmount(a)
	if err != nil {
		return false, err
	}
	right, err := ParseAmount(b)
	if err != nil {
		return false, err
	}
	return left.Equal(right), nil
}
