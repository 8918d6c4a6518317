// Package money holds the fixed-point rules for currency amounts and stock quantities.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits stored for every currency amount.
const Places = 2

// Zero is the zero amount.
var Zero = decimal.Zero

// Round2 rounds to the currency minor unit, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Line returns qty × price without rounding.
func Line(qty int64, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(qty))
}

// Format renders the amount with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// Parse reads a decimal amount.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}
	return d, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// HasCents reports whether d carries at most two fractional digits.
func HasCents(d decimal.Decimal) bool {
	return d.Equal(Round2(d))
}

// WeightedAverage blends the value of the current stock with an inbound
// contribution and rounds the per-unit result. It returns zero when the
// resulting stock is not positive.
func WeightedAverage(oldStock int64, oldAvg decimal.Decimal, inQty int64, contribution decimal.Decimal) decimal.Decimal {
	newStock := oldStock + inQty
	if newStock <= 0 {
		return decimal.Zero
	}
	value := Line(oldStock, oldAvg).Add(contribution)
	return Round2(value.DivRound(decimal.NewFromInt(newStock), 16))
}
