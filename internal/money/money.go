// Package money represents peso amounts as integer centavos.
package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Cents is an amount in centavos, the currency's minimum unit.
type Cents int64

// FromDecimal rounds d to two places (half away from zero) and converts it to centavos.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Round(2).Shift(2).IntPart())
}

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// Parse reads a decimal string such as "1120.50". Amounts that do not fit in
// int64 centavos are rejected.
func Parse(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return 0, fmt.Errorf("parse amount %q: more than two decimal places", s)
	}
	if c := d.Round(2).Shift(2); c.GreaterThan(maxCents) || c.LessThan(minCents) {
		return 0, fmt.Errorf("parse amount %q: out of range", s)
	}
	return FromDecimal(d), nil
}

// Decimal returns c in pesos.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// ApplyRate returns c*rate rounded to the nearest centavo.
func ApplyRate(c Cents, rate decimal.Decimal) Cents {
	return FromDecimal(c.Decimal().Mul(rate))
}

func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}
