package money

import (
	"fmt"
	"math"
)

// Cents is an amount in integer minor units (1/100 of the currency unit).
// All order math happens in Cents; decimals exist only at the edges.
type Cents int64

// FromFloat converts a decimal currency amount to Cents, rounding half away
// from zero on the 1-cent boundary.
func FromFloat(f float64) Cents {
	return Cents(math.Round(f * 100))
}

// Mul returns the line total for qty units.
func (c Cents) Mul(qty int) Cents {
	return c * Cents(qty)
}

// String renders the amount as a 2-decimal currency string, e.g. "19.98".
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
