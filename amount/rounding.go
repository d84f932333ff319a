package amount

import (
	"github.com/shopspring/decimal"
)

// RoundHalfAwayFromZero rounds a decimal amount to the nearest whole unit,
// ties rounding away from zero (42.5 -> 43, -42.5 -> -43). Implemented by
// nudging half a unit toward the sign and truncating, so the tie behavior
// is explicit rather than inherited from the decimal library.
func RoundHalfAwayFromZero(d decimal.Decimal) Int {
	half := decimal.NewFromFloat(0.5)
	var nudged decimal.Decimal
	if d.IsNegative() {
		nudged = d.Sub(half)
	} else {
		nudged = d.Add(half)
	}
	return FromInt64(nudged.Truncate(0).IntPart())
}

// CentsFromDecimal converts a decimal major-unit amount (e.g. "42.50") into
// whole minor units (4250), rounding half away from zero on inputs that
// carry more than 2 decimal places.
func CentsFromDecimal(d decimal.Decimal) Int {
	return RoundHalfAwayFromZero(d.Mul(decimal.NewFromInt(100)))
}
