// Package amount provides the arbitrary-precision integer type used for every
// monetary and point quantity in the ledger. No floating point is used
// anywhere in ledger math; all values are whole numbers of minor units
// (cents, points, stamps, ...) backed by math/big so that summation across
// many lots or lines never overflows int64.
package amount

import (
	"database/sql/driver"
	"fmt"
	"math/big"
)

// Int wraps a math/big.Int so it can be used as a struct field with JSON
// and database/sql support.
type Int struct {
	v *big.Int
}

// Zero is the additive identity.
func Zero() Int { return Int{v: big.NewInt(0)} }

// FromInt64 builds an Int from a plain int64 (the common case: a receipt
// total in cents, a points quantity, ...).
func FromInt64(n int64) Int { return Int{v: big.NewInt(n)} }

// FromString parses a base-10 integer string. Used when reading NUMERIC
// columns back out of Postgres.
func FromString(s string) (Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Int{}, fmt.Errorf("amount: invalid integer %q", s)
	}
	return Int{v: v}, nil
}

func (a Int) big() *big.Int {
	if a.v == nil {
		return big.NewInt(0)
	}
	return a.v
}

// Add returns a + b.
func (a Int) Add(b Int) Int { return Int{v: new(big.Int).Add(a.big(), b.big())} }

// Sub returns a - b.
func (a Int) Sub(b Int) Int { return Int{v: new(big.Int).Sub(a.big(), b.big())} }

// Neg returns -a.
func (a Int) Neg() Int { return Int{v: new(big.Int).Neg(a.big())} }

// Mul returns a * n.
func (a Int) Mul(n int64) Int { return Int{v: new(big.Int).Mul(a.big(), big.NewInt(n))} }

// Min returns the smaller of a and b.
func (a Int) Min(b Int) Int {
	if a.big().Cmp(b.big()) <= 0 {
		return a
	}
	return b
}

// Cmp compares a and b: -1, 0, +1.
func (a Int) Cmp(b Int) int { return a.big().Cmp(b.big()) }

// IsZero reports whether the value is exactly zero.
func (a Int) IsZero() bool { return a.big().Sign() == 0 }

// IsPositive reports whether the value is strictly greater than zero.
func (a Int) IsPositive() bool { return a.big().Sign() > 0 }

// IsNegative reports whether the value is strictly less than zero.
func (a Int) IsNegative() bool { return a.big().Sign() < 0 }

// Int64 converts to an int64. Callers must only use this at system
// boundaries (API responses, db round-trips known to fit in 64 bits).
func (a Int) Int64() int64 { return a.big().Int64() }

// String renders the base-10 representation.
func (a Int) String() string { return a.big().String() }

// Big returns a defensive copy of the underlying big.Int, for callers (like
// decimal.NewFromBigInt) that need to interoperate with other
// arbitrary-precision types without risking aliasing the receiver's state.
func (a Int) Big() *big.Int { return new(big.Int).Set(a.big()) }

// Sum adds a list of Int values, starting from zero.
func Sum(values ...Int) Int {
	total := Zero()
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// MarshalJSON implements json.Marshaler, rendering as a JSON number when it
// fits, otherwise as a quoted string to avoid silent precision loss in
// clients that decode JSON numbers as float64.
func (a Int) MarshalJSON() ([]byte, error) {
	const maxExactFloat = 1 << 53
	b := a.big()
	if b.IsInt64() {
		if n := b.Int64(); n >= -maxExactFloat && n <= maxExactFloat {
			return []byte(b.String()), nil
		}
	}
	return []byte(`"` + b.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Int) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("amount: invalid JSON integer %q", string(data))
	}
	a.v = v
	return nil
}

// Value implements driver.Valuer, storing the value as its base-10 text
// representation so the database column (NUMERIC or TEXT) never truncates
// precision the way a bigint column could for extreme accumulations.
func (a Int) Value() (driver.Value, error) {
	return a.big().String(), nil
}

// Scan implements sql.Scanner.
func (a *Int) Scan(src any) error {
	if src == nil {
		a.v = big.NewInt(0)
		return nil
	}
	switch v := src.(type) {
	case string:
		parsed, err := FromString(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		parsed, err := FromString(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case int64:
		a.v = big.NewInt(v)
		return nil
	default:
		return fmt.Errorf("amount: cannot scan %T into Int", src)
	}
}
