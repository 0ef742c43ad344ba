package core

import (
	"fmt"
	"math/big"
)

// Decimal is an exact fixed-precision number decoded from a packed-decimal
// field. On-disk numerics are BCD, not IEEE floats, so the value is carried
// as an arbitrary-precision integer and never rounds.
type Decimal struct {
	neg      bool
	unscaled big.Int
}

// NewDecimal builds a Decimal from a sign and a decimal digit string.
func NewDecimal(neg bool, digits string) (Decimal, error) {
	var d Decimal
	if digits == "" {
		digits = "0"
	}
	if _, ok := d.unscaled.SetString(digits, 10); !ok {
		return Decimal{}, fmt.Errorf("invalid decimal digits %q", digits)
	}
	d.neg = neg && d.unscaled.Sign() != 0
	return d, nil
}

// DecodePackedDecimal decodes a packed-decimal buffer holding digitCount
// digits. The high nibble of the first byte carries the sign (non-zero means
// positive), and the digit nibbles follow immediately, two per byte.
func DecodePackedDecimal(buf []byte, digitCount int) (Decimal, error) {
	need := digitCount/2 + 1
	if len(buf) < need {
		return Decimal{}, fmt.Errorf("packed decimal needs %d bytes, have %d", need, len(buf))
	}
	nibbles := make([]byte, 0, len(buf)*2)
	for _, b := range buf[:need] {
		nibbles = append(nibbles, b>>4, b&0x0F)
	}
	neg := nibbles[0] == 0
	digits := make([]byte, 0, digitCount)
	for _, n := range nibbles[1 : 1+digitCount] {
		if n > 9 {
			return Decimal{}, fmt.Errorf("invalid BCD nibble %#x", n)
		}
		digits = append(digits, '0'+n)
	}
	return NewDecimal(neg, string(digits))
}

// IsNegative reports the sign. Zero is never negative.
func (d Decimal) IsNegative() bool { return d.neg }

// Int returns a copy of the unscaled magnitude with the sign applied.
func (d Decimal) Int() *big.Int {
	v := new(big.Int).Set(&d.unscaled)
	if d.neg {
		v.Neg(v)
	}
	return v
}

// Rat returns the value as an exact rational, for callers that apply their
// own scale downstream.
func (d Decimal) Rat() *big.Rat {
	return new(big.Rat).SetInt(d.Int())
}

// Int64 returns the value as an int64 when it fits.
func (d Decimal) Int64() (int64, bool) {
	v := d.Int()
	if !v.IsInt64() {
		return 0, false
	}
	return v.Int64(), true
}

func (d Decimal) String() string {
	return d.Int().String()
}

// MarshalJSON renders the value as a JSON number literal, which keeps full
// precision for arbitrarily wide fields.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.String()), nil
}
