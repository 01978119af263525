package v3math

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// Q96 is 2^96, the scale of sqrt prices.
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	// Q128 is 2^128, the scale of fee growth counters.
	Q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	// MaxUint128 bounds liquidity and collected amounts.
	MaxUint128 = new(uint256.Int).Sub(Q128, uint256.NewInt(1))
	// MaxUint160 bounds sqrt prices.
	MaxUint160 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 160), uint256.NewInt(1))

	ErrMulDivOverflow    = errors.New("mulDiv result overflows 256 bits")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrLiquidityOverflow = errors.New("liquidity overflows uint128")
)

// MulDiv returns floor(a*b/d) using a 512-bit intermediate product.
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, ErrMulDivOverflow
	}
	return z, nil
}

// MulDivRoundingUp returns ceil(a*b/d) using a 512-bit intermediate product.
func MulDivRoundingUp(a, b, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, d)
	if err != nil {
		return nil, err
	}
	if !new(uint256.Int).MulMod(a, b, d).IsZero() {
		if _, overflow := z.AddOverflow(z, uint256.NewInt(1)); overflow {
			return nil, ErrMulDivOverflow
		}
	}
	return z, nil
}

// DivRoundingUp returns ceil(a/d).
func DivRoundingUp(a, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z := new(uint256.Int).Div(a, d)
	if !new(uint256.Int).Mod(a, d).IsZero() {
		z.AddUint64(z, 1)
	}
	return z, nil
}

// ToUint128 checks that v fits the liquidity domain.
func ToUint128(v *uint256.Int) (*uint256.Int, error) {
	if v.Gt(MaxUint128) {
		return nil, ErrLiquidityOverflow
	}
	return v, nil
}

// Min returns the smaller of a and b.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}
