// Package amount converts between token units and base units.
package amount

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Parse converts a decimal string in token units to base units. Empty
// means zero.
func Parse(s string, decimals uint8) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	out, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %q overflows", s)
	}
	return out, nil
}

// Format renders base units in token units.
func Format(v *uint256.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -int32(decimals)).String()
}

// priceDigits bounds the fractional digits of a rendered price.
const priceDigits = 18

// Price renders a Q64.96 square-root price as token1 per token0 in
// whole units.
func Price(sqrtPriceX96 *uint256.Int, decimals0, decimals1 uint8) string {
	if sqrtPriceX96 == nil || sqrtPriceX96.IsZero() {
		return "0"
	}
	sq := sqrtPriceX96.ToBig()
	sq.Mul(sq, sq)
	ratio := decimal.NewFromBigInt(sq, 0).Shift(int32(decimals0) - int32(decimals1))
	q192 := decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 192), 0)
	return ratio.DivRound(q192, priceDigits).String()
}
