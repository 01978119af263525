package v3math

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	ErrInvalidRange   = errors.New("lower tick must be below upper tick")
	ErrMisalignedTick = errors.New("tick not aligned to tick spacing")
)

// Range is the [Lower, Upper) tick interval a position is active in.
type Range struct {
	Lower int32 `json:"lower_tick" mapstructure:"lower"`
	Upper int32 `json:"upper_tick" mapstructure:"upper"`
}

// Validate checks ordering, bounds and tick spacing alignment.
func (r Range) Validate(tickSpacing int32) error {
	if r.Lower >= r.Upper {
		return fmt.Errorf("range [%d, %d]: %w", r.Lower, r.Upper, ErrInvalidRange)
	}
	if r.Lower < MinTick || r.Upper > MaxTick {
		return fmt.Errorf("range [%d, %d]: %w", r.Lower, r.Upper, ErrTickOutOfBounds)
	}
	if tickSpacing <= 0 {
		return fmt.Errorf("tick spacing %d: %w", tickSpacing, ErrMisalignedTick)
	}
	if r.Lower%tickSpacing != 0 || r.Upper%tickSpacing != 0 {
		return fmt.Errorf("range [%d, %d] spacing %d: %w", r.Lower, r.Upper, tickSpacing, ErrMisalignedTick)
	}
	return nil
}

// Contains reports whether tick lies in [Lower, Upper).
func (r Range) Contains(tick int32) bool {
	return tick >= r.Lower && tick < r.Upper
}

// SqrtRatios returns the sqrt prices at both bounds.
func (r Range) SqrtRatios() (lower, upper *uint256.Int, err error) {
	lower, err = GetSqrtRatioAtTick(r.Lower)
	if err != nil {
		return nil, nil, err
	}
	upper, err = GetSqrtRatioAtTick(r.Upper)
	if err != nil {
		return nil, nil, err
	}
	return lower, upper, nil
}

// AmountsForLiquidity converts liquidity in r to token amounts at sqrtP.
func (r Range) AmountsForLiquidity(sqrtP, liquidity *uint256.Int, roundUp bool) (*uint256.Int, *uint256.Int, error) {
	sqrtA, sqrtB, err := r.SqrtRatios()
	if err != nil {
		return nil, nil, err
	}
	return AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity, roundUp)
}

// LiquidityForAmounts converts token amounts to the liquidity they support in r at sqrtP.
func (r Range) LiquidityForAmounts(sqrtP, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB, err := r.SqrtRatios()
	if err != nil {
		return nil, err
	}
	return LiquidityForAmounts(sqrtP, sqrtA, sqrtB, amount0, amount1)
}
