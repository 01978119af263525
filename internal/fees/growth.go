// Package fees computes fees earned by a position from the pool's
// fee-growth counters and splits them between the manager and depositors.
//
// Fee-growth counters are Q128 values that wrap modulo 2^256. All
// subtraction here is modular on purpose: the pool only guarantees that
// differences between two readings of the same counter are meaningful.
package fees

import (
	"github.com/holiman/uint256"

	"liquidityVault/internal/v3math"
)

// Outside is a tick's fee growth on the side away from the current tick.
type Outside struct {
	Lower *uint256.Int
	Upper *uint256.Int
}

// GrowthInside returns the fee growth per unit of liquidity inside r given
// the global counter and the outside counters at both bounds.
func GrowthInside(tickCurrent int32, r v3math.Range, global *uint256.Int, outside Outside) *uint256.Int {
	below := new(uint256.Int)
	if tickCurrent >= r.Lower {
		below.Set(outside.Lower)
	} else {
		below.Sub(global, outside.Lower)
	}

	above := new(uint256.Int)
	if tickCurrent < r.Upper {
		above.Set(outside.Upper)
	} else {
		above.Sub(global, outside.Upper)
	}

	inside := new(uint256.Int).Sub(global, below)
	return inside.Sub(inside, above)
}

// Earned returns liquidity * (growthInside - growthInsideLast) / 2^128.
func Earned(liquidity, growthInside, growthInsideLast *uint256.Int) *uint256.Int {
	delta := new(uint256.Int).Sub(growthInside, growthInsideLast)
	// liquidity < 2^128 so the quotient always fits.
	earned, _ := new(uint256.Int).MulDivOverflow(liquidity, delta, v3math.Q128)
	return earned
}

// EarnedInRange is Earned applied to the growth inside r.
func EarnedInRange(liquidity *uint256.Int, tickCurrent int32, r v3math.Range, global *uint256.Int, outside Outside, growthInsideLast *uint256.Int) *uint256.Int {
	return Earned(liquidity, GrowthInside(tickCurrent, r, global, outside), growthInsideLast)
}
