// Package guard holds the checks that protect vault operations from bad
// prices: swap price limits, the TWAP deviation band and a reentrancy lock.
package guard

import (
	"errors"

	"github.com/holiman/uint256"

	"liquidityVault/internal/v3math"
)

// MaxBPS is 100% in basis points.
const MaxBPS = 10_000

var (
	ErrToleranceTooHigh = errors.New("tolerance must be below 100%")

	// sqrt factors are carried with 9 decimals so that
	// isqrt(bps * 1e14) == sqrt(bps / 1e4) * 1e9.
	sqrtScale      = uint256.NewInt(1_000_000_000)
	bpsToSqrtInput = uint256.NewInt(100_000_000_000_000)
)

// scaleSqrtPrice returns sqrtP * sqrt(factorBPS / MaxBPS).
func scaleSqrtPrice(sqrtP *uint256.Int, factorBPS uint64) (*uint256.Int, error) {
	factor := new(uint256.Int).Mul(uint256.NewInt(factorBPS), bpsToSqrtInput)
	factor.Sqrt(factor)
	return v3math.MulDiv(sqrtP, factor, sqrtScale)
}

// PriceLimit returns the sqrt price bound for a swap that starts at sqrtP.
// Swapping token0 for token1 pushes the price down, so the limit sits
// below sqrtP; the other direction puts it above. The result is clamped to
// the range the pool accepts.
func PriceLimit(sqrtP *uint256.Int, zeroForOne bool, toleranceBPS uint16) (*uint256.Int, error) {
	if toleranceBPS >= MaxBPS {
		return nil, ErrToleranceTooHigh
	}
	factor := uint64(MaxBPS) + uint64(toleranceBPS)
	if zeroForOne {
		factor = uint64(MaxBPS) - uint64(toleranceBPS)
	}
	limit, err := scaleSqrtPrice(sqrtP, factor)
	if err != nil {
		return nil, err
	}

	if zeroForOne {
		if floor := new(uint256.Int).AddUint64(v3math.MinSqrtRatio, 1); limit.Lt(floor) {
			limit = floor
		}
	} else {
		if ceil := new(uint256.Int).SubUint64(v3math.MaxSqrtRatio, 1); limit.Gt(ceil) {
			limit = ceil
		}
	}
	return limit, nil
}

// WithinLimit reports whether a post-swap price has stayed on the allowed
// side of limit.
func WithinLimit(sqrtAfter, limit *uint256.Int, zeroForOne bool) bool {
	if zeroForOne {
		return !sqrtAfter.Lt(limit)
	}
	return !sqrtAfter.Gt(limit)
}
