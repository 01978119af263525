package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"liquidityVault/internal/v3math"
)

var (
	ErrOracleDeviation          = errors.New("spot price deviates from TWAP beyond tolerance")
	ErrInvalidOracleWindow      = errors.New("invalid oracle window")
	ErrInsufficientObservations = errors.New("insufficient oracle observations")
)

// Observer exposes the pool's tick accumulator. For each entry of
// secondsAgos it returns the cumulative tick at that point in the past.
type Observer interface {
	Observe(ctx context.Context, secondsAgos []uint32) ([]int64, error)
}

// TWAPTick averages the tick over window seconds from the cumulatives
// observed at [window, 0] seconds ago. Negative averages round toward
// negative infinity.
func TWAPTick(cumulatives []int64, window uint32) (int32, error) {
	if window == 0 {
		return 0, ErrInvalidOracleWindow
	}
	if len(cumulatives) < 2 {
		return 0, ErrInsufficientObservations
	}
	delta := cumulatives[1] - cumulatives[0]
	w := int64(window)
	tick := delta / w
	if delta < 0 && delta%w != 0 {
		tick--
	}
	if tick < int64(v3math.MinTick) || tick > int64(v3math.MaxTick) {
		return 0, fmt.Errorf("twap tick %d: %w", tick, ErrInsufficientObservations)
	}
	return int32(tick), nil
}

// CheckDeviation requires spot to sit within toleranceBPS of the price at
// twapTick, checking only the side spot has moved to.
func CheckDeviation(spotSqrtPrice *uint256.Int, twapTick int32, toleranceBPS uint16) error {
	if toleranceBPS >= MaxBPS {
		return ErrToleranceTooHigh
	}
	twapSqrt, err := v3math.GetSqrtRatioAtTick(twapTick)
	if err != nil {
		return err
	}

	if spotSqrtPrice.Gt(twapSqrt) {
		upper, err := scaleSqrtPrice(twapSqrt, uint64(MaxBPS)+uint64(toleranceBPS))
		if err != nil {
			return err
		}
		if spotSqrtPrice.Gt(upper) {
			return fmt.Errorf("spot %s above band %s: %w", spotSqrtPrice.Dec(), upper.Dec(), ErrOracleDeviation)
		}
		return nil
	}

	lower, err := scaleSqrtPrice(twapSqrt, uint64(MaxBPS)-uint64(toleranceBPS))
	if err != nil {
		return err
	}
	if spotSqrtPrice.Lt(lower) {
		return fmt.Errorf("spot %s below band %s: %w", spotSqrtPrice.Dec(), lower.Dec(), ErrOracleDeviation)
	}
	return nil
}

// CheckOracle reads the TWAP over window seconds and checks spot against it.
func CheckOracle(ctx context.Context, obs Observer, spotSqrtPrice *uint256.Int, window uint32, toleranceBPS uint16) error {
	if window == 0 {
		return ErrInvalidOracleWindow
	}
	cumulatives, err := obs.Observe(ctx, []uint32{window, 0})
	if err != nil {
		return fmt.Errorf("observe %ds: %w: %w", window, ErrInsufficientObservations, err)
	}
	tick, err := TWAPTick(cumulatives, window)
	if err != nil {
		return err
	}
	return CheckDeviation(spotSqrtPrice, tick, toleranceBPS)
}
