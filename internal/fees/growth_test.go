package fees

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/v3math"
)

func q128(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), v3math.Q128)
}

func TestGrowthInsideCurrentTickPositions(t *testing.T) {
	r := v3math.Range{Lower: -100, Upper: 100}
	global := q128(50)
	outside := Outside{Lower: q128(10), Upper: q128(5)}

	// inside: global - lower.outside - upper.outside
	require.True(t, GrowthInside(0, r, global, outside).Eq(q128(35)))

	// below range: below = global - lower.outside, above = upper.outside
	require.True(t, GrowthInside(-200, r, global, outside).Eq(q128(5)))

	// above range: below = lower.outside, above = global - upper.outside
	aboveInside := new(uint256.Int).Sub(q128(5), q128(10))
	require.True(t, GrowthInside(200, r, global, outside).Eq(aboveInside))

	// at the lower bound counts as inside
	require.True(t, GrowthInside(-100, r, global, outside).Eq(q128(35)))
	// at the upper bound counts as above
	require.True(t, GrowthInside(100, r, global, outside).Eq(aboveInside))
}

func TestEarnedWrapsAroundCounterMaximum(t *testing.T) {
	maxU := new(uint256.Int).SetAllOne()
	liquidity := uint256.NewInt(1_000_000)

	// Snapshot taken 3*2^128 below the wrap point, counter has since wrapped
	// and advanced by 7*2^128 in total.
	last := new(uint256.Int).Sub(maxU, q128(3))
	last.AddUint64(last, 1)
	current := q128(4)

	earned := Earned(liquidity, current, last)
	require.Equal(t, uint64(7_000_000), earned.Uint64())
}

func TestEarnedInRangeWithWrappedCounters(t *testing.T) {
	r := v3math.Range{Lower: -60, Upper: 60}
	liquidity := uint256.NewInt(2_000)

	// Global has wrapped past 2^256 and sits at a small value while the
	// outside counters are still close to the maximum.
	global := q128(10)
	outside := Outside{
		Lower: new(uint256.Int).Sub(new(uint256.Int), q128(20)),
		Upper: new(uint256.Int).Sub(new(uint256.Int), q128(30)),
	}
	inside := GrowthInside(0, r, global, outside)
	require.True(t, inside.Eq(q128(60)))

	earned := EarnedInRange(liquidity, 0, r, global, outside, q128(55))
	require.Equal(t, uint64(10_000), earned.Uint64())
}

func TestEarnedNothingSinceSnapshot(t *testing.T) {
	require.True(t, Earned(uint256.NewInt(10), q128(3), q128(3)).IsZero())
}
