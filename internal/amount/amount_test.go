package amount

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	v, err := Parse("1.5", 6)
	require.NoError(t, err)
	require.Equal(t, uint64(1_500_000), v.Uint64())

	v, err = Parse("", 18)
	require.NoError(t, err)
	require.True(t, v.IsZero())

	v, err = Parse("1000000", 18)
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000000000", v.Dec())

	for _, bad := range []string{"0.0000001", "-1", "abc", "1e80"} {
		_, err = Parse(bad, 6)
		require.Error(t, err, bad)
	}
}

func TestFormat(t *testing.T) {
	require.Equal(t, "1.5", Format(uint256.NewInt(1_500_000), 6))
	require.Equal(t, "0", Format(nil, 18))
	require.Equal(t, "0.000000000000000001", Format(uint256.NewInt(1), 18))
}

func TestPrice(t *testing.T) {
	q96 := new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	require.Equal(t, "1", Price(q96, 18, 18))
	// 1e6 raw units of a 6-decimal token0 buy 1e18 of token1: one for one.
	sqrt := new(uint256.Int).Mul(q96, uint256.NewInt(1_000_000))
	require.Equal(t, "1", Price(sqrt, 6, 18))
	require.Equal(t, "0", Price(nil, 18, 6))
}
