package memory

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/v3math"
	"liquidityVault/internal/vault"
)

var (
	poolAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	lpAddr   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	trader   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func e18(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

func newTestPool(t *testing.T) (*Pool, *Account, *Account) {
	t.Helper()
	token0 := NewToken(common.HexToAddress("0x0000000000000000000000000000000000000010"), "TK0", 18)
	token1 := NewToken(common.HexToAddress("0x0000000000000000000000000000000000000011"), "TK1", 18)
	pool, err := NewPool(PoolConfig{
		Address:      poolAddr,
		Token0:       token0,
		Token1:       token1,
		FeePips:      3000,
		TickSpacing:  10,
		SqrtPriceX96: v3math.Q96,
		Now:          1_700_000_000,
	})
	require.NoError(t, err)
	for _, who := range []common.Address{lpAddr, trader} {
		token0.Mint(who, e18(1_000_000))
		token1.Mint(who, e18(1_000_000))
	}
	return pool, NewAccount(lpAddr, pool), NewAccount(trader, pool)
}

func TestMintChargesRoundedUpAmounts(t *testing.T) {
	ctx := context.Background()
	pool, lp, _ := newTestPool(t)
	r := v3math.Range{Lower: -600, Upper: 600}

	amount0, amount1, err := lp.AddLiquidity(ctx, r, e18(1))
	require.NoError(t, err)

	want0, want1, err := r.AmountsForLiquidity(v3math.Q96, e18(1), true)
	require.NoError(t, err)
	require.True(t, amount0.Eq(want0))
	require.True(t, amount1.Eq(want1))

	bal0, _ := pool.Token0().BalanceOf(ctx, poolAddr)
	bal1, _ := pool.Token1().BalanceOf(ctx, poolAddr)
	require.True(t, bal0.Eq(amount0))
	require.True(t, bal1.Eq(amount1))
	require.True(t, pool.Liquidity().Eq(e18(1)))
}

func TestBurnAndCollectReturnsPrincipalAndFees(t *testing.T) {
	ctx := context.Background()
	pool, lp, tr := newTestPool(t)
	r := v3math.Range{Lower: -600, Upper: 600}
	_, _, err := lp.AddLiquidity(ctx, r, e18(1))
	require.NoError(t, err)

	amountIn := uint256.NewInt(1_000_000_000_000_000)
	_, _, err = tr.SwapExactIn(ctx, true, amountIn)
	require.NoError(t, err)

	g0, g1, err := pool.FeeGrowthGlobal(ctx)
	require.NoError(t, err)
	require.False(t, g0.IsZero())
	require.True(t, g1.IsZero())

	// burning zero settles fees into tokens owed
	_, _, err = pool.Burn(ctx, lpAddr, r, new(uint256.Int))
	require.NoError(t, err)
	pos, err := pool.Position(ctx, vault.PositionKey(lpAddr, r.Lower, r.Upper))
	require.NoError(t, err)
	maxFee := uint256.NewInt(3_000_000_000_000 + 1)
	require.False(t, pos.TokensOwed0.IsZero())
	require.False(t, pos.TokensOwed0.Gt(maxFee))
	require.True(t, pos.TokensOwed1.IsZero())

	burn0, burn1, err := pool.Burn(ctx, lpAddr, r, e18(1))
	require.NoError(t, err)
	got0, got1, err := pool.Collect(ctx, lpAddr, lpAddr, r, v3math.MaxUint128, v3math.MaxUint128)
	require.NoError(t, err)
	require.True(t, got0.Eq(new(uint256.Int).Add(burn0, pos.TokensOwed0)))
	require.True(t, got1.Eq(burn1))
	require.True(t, pool.Liquidity().IsZero())

	_, _, err = pool.Burn(ctx, lpAddr, r, new(uint256.Int))
	require.ErrorIs(t, err, ErrNoPosition)
}

func TestSwapCrossesInitializedTicks(t *testing.T) {
	ctx := context.Background()
	pool, lp, tr := newTestPool(t)
	narrow := v3math.Range{Lower: -60, Upper: 60}
	wide := v3math.Range{Lower: -6000, Upper: 6000}
	_, _, err := lp.AddLiquidity(ctx, narrow, e18(10))
	require.NoError(t, err)
	_, _, err = lp.AddLiquidity(ctx, wide, e18(1))
	require.NoError(t, err)
	require.True(t, pool.Liquidity().Eq(e18(11)))

	_, _, err = tr.SwapExactIn(ctx, true, uint256.NewInt(100_000_000_000_000_000))
	require.NoError(t, err)
	slot0, _ := pool.Slot0(ctx)
	require.Less(t, slot0.Tick, int32(-60))
	require.True(t, pool.Liquidity().Eq(e18(1)))

	// back up through the narrow range
	_, _, err = tr.SwapExactIn(ctx, false, uint256.NewInt(300_000_000_000_000_000))
	require.NoError(t, err)
	slot0, _ = pool.Slot0(ctx)
	require.GreaterOrEqual(t, slot0.Tick, int32(60))
	require.True(t, pool.Liquidity().Eq(e18(1)))
}

func TestSwapStopsAtPriceLimit(t *testing.T) {
	ctx := context.Background()
	pool, lp, tr := newTestPool(t)
	_, _, err := lp.AddLiquidity(ctx, v3math.Range{Lower: -600, Upper: 600}, e18(1))
	require.NoError(t, err)

	limit, err := v3math.GetSqrtRatioAtTick(-10)
	require.NoError(t, err)
	amountIn := e18(100)
	delta0, delta1, err := tr.SwapToPrice(ctx, limit, amountIn)
	require.NoError(t, err)
	require.Equal(t, -1, delta0.Cmp(amountIn.ToBig()))
	require.Equal(t, -1, delta1.Sign())

	slot0, _ := pool.Slot0(ctx)
	require.True(t, slot0.SqrtPriceX96.Eq(limit))

	_, _, err = pool.Swap(ctx, trader, true, amountIn, slot0.SqrtPriceX96, tr)
	require.ErrorIs(t, err, ErrInvalidPriceLimit)
}

func TestObserveInterpolatesAccumulator(t *testing.T) {
	ctx := context.Background()
	pool, lp, tr := newTestPool(t)
	_, _, err := lp.AddLiquidity(ctx, v3math.Range{Lower: -600, Upper: 600}, e18(1))
	require.NoError(t, err)

	pool.Advance(100)
	target, err := v3math.GetSqrtRatioAtTick(-200)
	require.NoError(t, err)
	_, _, err = tr.SwapToPrice(ctx, target, e18(100))
	require.NoError(t, err)
	slot0, _ := pool.Slot0(ctx)
	require.Equal(t, int32(-200), slot0.Tick)
	pool.Advance(50)

	cums, err := pool.Observe(ctx, []uint32{150, 50, 25, 0})
	require.NoError(t, err)
	require.Equal(t, []int64{0, 0, -200 * 25, -200 * 50}, cums)

	_, err = pool.Observe(ctx, []uint32{151})
	require.ErrorIs(t, err, ErrObservationTooOld)
}

func TestSnapshotRestoresState(t *testing.T) {
	ctx := context.Background()
	pool, lp, tr := newTestPool(t)
	r := v3math.Range{Lower: -600, Upper: 600}
	_, _, err := lp.AddLiquidity(ctx, r, e18(1))
	require.NoError(t, err)

	before, _ := pool.Slot0(ctx)
	restore := pool.Snapshot()
	_, _, err = tr.SwapExactIn(ctx, false, uint256.NewInt(1_000_000_000_000_000))
	require.NoError(t, err)
	_, _, err = lp.AddLiquidity(ctx, v3math.Range{Lower: -60, Upper: 60}, e18(1))
	require.NoError(t, err)
	restore()

	after, _ := pool.Slot0(ctx)
	require.True(t, before.SqrtPriceX96.Eq(after.SqrtPriceX96))
	require.Equal(t, before.Tick, after.Tick)
	require.True(t, pool.Liquidity().Eq(e18(1)))
	g0, g1, _ := pool.FeeGrowthGlobal(ctx)
	require.True(t, g0.IsZero())
	require.True(t, g1.IsZero())
}

type underpayer struct{}

func (underpayer) MintCallback(context.Context, common.Address, *uint256.Int, *uint256.Int) error {
	return nil
}

type reentrant struct{ pool *Pool }

func (c reentrant) MintCallback(ctx context.Context, _ common.Address, _, _ *uint256.Int) error {
	_, _, err := c.pool.Mint(ctx, lpAddr, v3math.Range{Lower: -10, Upper: 10}, uint256.NewInt(1), underpayer{})
	return err
}

func TestMintRejectsUnpaidAndReentrantCallbacks(t *testing.T) {
	ctx := context.Background()
	pool, _, _ := newTestPool(t)
	r := v3math.Range{Lower: -600, Upper: 600}

	_, _, err := pool.Mint(ctx, lpAddr, r, e18(1), underpayer{})
	require.ErrorIs(t, err, ErrInsufficientPayment)
	pos, _ := pool.Position(ctx, vault.PositionKey(lpAddr, r.Lower, r.Upper))
	require.True(t, pos.Liquidity.IsZero())
	require.True(t, pool.Liquidity().IsZero())

	_, _, err = pool.Mint(ctx, lpAddr, r, e18(1), reentrant{pool: pool})
	require.ErrorIs(t, err, ErrLocked)
}

func TestSwapDeltasSignConvention(t *testing.T) {
	ctx := context.Background()
	pool, lp, tr := newTestPool(t)
	_, _, err := lp.AddLiquidity(ctx, v3math.Range{Lower: -600, Upper: 600}, e18(1))
	require.NoError(t, err)

	before0, _ := pool.Token0().BalanceOf(ctx, trader)
	before1, _ := pool.Token1().BalanceOf(ctx, trader)
	amountIn := uint256.NewInt(1_000_000_000)
	delta0, delta1, err := tr.SwapExactIn(ctx, false, amountIn)
	require.NoError(t, err)
	require.Equal(t, 0, delta1.Cmp(amountIn.ToBig()))
	require.Equal(t, -1, delta0.Sign())

	after0, _ := pool.Token0().BalanceOf(ctx, trader)
	after1, _ := pool.Token1().BalanceOf(ctx, trader)
	require.Equal(t, 0, new(big.Int).Sub(after0.ToBig(), before0.ToBig()).Cmp(new(big.Int).Neg(delta0)))
	require.True(t, new(uint256.Int).Sub(before1, after1).Eq(amountIn))
}
