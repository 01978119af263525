package vault_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/guard"
	"liquidityVault/internal/memory"
	"liquidityVault/internal/model"
	"liquidityVault/internal/v3math"
	"liquidityVault/internal/vault"
)

// leakyPool mints half the requested liquidity once leak is set.
type leakyPool struct {
	*memory.Pool
	leak bool
}

func (p *leakyPool) Mint(ctx context.Context, owner common.Address, r v3math.Range, liquidity *uint256.Int, callee vault.MintCallee) (*uint256.Int, *uint256.Int, error) {
	if p.leak {
		liquidity = new(uint256.Int).Rsh(liquidity, 1)
	}
	return p.Pool.Mint(ctx, owner, r, liquidity, callee)
}

func TestRebalanceReinvestsFees(t *testing.T) {
	f := newFixture(t)
	f.seed(t, e18(1_000))
	f.churn(t, e18(5))

	accrued, err := f.vault.AccruedFees(f.ctx)
	require.NoError(t, err)
	require.False(t, accrued.Manager0.IsZero())
	require.False(t, accrued.Manager1.IsZero())

	before := f.positionLiquidity(t, vaultRange)
	res, err := f.vault.Rebalance(f.ctx, keeper)
	require.NoError(t, err)
	require.True(t, res.LiquidityBefore.Eq(before))
	require.True(t, res.LiquidityAfter.Gt(before))
	require.True(t, f.positionLiquidity(t, vaultRange).Eq(res.LiquidityAfter))

	m0, m1 := f.vault.ManagerBalances()
	require.True(t, m0.Eq(accrued.Manager0), "manager0 %s want %s", m0.Dec(), accrued.Manager0.Dec())
	require.True(t, m1.Eq(accrued.Manager1), "manager1 %s want %s", m1.Dec(), accrued.Manager1.Dec())

	names := f.sink.names()
	require.Contains(t, names, model.EventFeesEarned)
	require.Equal(t, model.EventRebalance, names[len(names)-1])

	// manager balances stay in the vault until withdrawn
	vault0, vault1 := f.balances(t, vaultAddr)
	require.False(t, vault0.Lt(m0))
	require.False(t, vault1.Lt(m1))
}

func TestWithdrawManagerBalance(t *testing.T) {
	f := newFixture(t)
	f.seed(t, e18(1_000))
	f.churn(t, e18(5))
	_, err := f.vault.Rebalance(f.ctx, manager)
	require.NoError(t, err)

	_, _, err = f.vault.WithdrawManagerBalance(f.ctx, alice)
	require.ErrorIs(t, err, vault.ErrUnauthorized)

	m0, m1 := f.vault.ManagerBalances()
	paid0, paid1, err := f.vault.WithdrawManagerBalance(f.ctx, keeper)
	require.NoError(t, err)
	require.True(t, paid0.Eq(m0))
	require.True(t, paid1.Eq(m1))

	t0, t1 := f.balances(t, treasury)
	require.True(t, t0.Eq(m0))
	require.True(t, t1.Eq(m1))

	left0, left1 := f.vault.ManagerBalances()
	require.True(t, left0.IsZero())
	require.True(t, left1.IsZero())

	events := len(f.sink.events)
	paid0, paid1, err = f.vault.WithdrawManagerBalance(f.ctx, manager)
	require.NoError(t, err)
	require.True(t, paid0.IsZero())
	require.True(t, paid1.IsZero())
	require.Len(t, f.sink.events, events)
}

func TestRebalanceAbortsWhenLiquidityDoesNotGrow(t *testing.T) {
	var pool *leakyPool
	f := newFixture(t, withPool(func(p *memory.Pool) vault.Pool {
		pool = &leakyPool{Pool: p}
		return pool
	}))
	f.seed(t, e18(1_000))
	f.churn(t, e18(5))

	liquidity := f.positionLiquidity(t, vaultRange)
	bal0, bal1 := f.balances(t, vaultAddr)
	events := len(f.sink.events)

	pool.leak = true
	_, err := f.vault.Rebalance(f.ctx, keeper)
	require.ErrorIs(t, err, vault.ErrLiquidityNotIncreased)

	require.True(t, f.positionLiquidity(t, vaultRange).Eq(liquidity))
	after0, after1 := f.balances(t, vaultAddr)
	require.True(t, after0.Eq(bal0))
	require.True(t, after1.Eq(bal1))
	m0, m1 := f.vault.ManagerBalances()
	require.True(t, m0.IsZero())
	require.True(t, m1.IsZero())
	require.Len(t, f.sink.events, events)

	pool.leak = false
	_, err = f.vault.Rebalance(f.ctx, keeper)
	require.NoError(t, err)
}

func TestRebalanceAuthorization(t *testing.T) {
	f := newFixture(t)
	f.seed(t, e18(1_000))

	_, err := f.vault.Rebalance(f.ctx, alice)
	require.ErrorIs(t, err, vault.ErrUnauthorized)

	_, err = f.vault.ExecutiveRebalance(f.ctx, keeper, v3math.Range{Lower: -600, Upper: 600}, nil)
	require.ErrorIs(t, err, vault.ErrUnauthorized)
	require.Equal(t, vaultRange, f.vault.Range())
}

func TestExecutiveRebalanceMovesPosition(t *testing.T) {
	f := newFixture(t)
	f.seed(t, e18(1_000))
	f.churn(t, e18(2))

	wide := v3math.Range{Lower: -600, Upper: 600}
	res, err := f.vault.ExecutiveRebalance(f.ctx, manager, wide, uint256.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, wide, res.Range)
	require.Equal(t, wide, f.vault.Range())
	require.True(t, f.positionLiquidity(t, vaultRange).IsZero())
	require.True(t, f.positionLiquidity(t, wide).Eq(res.LiquidityAfter))
	require.Equal(t, vault.PositionKey(vaultAddr, -600, 600), f.vault.PositionID())

	// a wider range holds the same value with less liquidity
	require.True(t, res.LiquidityAfter.Lt(res.LiquidityBefore))

	// shares keep working against the new range
	_, err = f.vault.Burn(f.ctx, alice, alice, e18(100), vault.WithdrawOptions{})
	require.NoError(t, err)
}

func TestExecutiveRebalanceMinimumLiquidity(t *testing.T) {
	f := newFixture(t)
	f.seed(t, e18(1_000))

	liquidity := f.positionLiquidity(t, vaultRange)
	wide := v3math.Range{Lower: -600, Upper: 600}
	_, err := f.vault.ExecutiveRebalance(f.ctx, manager, wide, e18(1_000_000))
	require.ErrorIs(t, err, vault.ErrLiquidityBelowMinimum)

	require.Equal(t, vaultRange, f.vault.Range())
	require.True(t, f.positionLiquidity(t, vaultRange).Eq(liquidity))
	require.True(t, f.positionLiquidity(t, wide).IsZero())
}

func TestExecutiveRebalanceMinimumIsExclusive(t *testing.T) {
	wide := v3math.Range{Lower: -600, Upper: 600}

	// an identical fixture tells what liquidity the move produces
	ref := newFixture(t)
	ref.seed(t, e18(1_000))
	want, err := ref.vault.ExecutiveRebalance(ref.ctx, manager, wide, nil)
	require.NoError(t, err)

	f := newFixture(t)
	f.seed(t, e18(1_000))
	before := f.positionLiquidity(t, vaultRange)
	_, err = f.vault.ExecutiveRebalance(f.ctx, manager, wide, want.LiquidityAfter)
	require.ErrorIs(t, err, vault.ErrLiquidityBelowMinimum)
	require.Equal(t, vaultRange, f.vault.Range())
	require.True(t, f.positionLiquidity(t, vaultRange).Eq(before))

	below := new(uint256.Int).Sub(want.LiquidityAfter, uint256.NewInt(1))
	res, err := f.vault.ExecutiveRebalance(f.ctx, manager, wide, below)
	require.NoError(t, err)
	require.True(t, res.LiquidityAfter.Eq(want.LiquidityAfter))
}

func TestExecutiveRebalanceRejectsBadRange(t *testing.T) {
	f := newFixture(t)
	f.seed(t, e18(1_000))

	_, err := f.vault.ExecutiveRebalance(f.ctx, manager, v3math.Range{Lower: -205, Upper: 200}, nil)
	require.ErrorIs(t, err, v3math.ErrMisalignedTick)

	_, err = f.vault.ExecutiveRebalance(f.ctx, manager, v3math.Range{Lower: 200, Upper: -200}, nil)
	require.ErrorIs(t, err, v3math.ErrInvalidRange)
	require.Equal(t, vaultRange, f.vault.Range())
}

func TestExecutiveRebalanceWithoutShares(t *testing.T) {
	f := newFixture(t)

	wide := v3math.Range{Lower: -600, Upper: 600}
	res, err := f.vault.ExecutiveRebalance(f.ctx, manager, wide, e18(1))
	require.NoError(t, err)
	require.True(t, res.LiquidityAfter.IsZero())
	require.Equal(t, wide, f.vault.Range())
	require.Equal(t, []string{model.EventRebalance}, f.sink.names())

	data, ok := f.sink.events[0].Decoded.(model.RebalanceData)
	require.True(t, ok)
	require.True(t, data.RangeChanged)

	res2, err := f.vault.Mint(f.ctx, alice, alice, e18(10))
	require.NoError(t, err)
	require.True(t, f.positionLiquidity(t, wide).Eq(res2.LiquidityMinted))
}

func TestRebalanceOracleGuard(t *testing.T) {
	f := newFixture(t)
	f.seed(t, e18(1_000))

	// move spot roughly 180 ticks above a TWAP that has not caught up
	_, _, err := f.trader.SwapExactIn(f.ctx, false, e18(10))
	require.NoError(t, err)
	slot0, err := f.pool.Slot0(f.ctx)
	require.NoError(t, err)
	require.Greater(t, slot0.Tick, int32(100))

	_, err = f.vault.Rebalance(f.ctx, keeper)
	require.ErrorIs(t, err, guard.ErrOracleDeviation)

	_, err = f.vault.ExecutiveRebalance(f.ctx, manager, v3math.Range{Lower: -600, Upper: 600}, nil)
	require.ErrorIs(t, err, guard.ErrOracleDeviation)
	require.Equal(t, vaultRange, f.vault.Range())

	// once the window is spent at the new price the TWAP agrees with spot
	f.pool.Advance(600)
	_, err = f.vault.ExecutiveRebalance(f.ctx, manager, v3math.Range{Lower: -600, Upper: 600}, nil)
	require.NoError(t, err)
}

func TestRebalanceOracleWindowBeyondHistory(t *testing.T) {
	f := newFixture(t)
	f.seed(t, e18(1_000))

	window := uint32(7_200)
	_, err := f.vault.UpdateParams(f.ctx, manager, vault.ParamsUpdate{OracleWindow: &window})
	require.NoError(t, err)

	_, err = f.vault.Rebalance(f.ctx, keeper)
	require.ErrorIs(t, err, guard.ErrInsufficientObservations)
}

// lastSwap returns the most recent inventory swap and the input it paid.
func (f *fixture) lastSwap(t *testing.T) (model.SwappedData, *big.Int) {
	t.Helper()
	for i := len(f.sink.events) - 1; i >= 0; i-- {
		data, ok := f.sink.events[i].Decoded.(model.SwappedData)
		if !ok {
			continue
		}
		paid, ok := new(big.Int).SetString(data.Amount1, 10)
		if data.ZeroForOne {
			paid, ok = new(big.Int).SetString(data.Amount0, 10)
		}
		require.True(t, ok)
		return data, paid
	}
	t.Fatal("no swap event")
	return model.SwappedData{}, nil
}

func TestExecutiveRebalanceSwapStopsAtLimit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, e18(1_000))

	// leave the vault holding mostly token1 against a thin pool
	_, _, err := f.trader.SwapExactIn(f.ctx, false, e18(10))
	require.NoError(t, err)
	f.pool.Advance(600)

	wide := v3math.Range{Lower: -600, Upper: 600}
	res, err := f.vault.ExecutiveRebalance(f.ctx, manager, wide, nil)
	require.NoError(t, err)
	require.False(t, res.LiquidityAfter.IsZero())
	require.True(t, f.positionLiquidity(t, wide).Eq(res.LiquidityAfter))
	require.True(t, f.positionLiquidity(t, vaultRange).IsZero())

	swap, paid := f.lastSwap(t)
	require.False(t, swap.ZeroForOne)
	want, ok := new(big.Int).SetString(swap.AmountIn, 10)
	require.True(t, ok)
	require.Equal(t, -1, paid.Cmp(want), "paid %s of %s", paid, want)
	require.Equal(t, swap.SqrtPriceLimit, swap.SqrtPriceAfter)
	require.Equal(t, model.EventRebalance, f.sink.names()[len(f.sink.events)-1])

	// the unswapped token1 stays with depositors
	_, err = f.vault.Burn(f.ctx, alice, alice, e18(1_000), vault.WithdrawOptions{})
	require.NoError(t, err)
	require.True(t, f.supply(t).IsZero())
}

func TestRebalanceSwapStopsAtLimit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, e18(1_000))

	// an idle token0 balance far larger than the pool can absorb
	// within the rebalance tolerance
	f.token0.Mint(vaultAddr, e18(20))

	before := f.positionLiquidity(t, vaultRange)
	res, err := f.vault.Rebalance(f.ctx, keeper)
	require.NoError(t, err)
	require.True(t, res.LiquidityAfter.Gt(before))
	require.True(t, f.positionLiquidity(t, vaultRange).Eq(res.LiquidityAfter))

	swap, paid := f.lastSwap(t)
	require.True(t, swap.ZeroForOne)
	want, ok := new(big.Int).SetString(swap.AmountIn, 10)
	require.True(t, ok)
	require.Equal(t, -1, paid.Cmp(want), "paid %s of %s", paid, want)
	require.Equal(t, swap.SqrtPriceLimit, swap.SqrtPriceAfter)

	// the swap pushed the price below the range, so token1 waits idle
	slot0, err := f.pool.Slot0(f.ctx)
	require.NoError(t, err)
	require.Less(t, slot0.Tick, vaultRange.Lower)
	_, idle1 := f.balances(t, vaultAddr)
	require.True(t, idle1.Gt(e18(10)), "idle token1 %s", idle1.Dec())
}
