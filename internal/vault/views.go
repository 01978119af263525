package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/fees"
	"liquidityVault/internal/v3math"
)

// FeeQuote splits fees accrued in the position but not yet collected.
type FeeQuote struct {
	Depositors0 *uint256.Int
	Depositors1 *uint256.Int
	Manager0    *uint256.Int
	Manager1    *uint256.Int
}

func (v *Vault) Address() common.Address { return v.address }
func (v *Vault) Manager() common.Address { return v.manager }
func (v *Vault) Keeper() common.Address  { return v.keeper }
func (v *Vault) Range() v3math.Range     { return v.rng }
func (v *Vault) Params() Params          { return v.params }

// PositionID is the pool key of the vault's current position.
func (v *Vault) PositionID() common.Hash {
	return PositionKey(v.address, v.rng.Lower, v.rng.Upper)
}

// ManagerBalances are fees owed to the manager treasury.
func (v *Vault) ManagerBalances() (*uint256.Int, *uint256.Int) {
	return v.managerBalance0.Clone(), v.managerBalance1.Clone()
}

// UnderlyingBalances values everything backing the shares at the current
// price: the position, its uncollected depositor fees and idle balances.
func (v *Vault) UnderlyingBalances(ctx context.Context) (*uint256.Int, *uint256.Int, error) {
	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read slot0: %w", err)
	}
	return v.underlyingAt(ctx, slot0.SqrtPriceX96, slot0.Tick)
}

// UnderlyingBalancesAtPrice is UnderlyingBalances at a hypothetical price.
func (v *Vault) UnderlyingBalancesAtPrice(ctx context.Context, sqrtPriceX96 *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	tick, err := v3math.GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return nil, nil, err
	}
	return v.underlyingAt(ctx, sqrtPriceX96, tick)
}

// AccruedFees reports uncollected fees and how they will be split.
func (v *Vault) AccruedFees(ctx context.Context) (FeeQuote, error) {
	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return FeeQuote{}, fmt.Errorf("read slot0: %w", err)
	}
	pos, err := v.position(ctx, v.rng)
	if err != nil {
		return FeeQuote{}, err
	}
	fee0, fee1, err := v.uncollectedFees(ctx, slot0.Tick, pos)
	if err != nil {
		return FeeQuote{}, err
	}
	split0, err := fees.SplitFee(fee0, v.params.ManagerFeeBPS)
	if err != nil {
		return FeeQuote{}, err
	}
	split1, err := fees.SplitFee(fee1, v.params.ManagerFeeBPS)
	if err != nil {
		return FeeQuote{}, err
	}
	return FeeQuote{
		Depositors0: split0.Depositors,
		Depositors1: split1.Depositors,
		Manager0:    split0.Manager,
		Manager1:    split1.Manager,
	}, nil
}

func (v *Vault) underlyingAt(ctx context.Context, sqrtPriceX96 *uint256.Int, tick int32) (*uint256.Int, *uint256.Int, error) {
	pos, err := v.position(ctx, v.rng)
	if err != nil {
		return nil, nil, err
	}
	amount0, amount1, err := v.rng.AmountsForLiquidity(sqrtPriceX96, pos.Liquidity, false)
	if err != nil {
		return nil, nil, err
	}

	fee0, fee1, err := v.uncollectedFees(ctx, tick, pos)
	if err != nil {
		return nil, nil, err
	}
	split0, err := fees.SplitFee(fee0, v.params.ManagerFeeBPS)
	if err != nil {
		return nil, nil, err
	}
	split1, err := fees.SplitFee(fee1, v.params.ManagerFeeBPS)
	if err != nil {
		return nil, nil, err
	}

	idle0, idle1, err := v.idleBalances(ctx)
	if err != nil {
		return nil, nil, err
	}
	amount0.Add(amount0, split0.Depositors).Add(amount0, idle0)
	amount1.Add(amount1, split1.Depositors).Add(amount1, idle1)
	return amount0, amount1, nil
}

// uncollectedFees are fees earned since the position's last snapshot plus
// tokens already owed by the pool.
func (v *Vault) uncollectedFees(ctx context.Context, tick int32, pos PositionState) (*uint256.Int, *uint256.Int, error) {
	fee0 := pos.TokensOwed0.Clone()
	fee1 := pos.TokensOwed1.Clone()
	if pos.Liquidity.IsZero() {
		return fee0, fee1, nil
	}

	global0, global1, err := v.pool.FeeGrowthGlobal(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read fee growth: %w", err)
	}
	lower, err := v.pool.Tick(ctx, v.rng.Lower)
	if err != nil {
		return nil, nil, fmt.Errorf("read tick %d: %w", v.rng.Lower, err)
	}
	upper, err := v.pool.Tick(ctx, v.rng.Upper)
	if err != nil {
		return nil, nil, fmt.Errorf("read tick %d: %w", v.rng.Upper, err)
	}

	earned0 := fees.EarnedInRange(pos.Liquidity, tick, v.rng, global0,
		fees.Outside{Lower: lower.FeeGrowthOutside0, Upper: upper.FeeGrowthOutside0}, pos.FeeGrowthInside0Last)
	earned1 := fees.EarnedInRange(pos.Liquidity, tick, v.rng, global1,
		fees.Outside{Lower: lower.FeeGrowthOutside1, Upper: upper.FeeGrowthOutside1}, pos.FeeGrowthInside1Last)
	return fee0.Add(fee0, earned0), fee1.Add(fee1, earned1), nil
}
