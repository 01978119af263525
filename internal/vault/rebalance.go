package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/fees"
	"liquidityVault/internal/guard"
	"liquidityVault/internal/model"
	"liquidityVault/internal/v3math"
)

// RebalanceResult reports the position liquidity around a rebalance.
type RebalanceResult struct {
	Range           v3math.Range
	LiquidityBefore *uint256.Int
	LiquidityAfter  *uint256.Int
}

type withdrawal struct {
	burn0, burn1 *uint256.Int
	fee0, fee1   *uint256.Int
}

// Rebalance reinvests collected fees and idle balances into the current
// range. It fails unless the position ends up with more liquidity.
func (v *Vault) Rebalance(ctx context.Context, caller common.Address) (RebalanceResult, error) {
	var res RebalanceResult
	err := v.run(ctx, "rebalance", caller, func() error {
		if err := v.requireKeeperOrManager(caller); err != nil {
			return err
		}
		if err := v.checkOracle(ctx); err != nil {
			return err
		}

		pos, err := v.position(ctx, v.rng)
		if err != nil {
			return err
		}
		w, err := v.withdraw(ctx, v.rng, pos.Liquidity, pos.Liquidity)
		if err != nil {
			return err
		}
		if err := v.applyFees(w.fee0, w.fee1); err != nil {
			return err
		}
		after, err := v.deposit(ctx, v.rng)
		if err != nil {
			return err
		}
		if !after.Gt(pos.Liquidity) {
			return fmt.Errorf("liquidity %s -> %s: %w", pos.Liquidity.Dec(), after.Dec(), ErrLiquidityNotIncreased)
		}

		res = RebalanceResult{Range: v.rng, LiquidityBefore: pos.Liquidity, LiquidityAfter: after}
		v.emitRebalance(caller, res, false)
		return nil
	})
	return res, err
}

// ExecutiveRebalance moves the position to newRange. With shares
// outstanding the position must end with more than minLiquidity and never
// empty. With no shares only the stored range changes.
func (v *Vault) ExecutiveRebalance(ctx context.Context, caller common.Address, newRange v3math.Range, minLiquidity *uint256.Int) (RebalanceResult, error) {
	var res RebalanceResult
	err := v.run(ctx, "executive_rebalance", caller, func() error {
		if err := v.requireManager(caller); err != nil {
			return err
		}
		if err := newRange.Validate(v.pool.TickSpacing()); err != nil {
			return err
		}
		if err := v.checkOracle(ctx); err != nil {
			return err
		}

		supply, err := v.shares.TotalSupply(ctx)
		if err != nil {
			return fmt.Errorf("total supply: %w", err)
		}
		if supply.IsZero() {
			v.rng = newRange
			res = RebalanceResult{Range: newRange, LiquidityBefore: new(uint256.Int), LiquidityAfter: new(uint256.Int)}
			v.emitRebalance(caller, res, true)
			return nil
		}

		// Withdraw from the range the liquidity actually sits in.
		pos, err := v.position(ctx, v.rng)
		if err != nil {
			return err
		}
		if !pos.Liquidity.IsZero() {
			w, err := v.withdraw(ctx, v.rng, pos.Liquidity, pos.Liquidity)
			if err != nil {
				return err
			}
			if err := v.applyFees(w.fee0, w.fee1); err != nil {
				return err
			}
		}

		v.rng = newRange
		after, err := v.deposit(ctx, newRange)
		if err != nil {
			return err
		}
		if after.IsZero() {
			return fmt.Errorf("new position is empty: %w", ErrLiquidityBelowMinimum)
		}
		if minLiquidity != nil && !after.Gt(minLiquidity) {
			return fmt.Errorf("liquidity %s not above %s: %w", after.Dec(), minLiquidity.Dec(), ErrLiquidityBelowMinimum)
		}

		res = RebalanceResult{Range: newRange, LiquidityBefore: pos.Liquidity, LiquidityAfter: after}
		v.emitRebalance(caller, res, true)
		return nil
	})
	return res, err
}

func (v *Vault) emitRebalance(caller common.Address, res RebalanceResult, rangeChanged bool) {
	v.emit(model.EventRebalance, model.RebalanceData{
		Caller:          caller.Hex(),
		TickLower:       res.Range.Lower,
		TickUpper:       res.Range.Upper,
		LiquidityBefore: res.LiquidityBefore.Dec(),
		LiquidityAfter:  res.LiquidityAfter.Dec(),
		RangeChanged:    rangeChanged,
	})
}

func (v *Vault) checkOracle(ctx context.Context) error {
	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return fmt.Errorf("read slot0: %w", err)
	}
	return guard.CheckOracle(ctx, v.pool, slot0.SqrtPriceX96, v.params.OracleWindow, v.params.OracleSlippageBPS)
}

// withdraw burns liquidity from r and collects everything the position is
// owed. A zero burn against a live position still refreshes its fees.
// Fees are whatever was collected beyond the burned principal.
func (v *Vault) withdraw(ctx context.Context, r v3math.Range, positionLiquidity, liquidity *uint256.Int) (withdrawal, error) {
	pre0, err := v.token0.BalanceOf(ctx, v.address)
	if err != nil {
		return withdrawal{}, fmt.Errorf("token0 balance: %w", err)
	}
	pre1, err := v.token1.BalanceOf(ctx, v.address)
	if err != nil {
		return withdrawal{}, fmt.Errorf("token1 balance: %w", err)
	}

	burn0, burn1 := new(uint256.Int), new(uint256.Int)
	if !positionLiquidity.IsZero() {
		if burn0, burn1, err = v.pool.Burn(ctx, v.address, r, liquidity); err != nil {
			return withdrawal{}, fmt.Errorf("pool burn: %w", err)
		}
	}
	if _, _, err := v.pool.Collect(ctx, v.address, v.address, r, v3math.MaxUint128, v3math.MaxUint128); err != nil {
		return withdrawal{}, fmt.Errorf("pool collect: %w", err)
	}

	post0, err := v.token0.BalanceOf(ctx, v.address)
	if err != nil {
		return withdrawal{}, fmt.Errorf("token0 balance: %w", err)
	}
	post1, err := v.token1.BalanceOf(ctx, v.address)
	if err != nil {
		return withdrawal{}, fmt.Errorf("token1 balance: %w", err)
	}

	collected0 := subFloor(post0, pre0)
	collected1 := subFloor(post1, pre1)
	if collected0.Lt(burn0) || collected1.Lt(burn1) {
		return withdrawal{}, fmt.Errorf("collected %s/%s burned %s/%s: %w",
			collected0.Dec(), collected1.Dec(), burn0.Dec(), burn1.Dec(), ErrCollectShortfall)
	}

	return withdrawal{
		burn0: burn0,
		burn1: burn1,
		fee0:  collected0.Sub(collected0, burn0),
		fee1:  collected1.Sub(collected1, burn1),
	}, nil
}

// applyFees credits the manager's cut of freshly collected fees.
func (v *Vault) applyFees(fee0, fee1 *uint256.Int) error {
	if fee0.IsZero() && fee1.IsZero() {
		return nil
	}
	split0, err := fees.SplitFee(fee0, v.params.ManagerFeeBPS)
	if err != nil {
		return err
	}
	split1, err := fees.SplitFee(fee1, v.params.ManagerFeeBPS)
	if err != nil {
		return err
	}
	v.managerBalance0 = new(uint256.Int).Add(v.managerBalance0, split0.Manager)
	v.managerBalance1 = new(uint256.Int).Add(v.managerBalance1, split1.Manager)

	v.emit(model.EventFeesEarned, model.FeesEarnedData{
		Fee0:     fee0.Dec(),
		Fee1:     fee1.Dec(),
		Manager0: split0.Manager.Dec(),
		Manager1: split1.Manager.Dec(),
	})
	return nil
}

// deposit swaps idle balances toward the ratio r needs at the current
// price, then adds all the liquidity the post-swap balances support. The
// swap may stop at the rebalance price limit when the pool is thin; the
// unswapped part stays idle. It
// returns the position's liquidity as reported by the pool afterwards.
func (v *Vault) deposit(ctx context.Context, r v3math.Range) (*uint256.Int, error) {
	idle0, idle1, err := v.idleBalances(ctx)
	if err != nil {
		return nil, err
	}
	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return nil, fmt.Errorf("read slot0: %w", err)
	}

	zeroForOne, amountIn, err := r.SwapToRatio(slot0.SqrtPriceX96, idle0, idle1)
	if err != nil {
		return nil, err
	}
	if !amountIn.IsZero() {
		v.logger.Debug("swap to ratio",
			zap.Bool("zero_for_one", zeroForOne),
			zap.String("amount_in", amountIn.Dec()),
			zap.Int32("lower", r.Lower),
			zap.Int32("upper", r.Upper),
		)
		if _, _, err := v.swap(ctx, zeroForOne, amountIn, v.params.RebalanceSlippageBPS, fillToLimit); err != nil {
			return nil, fmt.Errorf("rebalance swap: %w", err)
		}
		if idle0, idle1, err = v.idleBalances(ctx); err != nil {
			return nil, err
		}
		if slot0, err = v.pool.Slot0(ctx); err != nil {
			return nil, fmt.Errorf("read slot0: %w", err)
		}
	}

	liquidity, err := r.LiquidityForAmounts(slot0.SqrtPriceX96, idle0, idle1)
	if err != nil {
		return nil, err
	}
	if !liquidity.IsZero() {
		if _, _, err := v.pool.Mint(ctx, v.address, r, liquidity, v); err != nil {
			return nil, fmt.Errorf("pool mint: %w", err)
		}
	}

	pos, err := v.position(ctx, r)
	if err != nil {
		return nil, err
	}
	return pos.Liquidity, nil
}
