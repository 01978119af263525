package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/guard"
	"liquidityVault/internal/model"
)

// fillMode says whether a swap may stop at its price limit.
type fillMode int

const (
	// fillExact requires the whole input to be sold. Zap-outs use it.
	fillExact fillMode = iota
	// fillToLimit accepts whatever the pool fills before the limit.
	// Rebalances use it and deposit the remainder as it is.
	fillToLimit
)

// swap sells up to amountIn through the pool with a price limit
// toleranceBPS away from the current price. A swap that leaves the price
// past the limit fails. Under fillExact so does one that stops at the
// limit before consuming its input.
func (v *Vault) swap(ctx context.Context, zeroForOne bool, amountIn *uint256.Int, toleranceBPS uint16, mode fillMode) (*big.Int, *big.Int, error) {
	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read slot0: %w", err)
	}
	limit, err := guard.PriceLimit(slot0.SqrtPriceX96, zeroForOne, toleranceBPS)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSlippageTooHigh, err)
	}

	delta0, delta1, err := v.pool.Swap(ctx, v.address, zeroForOne, amountIn, limit, v)
	if err != nil {
		return nil, nil, fmt.Errorf("pool swap: %w", err)
	}

	paid := delta1
	if zeroForOne {
		paid = delta0
	}
	if mode == fillExact && paid.Cmp(amountIn.ToBig()) < 0 {
		return nil, nil, fmt.Errorf("filled %s of %s: %w", paid, amountIn.Dec(), ErrSlippageExceeded)
	}
	if paid.Cmp(amountIn.ToBig()) < 0 {
		v.logger.Debug("swap stopped at limit",
			zap.String("paid", paid.String()),
			zap.String("amount_in", amountIn.Dec()),
			zap.String("limit", limit.Dec()),
		)
	}

	after, err := v.pool.Slot0(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read slot0: %w", err)
	}
	if !guard.WithinLimit(after.SqrtPriceX96, limit, zeroForOne) {
		return nil, nil, fmt.Errorf("price %s past limit %s: %w", after.SqrtPriceX96.Dec(), limit.Dec(), ErrSlippageExceeded)
	}

	v.emit(model.EventSwapped, model.SwappedData{
		ZeroForOne:     zeroForOne,
		AmountIn:       amountIn.Dec(),
		Amount0:        delta0.String(),
		Amount1:        delta1.String(),
		SqrtPriceLimit: limit.Dec(),
		SqrtPriceAfter: after.SqrtPriceX96.Dec(),
	})
	return delta0, delta1, nil
}

// MintCallback pays the pool for liquidity minted by this vault.
func (v *Vault) MintCallback(ctx context.Context, caller common.Address, owed0, owed1 *uint256.Int) error {
	if err := v.checkCallback(caller); err != nil {
		return err
	}
	if err := v.pay(ctx, v.token0, caller, owed0); err != nil {
		return fmt.Errorf("settle mint token0: %w", err)
	}
	if err := v.pay(ctx, v.token1, caller, owed1); err != nil {
		return fmt.Errorf("settle mint token1: %w", err)
	}
	return nil
}

// SwapCallback pays the input side of a swap started by this vault.
func (v *Vault) SwapCallback(ctx context.Context, caller common.Address, delta0, delta1 *big.Int) error {
	if err := v.checkCallback(caller); err != nil {
		return err
	}
	for _, leg := range []struct {
		token Token
		delta *big.Int
	}{{v.token0, delta0}, {v.token1, delta1}} {
		if leg.delta.Sign() <= 0 {
			continue
		}
		owed, overflow := uint256.FromBig(leg.delta)
		if overflow {
			return fmt.Errorf("swap delta %s overflows", leg.delta)
		}
		if err := v.pay(ctx, leg.token, caller, owed); err != nil {
			return fmt.Errorf("settle swap: %w", err)
		}
	}
	return nil
}

// checkCallback accepts only the configured pool, and only while one of
// the vault's own operations is in progress.
func (v *Vault) checkCallback(caller common.Address) error {
	if caller != v.pool.Address() {
		return fmt.Errorf("callback from %s: %w", caller.Hex(), ErrUnexpectedCaller)
	}
	if !v.lock.Held() {
		return fmt.Errorf("callback outside vault operation: %w", ErrUnexpectedCaller)
	}
	return nil
}

// amountOut converts a negative pool delta to the amount received.
func amountOut(delta *big.Int) (*uint256.Int, error) {
	if delta.Sign() >= 0 {
		return new(uint256.Int), nil
	}
	out, overflow := uint256.FromBig(new(big.Int).Neg(delta))
	if overflow {
		return nil, fmt.Errorf("swap delta %s overflows", delta)
	}
	return out, nil
}
