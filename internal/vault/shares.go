package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/model"
	"liquidityVault/internal/v3math"
)

// Payout selects which tokens a withdrawal is paid in.
type Payout int

const (
	PayoutBoth Payout = iota
	PayoutToken0
	PayoutToken1
)

func (p Payout) String() string {
	switch p {
	case PayoutToken0:
		return "token0"
	case PayoutToken1:
		return "token1"
	default:
		return "both"
	}
}

// WithdrawOptions control how burned shares are paid out. A single-token
// payout swaps the other token's portion through the pool with
// MaxSlippageBPS tolerance; zero means the configured user maximum.
type WithdrawOptions struct {
	Payout         Payout
	MaxSlippageBPS uint16
}

type MintResult struct {
	Amount0         *uint256.Int
	Amount1         *uint256.Int
	LiquidityMinted *uint256.Int
}

type BurnResult struct {
	Amount0         *uint256.Int
	Amount1         *uint256.Int
	LiquidityBurned *uint256.Int
}

// MintQuote is the deposit that MintAmounts sizes from caller maxima.
type MintQuote struct {
	Amount0    *uint256.Int
	Amount1    *uint256.Int
	MintAmount *uint256.Int
}

// Mint pulls the tokens backing mintAmount shares from caller, adds them to
// the position and credits the shares to receiver.
func (v *Vault) Mint(ctx context.Context, caller, receiver common.Address, mintAmount *uint256.Int) (MintResult, error) {
	var res MintResult
	err := v.run(ctx, "mint", caller, func() error {
		var err error
		res, err = v.mint(ctx, caller, receiver, mintAmount)
		return err
	})
	return res, err
}

func (v *Vault) mint(ctx context.Context, caller, receiver common.Address, mintAmount *uint256.Int) (MintResult, error) {
	if mintAmount == nil || mintAmount.IsZero() {
		return MintResult{}, ErrZeroMintAmount
	}
	if receiver == (common.Address{}) {
		return MintResult{}, fmt.Errorf("receiver: %w", ErrZeroAddress)
	}

	supply, err := v.shares.TotalSupply(ctx)
	if err != nil {
		return MintResult{}, fmt.Errorf("total supply: %w", err)
	}
	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return MintResult{}, fmt.Errorf("read slot0: %w", err)
	}

	var amount0, amount1, liquidity *uint256.Int
	if supply.IsZero() {
		if !mintAmount.GtUint64(MinInitialShares) {
			return MintResult{}, fmt.Errorf("mint %s: %w", mintAmount.Dec(), ErrInitialSharesTooLow)
		}
		// The first mint sizes shares one to one with liquidity.
		liquidity, err = v3math.ToUint128(mintAmount)
		if err != nil {
			return MintResult{}, err
		}
		amount0, amount1, err = v.rng.AmountsForLiquidity(slot0.SqrtPriceX96, liquidity, true)
		if err != nil {
			return MintResult{}, err
		}
	} else {
		current0, current1, err := v.underlyingAt(ctx, slot0.SqrtPriceX96, slot0.Tick)
		if err != nil {
			return MintResult{}, err
		}
		if amount0, err = v3math.MulDivRoundingUp(current0, mintAmount, supply); err != nil {
			return MintResult{}, err
		}
		if amount1, err = v3math.MulDivRoundingUp(current1, mintAmount, supply); err != nil {
			return MintResult{}, err
		}
		if liquidity, err = v.rng.LiquidityForAmounts(slot0.SqrtPriceX96, amount0, amount1); err != nil {
			return MintResult{}, err
		}
	}
	if amount0.IsZero() && amount1.IsZero() {
		return MintResult{}, fmt.Errorf("mint %s: %w", mintAmount.Dec(), ErrMintZero)
	}

	if err := v.pull(ctx, v.token0, caller, amount0); err != nil {
		return MintResult{}, fmt.Errorf("pull token0: %w", err)
	}
	if err := v.pull(ctx, v.token1, caller, amount1); err != nil {
		return MintResult{}, fmt.Errorf("pull token1: %w", err)
	}
	if !liquidity.IsZero() {
		if _, _, err := v.pool.Mint(ctx, v.address, v.rng, liquidity, v); err != nil {
			return MintResult{}, fmt.Errorf("pool mint: %w", err)
		}
	}
	if err := v.shares.Mint(ctx, receiver, mintAmount); err != nil {
		return MintResult{}, fmt.Errorf("mint shares: %w", err)
	}

	v.emit(model.EventMinted, model.MintedData{
		Caller:          caller.Hex(),
		Receiver:        receiver.Hex(),
		MintAmount:      mintAmount.Dec(),
		Amount0In:       amount0.Dec(),
		Amount1In:       amount1.Dec(),
		LiquidityMinted: liquidity.Dec(),
	})
	return MintResult{Amount0: amount0, Amount1: amount1, LiquidityMinted: liquidity}, nil
}

// Burn redeems burnAmount of caller's shares and pays receiver the
// matching slice of the position, collected fees and idle balances.
func (v *Vault) Burn(ctx context.Context, caller, receiver common.Address, burnAmount *uint256.Int, opts WithdrawOptions) (BurnResult, error) {
	var res BurnResult
	err := v.run(ctx, "burn", caller, func() error {
		var err error
		res, err = v.burn(ctx, caller, receiver, burnAmount, opts)
		return err
	})
	return res, err
}

func (v *Vault) burn(ctx context.Context, caller, receiver common.Address, burnAmount *uint256.Int, opts WithdrawOptions) (BurnResult, error) {
	if burnAmount == nil || burnAmount.IsZero() {
		return BurnResult{}, ErrZeroBurnAmount
	}
	if receiver == (common.Address{}) {
		return BurnResult{}, fmt.Errorf("receiver: %w", ErrZeroAddress)
	}
	var tolerance uint16
	if opts.Payout != PayoutBoth {
		var err error
		if tolerance, err = v.userTolerance(opts.MaxSlippageBPS); err != nil {
			return BurnResult{}, err
		}
	}

	// Supply is read before the shares are burned.
	supply, err := v.shares.TotalSupply(ctx)
	if err != nil {
		return BurnResult{}, fmt.Errorf("total supply: %w", err)
	}
	pos, err := v.position(ctx, v.rng)
	if err != nil {
		return BurnResult{}, err
	}
	if err := v.shares.Burn(ctx, caller, burnAmount); err != nil {
		return BurnResult{}, fmt.Errorf("burn shares: %w", err)
	}

	liquidityBurned, err := v3math.MulDiv(burnAmount, pos.Liquidity, supply)
	if err != nil {
		return BurnResult{}, err
	}
	w, err := v.withdraw(ctx, v.rng, pos.Liquidity, liquidityBurned)
	if err != nil {
		return BurnResult{}, err
	}
	if err := v.applyFees(w.fee0, w.fee1); err != nil {
		return BurnResult{}, err
	}

	// Idle balances now hold the burned tokens and the depositors' fees.
	idle0, idle1, err := v.idleBalances(ctx)
	if err != nil {
		return BurnResult{}, err
	}
	amount0, err := proRata(w.burn0, subFloor(idle0, w.burn0), burnAmount, supply)
	if err != nil {
		return BurnResult{}, err
	}
	amount1, err := proRata(w.burn1, subFloor(idle1, w.burn1), burnAmount, supply)
	if err != nil {
		return BurnResult{}, err
	}

	if opts.Payout != PayoutBoth {
		if amount0, amount1, err = v.zapOut(ctx, opts.Payout, amount0, amount1, tolerance); err != nil {
			return BurnResult{}, err
		}
	}
	if amount0.IsZero() && amount1.IsZero() {
		return BurnResult{}, fmt.Errorf("burn %s: %w", burnAmount.Dec(), ErrBurnZero)
	}

	if err := v.pay(ctx, v.token0, receiver, amount0); err != nil {
		return BurnResult{}, fmt.Errorf("pay token0: %w", err)
	}
	if err := v.pay(ctx, v.token1, receiver, amount1); err != nil {
		return BurnResult{}, fmt.Errorf("pay token1: %w", err)
	}

	v.emit(model.EventBurned, model.BurnedData{
		Caller:          caller.Hex(),
		Receiver:        receiver.Hex(),
		BurnAmount:      burnAmount.Dec(),
		Amount0Out:      amount0.Dec(),
		Amount1Out:      amount1.Dec(),
		LiquidityBurned: liquidityBurned.Dec(),
		Payout:          opts.Payout.String(),
	})
	return BurnResult{Amount0: amount0, Amount1: amount1, LiquidityBurned: liquidityBurned}, nil
}

// proRata returns burned + idle*shares/supply.
func proRata(burned, idle, shares, supply *uint256.Int) (*uint256.Int, error) {
	share, err := v3math.MulDiv(idle, shares, supply)
	if err != nil {
		return nil, err
	}
	return share.Add(share, burned), nil
}

// zapOut swaps the unwanted token's portion into the payout token.
func (v *Vault) zapOut(ctx context.Context, payout Payout, amount0, amount1 *uint256.Int, tolerance uint16) (*uint256.Int, *uint256.Int, error) {
	zeroForOne := payout == PayoutToken1
	amountIn := amount1
	if zeroForOne {
		amountIn = amount0
	}
	if amountIn.IsZero() {
		return amount0, amount1, nil
	}

	delta0, delta1, err := v.swap(ctx, zeroForOne, amountIn, tolerance, fillExact)
	if err != nil {
		return nil, nil, fmt.Errorf("zap out: %w", err)
	}
	if zeroForOne {
		received, err := amountOut(delta1)
		if err != nil {
			return nil, nil, err
		}
		return new(uint256.Int), new(uint256.Int).Add(amount1, received), nil
	}
	received, err := amountOut(delta0)
	if err != nil {
		return nil, nil, err
	}
	return new(uint256.Int).Add(amount0, received), new(uint256.Int), nil
}

func (v *Vault) userTolerance(requested uint16) (uint16, error) {
	limit := v.params.UserSlippageBPS
	if requested == 0 {
		return limit, nil
	}
	if requested > limit {
		return 0, fmt.Errorf("tolerance %d bps above max %d: %w", requested, limit, ErrSlippageTooHigh)
	}
	return requested, nil
}

// MintAmounts sizes the largest mint the given maxima can pay for.
func (v *Vault) MintAmounts(ctx context.Context, amount0Max, amount1Max *uint256.Int) (MintQuote, error) {
	supply, err := v.shares.TotalSupply(ctx)
	if err != nil {
		return MintQuote{}, fmt.Errorf("total supply: %w", err)
	}
	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return MintQuote{}, fmt.Errorf("read slot0: %w", err)
	}

	if supply.IsZero() {
		liquidity, err := v.rng.LiquidityForAmounts(slot0.SqrtPriceX96, amount0Max, amount1Max)
		if err != nil {
			return MintQuote{}, err
		}
		if !liquidity.GtUint64(MinInitialShares) {
			return MintQuote{}, fmt.Errorf("mint %s: %w", liquidity.Dec(), ErrInitialSharesTooLow)
		}
		amount0, amount1, err := v.rng.AmountsForLiquidity(slot0.SqrtPriceX96, liquidity, true)
		if err != nil {
			return MintQuote{}, err
		}
		return MintQuote{Amount0: amount0, Amount1: amount1, MintAmount: liquidity}, nil
	}

	current0, current1, err := v.underlyingAt(ctx, slot0.SqrtPriceX96, slot0.Tick)
	if err != nil {
		return MintQuote{}, err
	}

	var mintAmount *uint256.Int
	switch {
	case current0.IsZero() && current1.IsZero():
		return MintQuote{}, fmt.Errorf("empty vault: %w", ErrMintZero)
	case current0.IsZero():
		mintAmount, err = v3math.MulDiv(amount1Max, supply, current1)
	case current1.IsZero():
		mintAmount, err = v3math.MulDiv(amount0Max, supply, current0)
	default:
		var mint0, mint1 *uint256.Int
		if mint0, err = v3math.MulDiv(amount0Max, supply, current0); err != nil {
			return MintQuote{}, err
		}
		if mint1, err = v3math.MulDiv(amount1Max, supply, current1); err != nil {
			return MintQuote{}, err
		}
		if mint0.IsZero() || mint1.IsZero() {
			return MintQuote{}, fmt.Errorf("implied mint %s/%s: %w", mint0.Dec(), mint1.Dec(), ErrMintZero)
		}
		mintAmount = v3math.Min(mint0, mint1)
	}
	if err != nil {
		return MintQuote{}, err
	}
	if mintAmount.IsZero() {
		return MintQuote{}, ErrMintZero
	}

	amount0, err := v3math.MulDivRoundingUp(mintAmount, current0, supply)
	if err != nil {
		return MintQuote{}, err
	}
	amount1, err := v3math.MulDivRoundingUp(mintAmount, current1, supply)
	if err != nil {
		return MintQuote{}, err
	}
	return MintQuote{Amount0: amount0, Amount1: amount1, MintAmount: mintAmount}, nil
}

func (v *Vault) pull(ctx context.Context, token Token, from common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return token.TransferFrom(ctx, v.address, from, v.address, amount)
}

func (v *Vault) pay(ctx context.Context, token Token, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return token.Transfer(ctx, v.address, to, amount)
}
