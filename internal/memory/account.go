package memory

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/v3math"
)

// Account is an externally owned actor that trades against and provides
// liquidity to a Pool, paying callbacks from its own balances.
type Account struct {
	address common.Address
	pool    *Pool
}

func NewAccount(address common.Address, pool *Pool) *Account {
	return &Account{address: address, pool: pool}
}

func (a *Account) Address() common.Address { return a.address }

// AddLiquidity mints liquidity owned by the account.
func (a *Account) AddLiquidity(ctx context.Context, r v3math.Range, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	return a.pool.Mint(ctx, a.address, r, liquidity, a)
}

// SwapExactIn sells amountIn with no price limit.
func (a *Account) SwapExactIn(ctx context.Context, zeroForOne bool, amountIn *uint256.Int) (*big.Int, *big.Int, error) {
	limit := new(uint256.Int).AddUint64(v3math.MinSqrtRatio, 1)
	if !zeroForOne {
		limit = new(uint256.Int).SubUint64(v3math.MaxSqrtRatio, 1)
	}
	return a.pool.Swap(ctx, a.address, zeroForOne, amountIn, limit, a)
}

// SwapToPrice sells up to amountIn, stopping at sqrtPriceX96.
func (a *Account) SwapToPrice(ctx context.Context, sqrtPriceX96, amountIn *uint256.Int) (*big.Int, *big.Int, error) {
	zeroForOne := sqrtPriceX96.Lt(a.pool.sqrtPrice)
	return a.pool.Swap(ctx, a.address, zeroForOne, amountIn, sqrtPriceX96, a)
}

func (a *Account) MintCallback(ctx context.Context, caller common.Address, owed0, owed1 *uint256.Int) error {
	if !owed0.IsZero() {
		if err := a.pool.token0.Transfer(ctx, a.address, caller, owed0); err != nil {
			return err
		}
	}
	if !owed1.IsZero() {
		if err := a.pool.token1.Transfer(ctx, a.address, caller, owed1); err != nil {
			return err
		}
	}
	return nil
}

func (a *Account) SwapCallback(ctx context.Context, caller common.Address, delta0, delta1 *big.Int) error {
	if delta0.Sign() > 0 {
		amount, _ := uint256.FromBig(delta0)
		if err := a.pool.token0.Transfer(ctx, a.address, caller, amount); err != nil {
			return err
		}
	}
	if delta1.Sign() > 0 {
		amount, _ := uint256.FromBig(delta1)
		if err := a.pool.token1.Transfer(ctx, a.address, caller, amount); err != nil {
			return err
		}
	}
	return nil
}
