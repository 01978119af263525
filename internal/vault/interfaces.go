package vault

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/guard"
	"liquidityVault/internal/model"
	"liquidityVault/internal/v3math"
)

// Slot0 is the pool's current price.
type Slot0 struct {
	SqrtPriceX96 *uint256.Int
	Tick         int32
}

// PositionState is the pool's record of a position.
type PositionState struct {
	Liquidity            *uint256.Int
	FeeGrowthInside0Last *uint256.Int
	FeeGrowthInside1Last *uint256.Int
	TokensOwed0          *uint256.Int
	TokensOwed1          *uint256.Int
}

// TickInfo carries the fee growth outside an initialized tick.
type TickInfo struct {
	FeeGrowthOutside0 *uint256.Int
	FeeGrowthOutside1 *uint256.Int
}

// PoolReader is the read side of a concentrated-liquidity pool.
type PoolReader interface {
	guard.Observer
	Address() common.Address
	TickSpacing() int32
	Slot0(ctx context.Context) (Slot0, error)
	Position(ctx context.Context, key common.Hash) (PositionState, error)
	Tick(ctx context.Context, tick int32) (TickInfo, error)
	FeeGrowthGlobal(ctx context.Context) (growth0, growth1 *uint256.Int, err error)
}

// MintCallee settles tokens owed for newly minted liquidity.
type MintCallee interface {
	MintCallback(ctx context.Context, caller common.Address, owed0, owed1 *uint256.Int) error
}

// SwapCallee settles the input side of a swap. Positive deltas are owed to
// the pool.
type SwapCallee interface {
	SwapCallback(ctx context.Context, caller common.Address, delta0, delta1 *big.Int) error
}

// Pool is a concentrated-liquidity pool the vault provides liquidity to.
// Mint and Swap call back into callee before returning.
type Pool interface {
	PoolReader
	Mint(ctx context.Context, owner common.Address, r v3math.Range, liquidity *uint256.Int, callee MintCallee) (amount0, amount1 *uint256.Int, err error)
	Burn(ctx context.Context, owner common.Address, r v3math.Range, liquidity *uint256.Int) (amount0, amount1 *uint256.Int, err error)
	Collect(ctx context.Context, owner, recipient common.Address, r v3math.Range, max0, max1 *uint256.Int) (amount0, amount1 *uint256.Int, err error)
	Swap(ctx context.Context, recipient common.Address, zeroForOne bool, amountIn, sqrtPriceLimit *uint256.Int, callee SwapCallee) (delta0, delta1 *big.Int, err error)
}

// Token is an ERC20-like asset. Transfers either move the full amount or
// return an error.
type Token interface {
	Address() common.Address
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error
}

// ShareLedger tracks vault shares.
type ShareLedger interface {
	TotalSupply(ctx context.Context) (*uint256.Int, error)
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
	Mint(ctx context.Context, to common.Address, amount *uint256.Int) error
	Burn(ctx context.Context, from common.Address, amount *uint256.Int) error
}

// Reverter is implemented by collaborators that can undo changes made
// during an aborted operation. Snapshot returns the restore function.
type Reverter interface {
	Snapshot() func()
}

// EventSink receives the events of each successful operation.
type EventSink interface {
	PutEvents(ctx context.Context, events []model.VaultEvent) error
}
