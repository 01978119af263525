package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/v3math"
	"liquidityVault/internal/vault"
)

// ErrReadOnly is returned by every state-changing call on a chain view.
var ErrReadOnly = errors.New("chain view is read-only")

// PoolView reads a deployed V3 pool at a fixed block. Writes fail with
// ErrReadOnly, so a vault built on it can only answer views.
type PoolView struct {
	caller      ContractCaller
	address     common.Address
	tickSpacing int32
	block       *big.Int
	abi         abi.ABI
}

// NewPoolView pins reads of pool to block; nil means latest.
func NewPoolView(ctx context.Context, caller ContractCaller, pool common.Address, block *big.Int) (*PoolView, error) {
	parsed, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	v := &PoolView{caller: caller, address: pool, block: block, abi: parsed}

	values, err := v.call(ctx, "tickSpacing")
	if err != nil {
		return nil, err
	}
	spacing, err := toBig(values[0])
	if err != nil {
		return nil, fmt.Errorf("tick spacing: %w", err)
	}
	if v.tickSpacing, err = int24FromBig(spacing); err != nil {
		return nil, fmt.Errorf("tick spacing: %w", err)
	}
	return v, nil
}

func (v *PoolView) Address() common.Address { return v.address }
func (v *PoolView) TickSpacing() int32      { return v.tickSpacing }

func (v *PoolView) Slot0(ctx context.Context) (vault.Slot0, error) {
	values, err := v.call(ctx, "slot0")
	if err != nil {
		return vault.Slot0{}, err
	}
	if len(values) < 2 {
		return vault.Slot0{}, fmt.Errorf("slot0: %d values", len(values))
	}
	sqrtPrice, err := asUint256(values[0])
	if err != nil {
		return vault.Slot0{}, fmt.Errorf("slot0 price: %w", err)
	}
	tickInt, err := toBig(values[1])
	if err != nil {
		return vault.Slot0{}, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return vault.Slot0{}, fmt.Errorf("slot0 tick: %w", err)
	}
	return vault.Slot0{SqrtPriceX96: sqrtPrice, Tick: tick}, nil
}

func (v *PoolView) FeeGrowthGlobal(ctx context.Context) (*uint256.Int, *uint256.Int, error) {
	out := make([]*uint256.Int, 2)
	for i, method := range []string{"feeGrowthGlobal0X128", "feeGrowthGlobal1X128"} {
		values, err := v.call(ctx, method)
		if err != nil {
			return nil, nil, err
		}
		if out[i], err = asUint256(values[0]); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", method, err)
		}
	}
	return out[0], out[1], nil
}

func (v *PoolView) Position(ctx context.Context, key common.Hash) (vault.PositionState, error) {
	values, err := v.call(ctx, "positions", [32]byte(key))
	if err != nil {
		return vault.PositionState{}, err
	}
	fields, err := asUint256s(values, 5)
	if err != nil {
		return vault.PositionState{}, fmt.Errorf("positions: %w", err)
	}
	return vault.PositionState{
		Liquidity:            fields[0],
		FeeGrowthInside0Last: fields[1],
		FeeGrowthInside1Last: fields[2],
		TokensOwed0:          fields[3],
		TokensOwed1:          fields[4],
	}, nil
}

func (v *PoolView) Tick(ctx context.Context, tick int32) (vault.TickInfo, error) {
	values, err := v.call(ctx, "ticks", big.NewInt(int64(tick)))
	if err != nil {
		return vault.TickInfo{}, err
	}
	if len(values) < 4 {
		return vault.TickInfo{}, fmt.Errorf("ticks: %d values", len(values))
	}
	outside, err := asUint256s(values[2:4], 2)
	if err != nil {
		return vault.TickInfo{}, fmt.Errorf("ticks: %w", err)
	}
	return vault.TickInfo{FeeGrowthOutside0: outside[0], FeeGrowthOutside1: outside[1]}, nil
}

func (v *PoolView) Observe(ctx context.Context, secondsAgos []uint32) ([]int64, error) {
	values, err := v.call(ctx, "observe", secondsAgos)
	if err != nil {
		return nil, err
	}
	cums, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("observe: unsupported type %T", values[0])
	}
	out := make([]int64, len(cums))
	for i, c := range cums {
		if !c.IsInt64() {
			return nil, fmt.Errorf("observe: cumulative %s overflows", c)
		}
		out[i] = c.Int64()
	}
	return out, nil
}

func (v *PoolView) Mint(context.Context, common.Address, v3math.Range, *uint256.Int, vault.MintCallee) (*uint256.Int, *uint256.Int, error) {
	return nil, nil, ErrReadOnly
}

func (v *PoolView) Burn(context.Context, common.Address, v3math.Range, *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	return nil, nil, ErrReadOnly
}

func (v *PoolView) Collect(context.Context, common.Address, common.Address, v3math.Range, *uint256.Int, *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	return nil, nil, ErrReadOnly
}

func (v *PoolView) Swap(context.Context, common.Address, bool, *uint256.Int, *uint256.Int, vault.SwapCallee) (*big.Int, *big.Int, error) {
	return nil, nil, ErrReadOnly
}

func (v *PoolView) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	return callMethod(ctx, v.caller, v.address, v.abi, method, v.block, args...)
}

// TokenView reads ERC20 balances at a fixed block.
type TokenView struct {
	caller  ContractCaller
	address common.Address
	block   *big.Int
}

func NewTokenView(caller ContractCaller, token common.Address, block *big.Int) *TokenView {
	return &TokenView{caller: caller, address: token, block: block}
}

func (t *TokenView) Address() common.Address { return t.address }

func (t *TokenView) BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error) {
	return t.uint256Call(ctx, "balanceOf", account)
}

func (t *TokenView) Transfer(context.Context, common.Address, common.Address, *uint256.Int) error {
	return ErrReadOnly
}

func (t *TokenView) TransferFrom(context.Context, common.Address, common.Address, common.Address, *uint256.Int) error {
	return ErrReadOnly
}

func (t *TokenView) uint256Call(ctx context.Context, method string, args ...interface{}) (*uint256.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, t.caller, t.address, parsed, method, t.block, args...)
	if err != nil {
		return nil, err
	}
	out, err := asUint256(values[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

// SupplyView reads the vault's share token.
type SupplyView struct {
	TokenView
}

func NewSupplyView(caller ContractCaller, shareToken common.Address, block *big.Int) *SupplyView {
	return &SupplyView{TokenView{caller: caller, address: shareToken, block: block}}
}

func (s *SupplyView) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	return s.uint256Call(ctx, "totalSupply")
}

func (s *SupplyView) Mint(context.Context, common.Address, *uint256.Int) error { return ErrReadOnly }
func (s *SupplyView) Burn(context.Context, common.Address, *uint256.Int) error { return ErrReadOnly }

func asUint256(value interface{}) (*uint256.Int, error) {
	b, err := toBig(value)
	if err != nil {
		return nil, err
	}
	if b.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s", b)
	}
	out, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("value %s overflows uint256", b)
	}
	return out, nil
}

func asUint256s(values []interface{}, n int) ([]*uint256.Int, error) {
	if len(values) < n {
		return nil, fmt.Errorf("%d values, want %d", len(values), n)
	}
	out := make([]*uint256.Int, n)
	for i := 0; i < n; i++ {
		var err error
		if out[i], err = asUint256(values[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
