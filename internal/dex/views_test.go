package dex

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/guard"
	"liquidityVault/internal/model"
	"liquidityVault/internal/v3math"
	"liquidityVault/internal/vault"
)

var (
	_ vault.Pool        = (*PoolView)(nil)
	_ vault.Token       = (*TokenView)(nil)
	_ vault.ShareLedger = (*SupplyView)(nil)
)

// fakeChain answers calls by method name with canned outputs packed
// through the real ABI.
type fakeChain struct {
	t       *testing.T
	abi     abi.ABI
	outputs map[string][]interface{}
	inputs  map[string][]interface{}
	blocks  []*big.Int
}

func newFakeChain(t *testing.T, parsed abi.ABI) *fakeChain {
	return &fakeChain{t: t, abi: parsed, outputs: map[string][]interface{}{}, inputs: map[string][]interface{}{}}
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.blocks = append(f.blocks, block)
	method, err := f.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	require.NoError(f.t, err)
	f.inputs[method.Name] = args

	out, ok := f.outputs[method.Name]
	if !ok {
		return nil, fmt.Errorf("execution reverted: %s", method.Name)
	}
	return method.Outputs.Pack(out...)
}

func poolChain(t *testing.T) *fakeChain {
	parsed, err := V3PoolABI()
	require.NoError(t, err)
	f := newFakeChain(t, parsed)
	f.outputs["tickSpacing"] = []interface{}{big.NewInt(60)}
	return f
}

func TestPoolViewReads(t *testing.T) {
	ctx := context.Background()
	chain := poolChain(t)
	block := big.NewInt(19_000_000)
	spot, err := v3math.GetSqrtRatioAtTick(-120)
	require.NoError(t, err)
	chain.outputs["slot0"] = []interface{}{spot.ToBig(), big.NewInt(-120), uint16(1), uint16(10), uint16(10), uint8(0), true}
	chain.outputs["feeGrowthGlobal0X128"] = []interface{}{big.NewInt(7)}
	chain.outputs["feeGrowthGlobal1X128"] = []interface{}{big.NewInt(9)}
	chain.outputs["positions"] = []interface{}{big.NewInt(1_000), big.NewInt(1), big.NewInt(2), big.NewInt(3), big.NewInt(4)}
	chain.outputs["ticks"] = []interface{}{
		big.NewInt(5), big.NewInt(-5), big.NewInt(11), big.NewInt(12),
		big.NewInt(0), big.NewInt(0), uint32(0), true,
	}
	chain.outputs["observe"] = []interface{}{
		[]*big.Int{big.NewInt(-600_000), big.NewInt(-672_000)},
		[]*big.Int{big.NewInt(0), big.NewInt(0)},
	}

	pool := common.HexToAddress("0x8ad599c3a0ff1de082011efddc58f1908eb6e6d8")
	view, err := NewPoolView(ctx, chain, pool, block)
	require.NoError(t, err)
	require.Equal(t, int32(60), view.TickSpacing())
	require.Equal(t, pool, view.Address())

	slot0, err := view.Slot0(ctx)
	require.NoError(t, err)
	require.True(t, slot0.SqrtPriceX96.Eq(spot))
	require.Equal(t, int32(-120), slot0.Tick)

	g0, g1, err := view.FeeGrowthGlobal(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(7), g0.Uint64())
	require.Equal(t, uint64(9), g1.Uint64())

	key := vault.PositionKey(common.HexToAddress("0x01"), -600, 600)
	pos, err := view.Position(ctx, key)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), pos.Liquidity.Uint64())
	require.Equal(t, uint64(4), pos.TokensOwed1.Uint64())
	require.Equal(t, [32]byte(key), chain.inputs["positions"][0])

	info, err := view.Tick(ctx, -600)
	require.NoError(t, err)
	require.Equal(t, uint64(11), info.FeeGrowthOutside0.Uint64())
	require.Equal(t, uint64(12), info.FeeGrowthOutside1.Uint64())
	require.Equal(t, big.NewInt(-600), chain.inputs["ticks"][0])

	cums, err := view.Observe(ctx, []uint32{600, 0})
	require.NoError(t, err)
	require.Equal(t, []int64{-600_000, -672_000}, cums)

	// -72000 over 600s is tick -120, matching spot
	require.NoError(t, guard.CheckOracle(ctx, view, slot0.SqrtPriceX96, 600, 100))

	for _, b := range chain.blocks {
		require.Equal(t, block, b)
	}
}

func TestPoolViewRejectsWrites(t *testing.T) {
	view, err := NewPoolView(context.Background(), poolChain(t), common.Address{}, nil)
	require.NoError(t, err)

	_, _, err = view.Mint(context.Background(), common.Address{}, v3math.Range{}, uint256.NewInt(1), nil)
	require.ErrorIs(t, err, ErrReadOnly)
	_, _, err = view.Burn(context.Background(), common.Address{}, v3math.Range{}, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrReadOnly)
	_, _, err = view.Collect(context.Background(), common.Address{}, common.Address{}, v3math.Range{}, nil, nil)
	require.ErrorIs(t, err, ErrReadOnly)
	_, _, err = view.Swap(context.Background(), common.Address{}, true, uint256.NewInt(1), nil, nil)
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestPoolViewPropagatesCallErrors(t *testing.T) {
	view, err := NewPoolView(context.Background(), poolChain(t), common.Address{}, nil)
	require.NoError(t, err)

	_, err = view.Slot0(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "call slot0")
}

func TestSupplyAndTokenViews(t *testing.T) {
	ctx := context.Background()
	parsed, err := ERC20ABI()
	require.NoError(t, err)
	chain := newFakeChain(t, parsed)
	chain.outputs["totalSupply"] = []interface{}{big.NewInt(5_000)}
	chain.outputs["balanceOf"] = []interface{}{big.NewInt(42)}

	holder := common.HexToAddress("0x02")
	supply := NewSupplyView(chain, common.HexToAddress("0x03"), nil)
	total, err := supply.TotalSupply(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(5_000), total.Uint64())

	bal, err := NewTokenView(chain, common.HexToAddress("0x04"), nil).BalanceOf(ctx, holder)
	require.NoError(t, err)
	require.Equal(t, uint64(42), bal.Uint64())
	require.Equal(t, holder, chain.inputs["balanceOf"][0])

	require.ErrorIs(t, supply.Mint(ctx, holder, uint256.NewInt(1)), ErrReadOnly)
	require.ErrorIs(t, supply.Transfer(ctx, holder, holder, uint256.NewInt(1)), ErrReadOnly)
}

// routedChain sends each call to the fake registered for its target.
type routedChain map[common.Address]ContractCaller

func (r routedChain) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	c, ok := r[*msg.To]
	if !ok {
		return nil, fmt.Errorf("no contract at %s", msg.To.Hex())
	}
	return c.CallContract(ctx, msg, block)
}

func tokenChain(t *testing.T, symbol string, decimals uint8) *fakeChain {
	parsed, err := ERC20ABI()
	require.NoError(t, err)
	f := newFakeChain(t, parsed)
	f.outputs["decimals"] = []interface{}{decimals}
	f.outputs["symbol"] = []interface{}{symbol}
	return f
}

// legacySymbol answers symbol() with a bytes32 word, as MKR does.
type legacySymbol struct {
	t    *testing.T
	word [32]byte
}

func (l legacySymbol) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	erc20, err := ERC20ABI()
	require.NoError(l.t, err)
	legacy, err := erc20Bytes32Symbol.get()
	require.NoError(l.t, err)
	method, err := erc20.MethodById(msg.Data[:4])
	require.NoError(l.t, err)
	if method.Name == "decimals" {
		return method.Outputs.Pack(uint8(18))
	}
	return legacy.Methods["symbol"].Outputs.Pack(l.word)
}

func TestMetaReaderPool(t *testing.T) {
	ctx := context.Background()
	pool := poolChain(t)
	token0 := common.HexToAddress("0x0a")
	token1 := common.HexToAddress("0x0b")
	pool.outputs["token0"] = []interface{}{token0}
	pool.outputs["token1"] = []interface{}{token1}
	pool.outputs["fee"] = []interface{}{big.NewInt(3000)}
	usdc := tokenChain(t, "USDC", 6)
	weth := tokenChain(t, "WETH", 18)
	poolAddr := common.HexToAddress("0x0c")
	block := big.NewInt(42)

	reader := NewMetaReader(routedChain{poolAddr: pool, token0: usdc, token1: weth}, block, nil)
	meta, err := reader.Pool(ctx, poolAddr)
	require.NoError(t, err)
	require.Equal(t, poolAddr.Hex(), meta.Address)
	require.Equal(t, uint32(3000), meta.FeePips)
	require.Equal(t, int32(60), meta.TickSpacing)
	require.Equal(t, model.TokenMeta{Address: token0.Hex(), Symbol: "USDC", Decimals: 6}, meta.Token0)
	require.Equal(t, uint8(18), meta.Token1.Decimals)
	require.Equal(t, []*big.Int{block, block}, usdc.blocks)

	// Token metadata is read once per address.
	_, err = reader.Token(ctx, token0)
	require.NoError(t, err)
	require.Len(t, usdc.blocks, 2)
}

func TestMetaReaderBytes32Symbol(t *testing.T) {
	var word [32]byte
	copy(word[:], "MKR")
	mkr := common.HexToAddress("0x0d")

	meta, err := NewMetaReader(routedChain{mkr: legacySymbol{t: t, word: word}}, nil, nil).Token(context.Background(), mkr)
	require.NoError(t, err)
	require.Equal(t, "MKR", meta.Symbol)
	require.Equal(t, uint8(18), meta.Decimals)
}

func TestMetaReaderRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	token := common.HexToAddress("0x0e")

	_, err := NewMetaReader(routedChain{token: tokenChain(t, "BIG", 78)}, nil, nil).Token(ctx, token)
	require.ErrorContains(t, err, "out of range")

	noDecimals := tokenChain(t, "X", 0)
	delete(noDecimals.outputs, "decimals")
	_, err = NewMetaReader(routedChain{token: noDecimals}, nil, nil).Token(ctx, token)
	require.ErrorContains(t, err, "call decimals")

	// A missing symbol is not fatal.
	noSymbol := tokenChain(t, "", 8)
	delete(noSymbol.outputs, "symbol")
	meta, err := NewMetaReader(routedChain{token: noSymbol}, nil, nil).Token(ctx, token)
	require.NoError(t, err)
	require.Empty(t, meta.Symbol)
	require.Equal(t, uint8(8), meta.Decimals)
}

func TestToBig(t *testing.T) {
	for _, v := range []interface{}{uint8(7), int32(7), uint64(7), big.NewInt(7)} {
		b, err := toBig(v)
		require.NoError(t, err)
		require.Equal(t, int64(7), b.Int64())
	}
	_, err := toBig("7")
	require.Error(t, err)
}
