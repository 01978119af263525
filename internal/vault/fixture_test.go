package vault_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/memory"
	"liquidityVault/internal/model"
	"liquidityVault/internal/v3math"
	"liquidityVault/internal/vault"
)

var (
	vaultAddr = common.HexToAddress("0x000000000000000000000000000000000000a001")
	poolAddr  = common.HexToAddress("0x000000000000000000000000000000000000a002")
	manager   = common.HexToAddress("0x000000000000000000000000000000000000b001")
	keeper    = common.HexToAddress("0x000000000000000000000000000000000000b002")
	treasury  = common.HexToAddress("0x000000000000000000000000000000000000b003")
	alice     = common.HexToAddress("0x000000000000000000000000000000000000c001")
	bob       = common.HexToAddress("0x000000000000000000000000000000000000c002")
	lpAddr    = common.HexToAddress("0x000000000000000000000000000000000000d001")
	traderAdr = common.HexToAddress("0x000000000000000000000000000000000000d002")

	vaultRange = v3math.Range{Lower: -200, Upper: 200}
)

type recordingSink struct {
	events []model.VaultEvent
	err    error
}

func (s *recordingSink) PutEvents(_ context.Context, events []model.VaultEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, events...)
	return nil
}

func (s *recordingSink) names() []string {
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventName)
	}
	return out
}

type fixture struct {
	ctx    context.Context
	pool   *memory.Pool
	token0 *memory.Token
	token1 *memory.Token
	shares *memory.Ledger
	lp     *memory.Account
	trader *memory.Account
	sink   *recordingSink
	vault  *vault.Vault
}

type fixtureOption func(*vault.Config)

func withPool(wrap func(*memory.Pool) vault.Pool) fixtureOption {
	return func(cfg *vault.Config) { cfg.Pool = wrap(cfg.Pool.(*memory.Pool)) }
}

func defaultParams() vault.Params {
	return vault.Params{
		ManagerFeeBPS:        1_000,
		ManagerTreasury:      treasury,
		UserSlippageBPS:      500,
		RebalanceSlippageBPS: 300,
		OracleSlippageBPS:    100,
		OracleWindow:         600,
	}
}

func e18(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()

	token0 := memory.NewToken(common.HexToAddress("0x00000000000000000000000000000000000000f0"), "TK0", 18)
	token1 := memory.NewToken(common.HexToAddress("0x00000000000000000000000000000000000000f1"), "TK1", 18)
	pool, err := memory.NewPool(memory.PoolConfig{
		Address:      poolAddr,
		Token0:       token0,
		Token1:       token1,
		FeePips:      3000,
		TickSpacing:  10,
		SqrtPriceX96: v3math.Q96,
		Now:          1_700_000_000,
	})
	require.NoError(t, err)

	for _, who := range []common.Address{alice, bob, lpAddr, traderAdr} {
		token0.Mint(who, e18(1_000_000))
		token1.Mint(who, e18(1_000_000))
	}
	maxAllowance := new(uint256.Int).SetAllOne()
	for _, who := range []common.Address{alice, bob} {
		token0.Approve(who, vaultAddr, maxAllowance)
		token1.Approve(who, vaultAddr, maxAllowance)
	}

	lp := memory.NewAccount(lpAddr, pool)
	_, _, err = lp.AddLiquidity(ctx, v3math.Range{Lower: -6000, Upper: 6000}, e18(100))
	require.NoError(t, err)
	pool.Advance(3600)

	shares := memory.NewLedger()
	sink := &recordingSink{}
	cfg := vault.Config{
		Address: vaultAddr,
		Pool:    pool,
		Token0:  token0,
		Token1:  token1,
		Shares:  shares,
		Manager: manager,
		Keeper:  keeper,
		Range:   vaultRange,
		Params:  defaultParams(),
		Sink:    sink,
		Clock:   pool.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	v, err := vault.New(cfg)
	require.NoError(t, err)

	return &fixture{
		ctx:    ctx,
		pool:   pool,
		token0: token0,
		token1: token1,
		shares: shares,
		lp:     lp,
		trader: memory.NewAccount(traderAdr, pool),
		sink:   sink,
		vault:  v,
	}
}

func (f *fixture) balances(t *testing.T, who common.Address) (*uint256.Int, *uint256.Int) {
	t.Helper()
	b0, err := f.token0.BalanceOf(f.ctx, who)
	require.NoError(t, err)
	b1, err := f.token1.BalanceOf(f.ctx, who)
	require.NoError(t, err)
	return b0, b1
}

func (f *fixture) positionLiquidity(t *testing.T, r v3math.Range) *uint256.Int {
	t.Helper()
	pos, err := f.pool.Position(f.ctx, vault.PositionKey(vaultAddr, r.Lower, r.Upper))
	require.NoError(t, err)
	return pos.Liquidity
}

func (f *fixture) supply(t *testing.T) *uint256.Int {
	t.Helper()
	s, err := f.shares.TotalSupply(f.ctx)
	require.NoError(t, err)
	return s
}

// seed makes alice the first depositor with liquidity shares.
func (f *fixture) seed(t *testing.T, liquidity *uint256.Int) {
	t.Helper()
	_, err := f.vault.Mint(f.ctx, alice, alice, liquidity)
	require.NoError(t, err)
}

// churn trades token0 in and then pushes the price back to where it
// started, leaving fees in both tokens.
func (f *fixture) churn(t *testing.T, amountIn *uint256.Int) {
	t.Helper()
	start, err := f.pool.Slot0(f.ctx)
	require.NoError(t, err)
	_, _, err = f.trader.SwapExactIn(f.ctx, true, amountIn)
	require.NoError(t, err)
	_, _, err = f.trader.SwapToPrice(f.ctx, start.SqrtPriceX96, e18(1_000))
	require.NoError(t, err)
	end, err := f.pool.Slot0(f.ctx)
	require.NoError(t, err)
	require.True(t, end.SqrtPriceX96.Eq(start.SqrtPriceX96))
}
