package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/amount"
	"liquidityVault/internal/memory"
	"liquidityVault/internal/model"
	"liquidityVault/internal/storage"
	"liquidityVault/internal/v3math"
	"liquidityVault/internal/vault"
)

// ErrUnexpectedOutcome marks a step whose result contradicts expect-error.
var ErrUnexpectedOutcome = errors.New("step outcome differs from expectation")

// Well-known account names. Steps that need a role default to these.
const (
	NameVault    = "vault"
	NamePool     = "pool"
	NameManager  = "manager"
	NameKeeper   = "keeper"
	NameTreasury = "treasury"
	NameLP       = "lp"
)

// AddressOf derives a stable address from an account name.
func AddressOf(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(name)))
}

// VaultAddress is the vault of a scenario. Each scenario gets its own so
// their events can share one file.
func VaultAddress(scenario string) common.Address {
	return AddressOf(scenario + "/" + NameVault)
}

// Result is what a run produced. States holds one entry per step,
// including steps replayed from a checkpoint.
type Result struct {
	Vault    common.Address
	States   []model.VaultState
	Replayed int
}

// Runner executes scenarios. Events and states go to sink; steps at or
// before the checkpoint in steps are replayed without being written.
type Runner struct {
	sink   storage.Sink
	steps  StepStore
	logger *zap.Logger
}

// NewRunner accepts nil for sink and steps.
func NewRunner(sink storage.Sink, steps StepStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{sink: sink, steps: steps, logger: logger}
}

func (r *Runner) Run(ctx context.Context, sc Scenario) (Result, error) {
	if err := sc.Validate(); err != nil {
		return Result{}, err
	}

	resumeAfter := -1
	if r.steps != nil {
		step, ok, err := r.steps.LoadStep(ctx, sc.Name)
		if err != nil {
			return Result{}, fmt.Errorf("load checkpoint: %w", err)
		}
		if ok {
			resumeAfter = step
			r.logger.Info("resuming scenario", zap.String("scenario", sc.Name), zap.Int("after_step", step))
		}
	}

	gate := &gatedSink{next: r.sink}
	w, err := newWorld(ctx, sc, gate, r.logger)
	if err != nil {
		return Result{}, err
	}

	res := Result{Vault: w.vault.Address()}
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		gate.muted = i <= resumeAfter

		if err := expect(step, w.apply(ctx, step)); err != nil {
			return res, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
		state, err := w.state(ctx, i, step.Action)
		if err != nil {
			return res, fmt.Errorf("step %d state: %w", i, err)
		}
		res.States = append(res.States, state)

		if gate.muted {
			res.Replayed++
			continue
		}
		if r.sink != nil {
			if err := r.sink.PutStates(ctx, []model.VaultState{state}); err != nil {
				return res, fmt.Errorf("step %d: put state: %w", i, err)
			}
		}
		if r.steps != nil {
			if err := r.steps.SaveStep(ctx, sc.Name, i); err != nil {
				return res, fmt.Errorf("step %d: save checkpoint: %w", i, err)
			}
		}
		r.logger.Info("step applied",
			zap.Int("step", i),
			zap.String("action", step.Action),
			zap.String("liquidity", state.Liquidity),
			zap.String("total_supply", state.TotalSupply),
		)
	}
	return res, nil
}

func expect(step Step, err error) error {
	switch {
	case step.ExpectError == "":
		return err
	case err == nil:
		return fmt.Errorf("%w: wanted error containing %q", ErrUnexpectedOutcome, step.ExpectError)
	case !strings.Contains(err.Error(), step.ExpectError):
		return fmt.Errorf("%w: wanted error containing %q, got %v", ErrUnexpectedOutcome, step.ExpectError, err)
	}
	return nil
}

// gatedSink drops events while muted.
type gatedSink struct {
	next  storage.EventSink
	muted bool
}

func (g *gatedSink) PutEvents(ctx context.Context, events []model.VaultEvent) error {
	if g.muted || g.next == nil {
		return nil
	}
	return g.next.PutEvents(ctx, events)
}

type world struct {
	sc     Scenario
	pool   *memory.Pool
	token0 *memory.Token
	token1 *memory.Token
	shares *memory.Ledger
	vault  *vault.Vault
	actors map[string]*memory.Account
}

func newWorld(ctx context.Context, sc Scenario, sink vault.EventSink, logger *zap.Logger) (*world, error) {
	token0 := memory.NewToken(AddressOf("token0"), sc.Pool.Token0.Symbol, sc.Pool.Token0.Decimals)
	token1 := memory.NewToken(AddressOf("token1"), sc.Pool.Token1.Symbol, sc.Pool.Token1.Decimals)
	sqrtPrice, err := v3math.GetSqrtRatioAtTick(sc.Pool.Tick)
	if err != nil {
		return nil, fmt.Errorf("pool tick: %w", err)
	}
	pool, err := memory.NewPool(memory.PoolConfig{
		Address:      AddressOf(NamePool),
		Token0:       token0,
		Token1:       token1,
		FeePips:      sc.Pool.FeePips,
		TickSpacing:  sc.Pool.TickSpacing,
		SqrtPriceX96: sqrtPrice,
		Now:          sc.Pool.Start,
	})
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	w := &world{
		sc:     sc,
		pool:   pool,
		token0: token0,
		token1: token1,
		shares: memory.NewLedger(),
		actors: make(map[string]*memory.Account),
	}

	lp := w.actor(NameLP)
	for i, pos := range sc.Pool.Positions {
		r := v3math.Range{Lower: pos.Lower, Upper: pos.Upper}
		liquidity, err := amount.Parse(pos.Liquidity, 0)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		amount0, amount1, err := r.AmountsForLiquidity(sqrtPrice, liquidity, true)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		token0.Mint(lp.Address(), amount0)
		token1.Mint(lp.Address(), amount1)
		if _, _, err := lp.AddLiquidity(ctx, r, liquidity); err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
	}
	pool.Advance(sc.Pool.Warmup)

	vaultAddr := VaultAddress(sc.Name)
	maxAllowance := new(uint256.Int).SetAllOne()
	for _, acct := range sc.Accounts {
		amount0, err := amount.Parse(acct.Amount0, sc.Pool.Token0.Decimals)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", acct.Name, err)
		}
		amount1, err := amount.Parse(acct.Amount1, sc.Pool.Token1.Decimals)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", acct.Name, err)
		}
		addr := AddressOf(acct.Name)
		token0.Mint(addr, amount0)
		token1.Mint(addr, amount1)
		token0.Approve(addr, vaultAddr, maxAllowance)
		token1.Approve(addr, vaultAddr, maxAllowance)
	}

	params := sc.Vault.Params
	params.ManagerTreasury = AddressOf(NameTreasury)
	w.vault, err = vault.New(vault.Config{
		Address: vaultAddr,
		Pool:    pool,
		Token0:  token0,
		Token1:  token1,
		Shares:  w.shares,
		Manager: AddressOf(NameManager),
		Keeper:  AddressOf(NameKeeper),
		Range:   sc.Vault.Range,
		Params:  params,
		Sink:    sink,
		Logger:  logger,
		Clock:   pool.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("new vault: %w", err)
	}
	return w, nil
}

func (w *world) actor(name string) *memory.Account {
	a, ok := w.actors[name]
	if !ok {
		a = memory.NewAccount(AddressOf(name), w.pool)
		w.actors[name] = a
	}
	return a
}

func (w *world) caller(step Step, role string) common.Address {
	if step.Account != "" {
		return AddressOf(step.Account)
	}
	return AddressOf(role)
}

func (w *world) apply(ctx context.Context, step Step) error {
	switch step.Action {
	case ActionDeposit:
		return w.deposit(ctx, step)
	case ActionWithdraw:
		shares, err := amount.Parse(step.Shares, ShareDecimals)
		if err != nil {
			return err
		}
		payout, err := parsePayout(step.Payout)
		if err != nil {
			return err
		}
		who := AddressOf(step.Account)
		_, err = w.vault.Burn(ctx, who, who, shares, vault.WithdrawOptions{Payout: payout, MaxSlippageBPS: step.MaxSlippageBPS})
		return err
	case ActionSwap:
		decimals := w.sc.Pool.Token1.Decimals
		if step.ZeroForOne {
			decimals = w.sc.Pool.Token0.Decimals
		}
		amountIn, err := amount.Parse(step.Amount, decimals)
		if err != nil {
			return err
		}
		_, _, err = w.actor(step.Account).SwapExactIn(ctx, step.ZeroForOne, amountIn)
		return err
	case ActionAdvance:
		w.pool.Advance(step.Seconds)
		return nil
	case ActionRebalance:
		_, err := w.vault.Rebalance(ctx, w.caller(step, NameKeeper))
		return err
	case ActionRange:
		minLiquidity, err := amount.Parse(step.MinLiquidity, 0)
		if err != nil {
			return err
		}
		_, err = w.vault.ExecutiveRebalance(ctx, w.caller(step, NameManager), step.Range, minLiquidity)
		return err
	case ActionWithdrawFees:
		_, _, err := w.vault.WithdrawManagerBalance(ctx, w.caller(step, NameKeeper))
		return err
	case ActionParams:
		_, err := w.vault.UpdateParams(ctx, w.caller(step, NameManager), step.Params.update())
		return err
	}
	return fmt.Errorf("unknown action %q", step.Action)
}

// deposit mints a fixed share amount, or sizes the mint from token maxima
// when no shares are given.
func (w *world) deposit(ctx context.Context, step Step) error {
	shares, err := amount.Parse(step.Shares, ShareDecimals)
	if err != nil {
		return err
	}
	if shares.IsZero() && (step.Amount0 != "" || step.Amount1 != "") {
		max0, err := amount.Parse(step.Amount0, w.sc.Pool.Token0.Decimals)
		if err != nil {
			return err
		}
		max1, err := amount.Parse(step.Amount1, w.sc.Pool.Token1.Decimals)
		if err != nil {
			return err
		}
		quote, err := w.vault.MintAmounts(ctx, max0, max1)
		if err != nil {
			return err
		}
		shares = quote.MintAmount
	}
	who := AddressOf(step.Account)
	_, err = w.vault.Mint(ctx, who, who, shares)
	return err
}

func (w *world) state(ctx context.Context, step int, action string) (model.VaultState, error) {
	slot0, err := w.pool.Slot0(ctx)
	if err != nil {
		return model.VaultState{}, err
	}
	pos, err := w.pool.Position(ctx, w.vault.PositionID())
	if err != nil {
		return model.VaultState{}, err
	}
	supply, err := w.shares.TotalSupply(ctx)
	if err != nil {
		return model.VaultState{}, err
	}
	amount0, amount1, err := w.vault.UnderlyingBalances(ctx)
	if err != nil {
		return model.VaultState{}, err
	}
	manager0, manager1 := w.vault.ManagerBalances()
	r := w.vault.Range()
	return model.VaultState{
		Vault:        w.vault.Address().Hex(),
		Scenario:     w.sc.Name,
		Step:         step,
		Action:       action,
		TickLower:    r.Lower,
		TickUpper:    r.Upper,
		Liquidity:    pos.Liquidity.Dec(),
		TotalSupply:  supply.Dec(),
		Amount0:      amount0.Dec(),
		Amount1:      amount1.Dec(),
		Manager0:     manager0.Dec(),
		Manager1:     manager1.Dec(),
		SqrtPriceX96: slot0.SqrtPriceX96.Dec(),
		Tick:         slot0.Tick,
		Timestamp:    w.pool.Now(),
	}, nil
}

func parsePayout(s string) (vault.Payout, error) {
	switch strings.ToLower(s) {
	case "", "both":
		return vault.PayoutBoth, nil
	case "token0":
		return vault.PayoutToken0, nil
	case "token1":
		return vault.PayoutToken1, nil
	}
	return 0, fmt.Errorf("unknown payout %q", s)
}

func (p ParamsPatch) update() vault.ParamsUpdate {
	upd := vault.ParamsUpdate{
		ManagerFeeBPS:        p.ManagerFeeBPS,
		UserSlippageBPS:      p.UserSlippageBPS,
		RebalanceSlippageBPS: p.RebalanceSlippageBPS,
		OracleSlippageBPS:    p.OracleSlippageBPS,
		OracleWindow:         p.OracleWindow,
	}
	if p.ManagerTreasury != nil {
		addr := AddressOf(*p.ManagerTreasury)
		if common.IsHexAddress(*p.ManagerTreasury) {
			addr = common.HexToAddress(*p.ManagerTreasury)
		}
		upd.ManagerTreasury = &addr
	}
	return upd
}
