package memory

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/fees"
	"liquidityVault/internal/v3math"
	"liquidityVault/internal/vault"
)

var (
	ErrLocked                = errors.New("pool locked")
	ErrZeroAmount            = errors.New("amount is zero")
	ErrInvalidPriceLimit     = errors.New("invalid sqrt price limit")
	ErrInsufficientPayment   = errors.New("callback paid less than owed")
	ErrNoPosition            = errors.New("position has no liquidity")
	ErrInsufficientLiquidity = errors.New("burn exceeds position liquidity")
	ErrObservationTooOld     = errors.New("observation older than oldest recorded")
)

// PoolConfig describes a new pool.
type PoolConfig struct {
	Address      common.Address
	Token0       *Token
	Token1       *Token
	FeePips      uint32
	TickSpacing  int32
	SqrtPriceX96 *uint256.Int
	// Now is the pool's starting unix time.
	Now uint64
}

// Pool is a concentrated-liquidity pool with exact-input swaps, per-tick
// fee growth and a tick accumulator oracle. It is single threaded: the
// lock only rejects reentrant calls from callbacks.
type Pool struct {
	address     common.Address
	token0      *Token
	token1      *Token
	feePips     uint32
	tickSpacing int32

	locked           bool
	now              uint64
	sqrtPrice        *uint256.Int
	tick             int32
	liquidity        *uint256.Int
	feeGrowthGlobal0 *uint256.Int
	feeGrowthGlobal1 *uint256.Int
	ticks            map[int32]*tickState
	positions        map[common.Hash]*positionState
	observations     []observation
}

type tickState struct {
	liquidityGross    *uint256.Int
	liquidityNet      *big.Int
	feeGrowthOutside0 *uint256.Int
	feeGrowthOutside1 *uint256.Int
}

type positionState struct {
	liquidity            *uint256.Int
	feeGrowthInside0Last *uint256.Int
	feeGrowthInside1Last *uint256.Int
	tokensOwed0          *uint256.Int
	tokensOwed1          *uint256.Int
}

type observation struct {
	timestamp      uint64
	tickCumulative int64
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.Token0 == nil || cfg.Token1 == nil {
		return nil, fmt.Errorf("pool tokens are required")
	}
	if cfg.TickSpacing <= 0 {
		return nil, fmt.Errorf("tick spacing %d: %w", cfg.TickSpacing, v3math.ErrMisalignedTick)
	}
	if cfg.FeePips >= v3math.FeeDenominator {
		return nil, fmt.Errorf("fee %d pips too high", cfg.FeePips)
	}
	if cfg.SqrtPriceX96 == nil {
		return nil, fmt.Errorf("initial price is required")
	}
	tick, err := v3math.GetTickAtSqrtRatio(cfg.SqrtPriceX96)
	if err != nil {
		return nil, err
	}
	return &Pool{
		address:          cfg.Address,
		token0:           cfg.Token0,
		token1:           cfg.Token1,
		feePips:          cfg.FeePips,
		tickSpacing:      cfg.TickSpacing,
		now:              cfg.Now,
		sqrtPrice:        cfg.SqrtPriceX96.Clone(),
		tick:             tick,
		liquidity:        new(uint256.Int),
		feeGrowthGlobal0: new(uint256.Int),
		feeGrowthGlobal1: new(uint256.Int),
		ticks:            make(map[int32]*tickState),
		positions:        make(map[common.Hash]*positionState),
		observations:     []observation{{timestamp: cfg.Now}},
	}, nil
}

func (p *Pool) Address() common.Address { return p.address }
func (p *Pool) TickSpacing() int32      { return p.tickSpacing }
func (p *Pool) FeePips() uint32         { return p.feePips }
func (p *Pool) Token0() *Token          { return p.token0 }
func (p *Pool) Token1() *Token          { return p.token1 }
func (p *Pool) Now() uint64             { return p.now }

// Liquidity is the liquidity active at the current tick.
func (p *Pool) Liquidity() *uint256.Int { return p.liquidity.Clone() }

// Advance moves the pool clock forward.
func (p *Pool) Advance(seconds uint64) {
	p.now += seconds
}

func (p *Pool) Slot0(context.Context) (vault.Slot0, error) {
	return vault.Slot0{SqrtPriceX96: p.sqrtPrice.Clone(), Tick: p.tick}, nil
}

func (p *Pool) FeeGrowthGlobal(context.Context) (*uint256.Int, *uint256.Int, error) {
	return p.feeGrowthGlobal0.Clone(), p.feeGrowthGlobal1.Clone(), nil
}

func (p *Pool) Position(_ context.Context, key common.Hash) (vault.PositionState, error) {
	pos, ok := p.positions[key]
	if !ok {
		return vault.PositionState{
			Liquidity:            new(uint256.Int),
			FeeGrowthInside0Last: new(uint256.Int),
			FeeGrowthInside1Last: new(uint256.Int),
			TokensOwed0:          new(uint256.Int),
			TokensOwed1:          new(uint256.Int),
		}, nil
	}
	return vault.PositionState{
		Liquidity:            pos.liquidity.Clone(),
		FeeGrowthInside0Last: pos.feeGrowthInside0Last.Clone(),
		FeeGrowthInside1Last: pos.feeGrowthInside1Last.Clone(),
		TokensOwed0:          pos.tokensOwed0.Clone(),
		TokensOwed1:          pos.tokensOwed1.Clone(),
	}, nil
}

func (p *Pool) Tick(_ context.Context, tick int32) (vault.TickInfo, error) {
	info, ok := p.ticks[tick]
	if !ok {
		return vault.TickInfo{FeeGrowthOutside0: new(uint256.Int), FeeGrowthOutside1: new(uint256.Int)}, nil
	}
	return vault.TickInfo{
		FeeGrowthOutside0: info.feeGrowthOutside0.Clone(),
		FeeGrowthOutside1: info.feeGrowthOutside1.Clone(),
	}, nil
}

// Observe returns the tick accumulator at each of secondsAgos before now.
// Between recorded observations the accumulator is interpolated.
func (p *Pool) Observe(_ context.Context, secondsAgos []uint32) ([]int64, error) {
	out := make([]int64, len(secondsAgos))
	for i, ago := range secondsAgos {
		if uint64(ago) > p.now {
			return nil, fmt.Errorf("%ds ago: %w", ago, ErrObservationTooOld)
		}
		cum, err := p.cumulativeAt(p.now - uint64(ago))
		if err != nil {
			return nil, fmt.Errorf("%ds ago: %w", ago, err)
		}
		out[i] = cum
	}
	return out, nil
}

func (p *Pool) cumulativeAt(target uint64) (int64, error) {
	last := p.observations[len(p.observations)-1]
	if target >= last.timestamp {
		return last.tickCumulative + int64(p.tick)*int64(target-last.timestamp), nil
	}
	if target < p.observations[0].timestamp {
		return 0, ErrObservationTooOld
	}
	// first observation strictly after target
	i := sort.Search(len(p.observations), func(i int) bool {
		return p.observations[i].timestamp > target
	})
	before, after := p.observations[i-1], p.observations[i]
	span := int64(after.timestamp - before.timestamp)
	delta := after.tickCumulative - before.tickCumulative
	return before.tickCumulative + delta/span*int64(target-before.timestamp), nil
}

// writeObservation closes the accumulator interval for the current tick.
// Called before the tick changes.
func (p *Pool) writeObservation() {
	last := p.observations[len(p.observations)-1]
	if p.now == last.timestamp {
		return
	}
	p.observations = append(p.observations, observation{
		timestamp:      p.now,
		tickCumulative: last.tickCumulative + int64(p.tick)*int64(p.now-last.timestamp),
	})
}

func (p *Pool) enter() (func(), error) {
	if p.locked {
		return nil, ErrLocked
	}
	p.locked = true
	return func() { p.locked = false }, nil
}

// Mint adds liquidity for owner in r. callee must pay the owed amounts
// before Mint returns.
func (p *Pool) Mint(ctx context.Context, owner common.Address, r v3math.Range, liquidity *uint256.Int, callee vault.MintCallee) (amount0, amount1 *uint256.Int, err error) {
	release, err := p.enter()
	if err != nil {
		return nil, nil, err
	}
	defer release()
	if liquidity.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	if err := r.Validate(p.tickSpacing); err != nil {
		return nil, nil, err
	}

	restore := p.Snapshot()
	defer func() {
		if err != nil {
			restore()
		}
	}()

	if err = p.modifyPosition(owner, r, liquidity.ToBig()); err != nil {
		return nil, nil, err
	}
	amount0, amount1, err = r.AmountsForLiquidity(p.sqrtPrice, liquidity, true)
	if err != nil {
		return nil, nil, err
	}

	before0, _ := p.token0.BalanceOf(ctx, p.address)
	before1, _ := p.token1.BalanceOf(ctx, p.address)
	if err = callee.MintCallback(ctx, p.address, amount0.Clone(), amount1.Clone()); err != nil {
		return nil, nil, fmt.Errorf("mint callback: %w", err)
	}
	if err = p.checkPaid(ctx, p.token0, before0, amount0); err != nil {
		return nil, nil, err
	}
	if err = p.checkPaid(ctx, p.token1, before1, amount1); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Burn removes liquidity from owner's position and credits the tokens as
// owed. Burning zero refreshes the position's fees.
func (p *Pool) Burn(_ context.Context, owner common.Address, r v3math.Range, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	release, err := p.enter()
	if err != nil {
		return nil, nil, err
	}
	defer release()

	key := vault.PositionKey(owner, r.Lower, r.Upper)
	pos, ok := p.positions[key]
	if !ok || pos.liquidity.IsZero() {
		return nil, nil, ErrNoPosition
	}
	if liquidity.Gt(pos.liquidity) {
		return nil, nil, fmt.Errorf("burn %s of %s: %w", liquidity.Dec(), pos.liquidity.Dec(), ErrInsufficientLiquidity)
	}

	if err := p.modifyPosition(owner, r, new(big.Int).Neg(liquidity.ToBig())); err != nil {
		return nil, nil, err
	}
	amount0, amount1, err := r.AmountsForLiquidity(p.sqrtPrice, liquidity, false)
	if err != nil {
		return nil, nil, err
	}
	pos = p.positions[key]
	pos.tokensOwed0 = new(uint256.Int).Add(pos.tokensOwed0, amount0)
	pos.tokensOwed1 = new(uint256.Int).Add(pos.tokensOwed1, amount1)
	return amount0, amount1, nil
}

// Collect pays up to max0/max1 of owner's owed tokens to recipient.
func (p *Pool) Collect(ctx context.Context, owner, recipient common.Address, r v3math.Range, max0, max1 *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	release, err := p.enter()
	if err != nil {
		return nil, nil, err
	}
	defer release()

	pos, ok := p.positions[vault.PositionKey(owner, r.Lower, r.Upper)]
	if !ok {
		return new(uint256.Int), new(uint256.Int), nil
	}
	amount0 := v3math.Min(pos.tokensOwed0, max0).Clone()
	amount1 := v3math.Min(pos.tokensOwed1, max1).Clone()

	if !amount0.IsZero() {
		if err := p.token0.Transfer(ctx, p.address, recipient, amount0); err != nil {
			return nil, nil, err
		}
	}
	if !amount1.IsZero() {
		if err := p.token1.Transfer(ctx, p.address, recipient, amount1); err != nil {
			return nil, nil, err
		}
	}
	pos.tokensOwed0 = new(uint256.Int).Sub(pos.tokensOwed0, amount0)
	pos.tokensOwed1 = new(uint256.Int).Sub(pos.tokensOwed1, amount1)
	return amount0, amount1, nil
}

// Swap sells exactly amountIn of the input token, stopping early if the
// price reaches sqrtPriceLimit. The output is sent to recipient before
// callee is asked to pay the input.
func (p *Pool) Swap(ctx context.Context, recipient common.Address, zeroForOne bool, amountIn, sqrtPriceLimit *uint256.Int, callee vault.SwapCallee) (delta0, delta1 *big.Int, err error) {
	release, err := p.enter()
	if err != nil {
		return nil, nil, err
	}
	defer release()
	if amountIn.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	if zeroForOne {
		if !sqrtPriceLimit.Lt(p.sqrtPrice) || !sqrtPriceLimit.Gt(v3math.MinSqrtRatio) {
			return nil, nil, fmt.Errorf("limit %s at price %s: %w", sqrtPriceLimit.Dec(), p.sqrtPrice.Dec(), ErrInvalidPriceLimit)
		}
	} else if !sqrtPriceLimit.Gt(p.sqrtPrice) || !sqrtPriceLimit.Lt(v3math.MaxSqrtRatio) {
		return nil, nil, fmt.Errorf("limit %s at price %s: %w", sqrtPriceLimit.Dec(), p.sqrtPrice.Dec(), ErrInvalidPriceLimit)
	}

	restore := p.Snapshot()
	defer func() {
		if err != nil {
			restore()
		}
	}()

	p.writeObservation()

	remaining := amountIn.Clone()
	amountOut := new(uint256.Int)
	for !remaining.IsZero() && !p.sqrtPrice.Eq(sqrtPriceLimit) {
		next, initialized := p.nextInitializedTick(zeroForOne)
		sqrtNext, err := v3math.GetSqrtRatioAtTick(next)
		if err != nil {
			return nil, nil, err
		}
		target := sqrtNext
		if (zeroForOne && sqrtNext.Lt(sqrtPriceLimit)) || (!zeroForOne && sqrtNext.Gt(sqrtPriceLimit)) {
			target = sqrtPriceLimit
		}

		start := p.sqrtPrice
		step, err := v3math.ComputeSwapStep(start, target, p.liquidity, remaining, p.feePips)
		if err != nil {
			return nil, nil, err
		}
		remaining.Sub(remaining, step.AmountIn)
		remaining.Sub(remaining, step.FeeAmount)
		amountOut.Add(amountOut, step.AmountOut)

		if !p.liquidity.IsZero() {
			growth, err := v3math.MulDiv(step.FeeAmount, v3math.Q128, p.liquidity)
			if err != nil {
				return nil, nil, err
			}
			if zeroForOne {
				p.feeGrowthGlobal0 = new(uint256.Int).Add(p.feeGrowthGlobal0, growth)
			} else {
				p.feeGrowthGlobal1 = new(uint256.Int).Add(p.feeGrowthGlobal1, growth)
			}
		}

		p.sqrtPrice = step.SqrtPriceNext
		switch {
		case p.sqrtPrice.Eq(sqrtNext):
			if initialized {
				p.crossTick(next, zeroForOne)
			}
			if zeroForOne {
				p.tick = next - 1
			} else {
				p.tick = next
			}
		case !p.sqrtPrice.Eq(start):
			if p.tick, err = v3math.GetTickAtSqrtRatio(p.sqrtPrice); err != nil {
				return nil, nil, err
			}
		}
	}

	paid := new(uint256.Int).Sub(amountIn, remaining)
	tokenIn, tokenOut := p.token0, p.token1
	delta0, delta1 = paid.ToBig(), new(big.Int).Neg(amountOut.ToBig())
	if !zeroForOne {
		tokenIn, tokenOut = p.token1, p.token0
		delta0, delta1 = new(big.Int).Neg(amountOut.ToBig()), paid.ToBig()
	}

	if !amountOut.IsZero() {
		if err = tokenOut.Transfer(ctx, p.address, recipient, amountOut); err != nil {
			return nil, nil, err
		}
	}
	before, _ := tokenIn.BalanceOf(ctx, p.address)
	if err = callee.SwapCallback(ctx, p.address, new(big.Int).Set(delta0), new(big.Int).Set(delta1)); err != nil {
		return nil, nil, fmt.Errorf("swap callback: %w", err)
	}
	if err = p.checkPaid(ctx, tokenIn, before, paid); err != nil {
		return nil, nil, err
	}
	return delta0, delta1, nil
}

func (p *Pool) checkPaid(ctx context.Context, token *Token, before, owed *uint256.Int) error {
	if owed.IsZero() {
		return nil
	}
	after, _ := token.BalanceOf(ctx, p.address)
	if after.Lt(new(uint256.Int).Add(before, owed)) {
		return fmt.Errorf("%s owed %s: %w", token.Symbol(), owed.Dec(), ErrInsufficientPayment)
	}
	return nil
}

// nextInitializedTick finds the next initialized tick in the swap
// direction, or the tick bound when there is none. Going down the current
// tick itself counts.
func (p *Pool) nextInitializedTick(zeroForOne bool) (int32, bool) {
	found := false
	var best int32
	for t := range p.ticks {
		if zeroForOne {
			if t <= p.tick && (!found || t > best) {
				best, found = t, true
			}
		} else if t > p.tick && (!found || t < best) {
			best, found = t, true
		}
	}
	if found {
		return best, true
	}
	if zeroForOne {
		return v3math.MinTick, false
	}
	return v3math.MaxTick, false
}

func (p *Pool) crossTick(tick int32, zeroForOne bool) {
	info := p.ticks[tick]
	info.feeGrowthOutside0 = new(uint256.Int).Sub(p.feeGrowthGlobal0, info.feeGrowthOutside0)
	info.feeGrowthOutside1 = new(uint256.Int).Sub(p.feeGrowthGlobal1, info.feeGrowthOutside1)

	net := info.liquidityNet
	if zeroForOne {
		net = new(big.Int).Neg(net)
	}
	p.liquidity = addDelta(p.liquidity, net)
}

// modifyPosition applies a signed liquidity change to owner's position in
// r, settling fees earned since the position's last snapshot.
func (p *Pool) modifyPosition(owner common.Address, r v3math.Range, delta *big.Int) error {
	if delta.Sign() != 0 {
		p.updateTick(r.Lower, delta, false)
		p.updateTick(r.Upper, delta, true)
	}

	lower, upper := p.ticks[r.Lower], p.ticks[r.Upper]
	inside0 := fees.GrowthInside(p.tick, r, p.feeGrowthGlobal0, fees.Outside{Lower: lower.feeGrowthOutside0, Upper: upper.feeGrowthOutside0})
	inside1 := fees.GrowthInside(p.tick, r, p.feeGrowthGlobal1, fees.Outside{Lower: lower.feeGrowthOutside1, Upper: upper.feeGrowthOutside1})

	key := vault.PositionKey(owner, r.Lower, r.Upper)
	pos, ok := p.positions[key]
	if !ok {
		pos = &positionState{
			liquidity:            new(uint256.Int),
			feeGrowthInside0Last: new(uint256.Int),
			feeGrowthInside1Last: new(uint256.Int),
			tokensOwed0:          new(uint256.Int),
			tokensOwed1:          new(uint256.Int),
		}
		p.positions[key] = pos
	}
	pos.tokensOwed0 = new(uint256.Int).Add(pos.tokensOwed0, fees.Earned(pos.liquidity, inside0, pos.feeGrowthInside0Last))
	pos.tokensOwed1 = new(uint256.Int).Add(pos.tokensOwed1, fees.Earned(pos.liquidity, inside1, pos.feeGrowthInside1Last))
	pos.feeGrowthInside0Last = inside0
	pos.feeGrowthInside1Last = inside1
	pos.liquidity = addDelta(pos.liquidity, delta)

	if r.Contains(p.tick) {
		p.liquidity = addDelta(p.liquidity, delta)
	}

	if delta.Sign() < 0 {
		for _, t := range []int32{r.Lower, r.Upper} {
			if p.ticks[t].liquidityGross.IsZero() {
				delete(p.ticks, t)
			}
		}
	}
	return nil
}

func (p *Pool) updateTick(tick int32, delta *big.Int, upper bool) {
	info, ok := p.ticks[tick]
	if !ok {
		info = &tickState{
			liquidityGross:    new(uint256.Int),
			liquidityNet:      new(big.Int),
			feeGrowthOutside0: new(uint256.Int),
			feeGrowthOutside1: new(uint256.Int),
		}
		// By convention all growth before initialization happened below the tick.
		if tick <= p.tick {
			info.feeGrowthOutside0 = p.feeGrowthGlobal0.Clone()
			info.feeGrowthOutside1 = p.feeGrowthGlobal1.Clone()
		}
		p.ticks[tick] = info
	}
	info.liquidityGross = addDelta(info.liquidityGross, delta)
	if upper {
		info.liquidityNet = new(big.Int).Sub(info.liquidityNet, delta)
	} else {
		info.liquidityNet = new(big.Int).Add(info.liquidityNet, delta)
	}
}

func addDelta(v *uint256.Int, delta *big.Int) *uint256.Int {
	d, _ := uint256.FromBig(new(big.Int).Abs(delta))
	if delta.Sign() < 0 {
		return new(uint256.Int).Sub(v, d)
	}
	return new(uint256.Int).Add(v, d)
}

// Snapshot deep-copies the pool state. The returned func restores it.
func (p *Pool) Snapshot() func() {
	sqrtPrice, tick, liquidity := p.sqrtPrice.Clone(), p.tick, p.liquidity.Clone()
	g0, g1 := p.feeGrowthGlobal0.Clone(), p.feeGrowthGlobal1.Clone()
	now := p.now

	ticks := make(map[int32]*tickState, len(p.ticks))
	for k, t := range p.ticks {
		ticks[k] = &tickState{
			liquidityGross:    t.liquidityGross.Clone(),
			liquidityNet:      new(big.Int).Set(t.liquidityNet),
			feeGrowthOutside0: t.feeGrowthOutside0.Clone(),
			feeGrowthOutside1: t.feeGrowthOutside1.Clone(),
		}
	}
	positions := make(map[common.Hash]*positionState, len(p.positions))
	for k, pos := range p.positions {
		positions[k] = &positionState{
			liquidity:            pos.liquidity.Clone(),
			feeGrowthInside0Last: pos.feeGrowthInside0Last.Clone(),
			feeGrowthInside1Last: pos.feeGrowthInside1Last.Clone(),
			tokensOwed0:          pos.tokensOwed0.Clone(),
			tokensOwed1:          pos.tokensOwed1.Clone(),
		}
	}
	observations := append([]observation(nil), p.observations...)

	return func() {
		p.sqrtPrice, p.tick, p.liquidity = sqrtPrice, tick, liquidity
		p.feeGrowthGlobal0, p.feeGrowthGlobal1 = g0, g1
		p.now = now
		p.ticks = ticks
		p.positions = positions
		p.observations = observations
	}
}
