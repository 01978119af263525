// Package vault manages a tokenized liquidity position in a
// concentrated-liquidity pool. Depositors mint shares against the position,
// a keeper reinvests fees and the manager moves the range and earns a cut
// of collected fees.
//
// Every entry point holds the vault lock for its whole duration. State the
// pool owns (liquidity, fee growth snapshots) is re-read on every call and
// never cached between operations.
package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/guard"
	"liquidityVault/internal/model"
	"liquidityVault/internal/v3math"
)

// MinInitialShares is the amount the first mint must exceed.
const MinInitialShares = 1_000

// Config wires a vault to its collaborators.
type Config struct {
	Address common.Address
	Pool    Pool
	Token0  Token
	Token1  Token
	Shares  ShareLedger
	Manager common.Address
	Keeper  common.Address
	Range   v3math.Range
	Params  Params
	Sink    EventSink
	Logger  *zap.Logger
	// Clock returns the unix time stamped on events. Defaults to wall time.
	Clock func() uint64
}

// Vault is a single managed position. It is not safe for concurrent use
// beyond rejecting reentrant calls.
type Vault struct {
	address common.Address
	pool    Pool
	token0  Token
	token1  Token
	shares  ShareLedger
	manager common.Address
	keeper  common.Address
	sink    EventSink
	logger  *zap.Logger
	now     func() uint64

	lock            guard.Lock
	rng             v3math.Range
	params          Params
	managerBalance0 *uint256.Int
	managerBalance1 *uint256.Int
	seq             uint64
	pending         []model.VaultEvent
}

func New(cfg Config) (*Vault, error) {
	if cfg.Pool == nil || cfg.Token0 == nil || cfg.Token1 == nil || cfg.Shares == nil {
		return nil, ErrMissingComponent
	}
	switch {
	case cfg.Address == (common.Address{}):
		return nil, fmt.Errorf("vault address: %w", ErrZeroAddress)
	case cfg.Manager == (common.Address{}):
		return nil, fmt.Errorf("manager address: %w", ErrZeroAddress)
	case cfg.Keeper == (common.Address{}):
		return nil, fmt.Errorf("keeper address: %w", ErrZeroAddress)
	}
	if err := cfg.Range.Validate(cfg.Pool.TickSpacing()); err != nil {
		return nil, err
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() uint64 { return uint64(time.Now().Unix()) }
	}

	return &Vault{
		address:         cfg.Address,
		pool:            cfg.Pool,
		token0:          cfg.Token0,
		token1:          cfg.Token1,
		shares:          cfg.Shares,
		manager:         cfg.Manager,
		keeper:          cfg.Keeper,
		sink:            cfg.Sink,
		logger:          logger.With(zap.String("vault", cfg.Address.Hex())),
		now:             clock,
		rng:             cfg.Range,
		params:          cfg.Params,
		managerBalance0: new(uint256.Int),
		managerBalance1: new(uint256.Int),
	}, nil
}

// PositionKey is the pool's key for the position owned by owner in
// [lower, upper): keccak256 of the packed owner and int24 ticks.
func PositionKey(owner common.Address, lower, upper int32) common.Hash {
	buf := make([]byte, 0, common.AddressLength+6)
	buf = append(buf, owner.Bytes()...)
	buf = appendInt24(buf, lower)
	buf = appendInt24(buf, upper)
	return crypto.Keccak256Hash(buf)
}

func appendInt24(b []byte, v int32) []byte {
	u := uint32(v)
	return append(b, byte(u>>16), byte(u>>8), byte(u))
}

// run executes fn as one all-or-nothing operation. Events emitted by fn
// reach the sink only if fn and the sink both succeed; otherwise every
// snapshotted collaborator and the vault's own state are restored.
func (v *Vault) run(ctx context.Context, op string, caller common.Address, fn func() error) error {
	release, err := v.lock.Enter()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer release()

	restore := v.snapshot()
	v.pending = nil

	err = fn()
	if err == nil && v.sink != nil && len(v.pending) > 0 {
		if serr := v.sink.PutEvents(ctx, v.pending); serr != nil {
			err = fmt.Errorf("publish events: %w", serr)
		}
	}
	if err != nil {
		restore()
		v.pending = nil
		v.logger.Warn("operation aborted", zap.String("op", op), zap.String("caller", caller.Hex()), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	v.logger.Info("operation complete", zap.String("op", op), zap.String("caller", caller.Hex()), zap.Int("events", len(v.pending)))
	v.pending = nil
	return nil
}

func (v *Vault) snapshot() func() {
	rng, params, seq := v.rng, v.params, v.seq
	m0, m1 := v.managerBalance0.Clone(), v.managerBalance1.Clone()

	var restores []func()
	for _, c := range []interface{}{v.pool, v.token0, v.token1, v.shares} {
		if r, ok := c.(Reverter); ok {
			restores = append(restores, r.Snapshot())
		}
	}

	return func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		v.rng, v.params, v.seq = rng, params, seq
		v.managerBalance0, v.managerBalance1 = m0, m1
	}
}

func (v *Vault) emit(name string, data interface{}) {
	v.seq++
	v.pending = append(v.pending, model.VaultEvent{
		Vault:     v.address.Hex(),
		Seq:       v.seq,
		EventName: name,
		Timestamp: v.now(),
		Decoded:   data,
	})
}

func (v *Vault) requireManager(caller common.Address) error {
	if caller != v.manager {
		return fmt.Errorf("caller %s is not manager: %w", caller.Hex(), ErrUnauthorized)
	}
	return nil
}

func (v *Vault) requireKeeperOrManager(caller common.Address) error {
	if caller != v.manager && caller != v.keeper {
		return fmt.Errorf("caller %s is not keeper or manager: %w", caller.Hex(), ErrUnauthorized)
	}
	return nil
}

func (v *Vault) position(ctx context.Context, r v3math.Range) (PositionState, error) {
	pos, err := v.pool.Position(ctx, PositionKey(v.address, r.Lower, r.Upper))
	if err != nil {
		return PositionState{}, fmt.Errorf("read position: %w", err)
	}
	return pos, nil
}

// idleBalances are the vault's token balances not reserved for the manager.
func (v *Vault) idleBalances(ctx context.Context) (*uint256.Int, *uint256.Int, error) {
	bal0, err := v.token0.BalanceOf(ctx, v.address)
	if err != nil {
		return nil, nil, fmt.Errorf("token0 balance: %w", err)
	}
	bal1, err := v.token1.BalanceOf(ctx, v.address)
	if err != nil {
		return nil, nil, fmt.Errorf("token1 balance: %w", err)
	}
	return subFloor(bal0, v.managerBalance0), subFloor(bal1, v.managerBalance1), nil
}

// subFloor returns a-b, or zero when b > a.
func subFloor(a, b *uint256.Int) *uint256.Int {
	if b.Gt(a) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}
