package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ledger records vault share balances.
type Ledger struct {
	mu       sync.Mutex
	supply   *uint256.Int
	balances map[common.Address]*uint256.Int
}

func NewLedger() *Ledger {
	return &Ledger{
		supply:   new(uint256.Int),
		balances: make(map[common.Address]*uint256.Int),
	}
}

func (l *Ledger) TotalSupply(context.Context) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply.Clone(), nil
}

func (l *Ledger) BalanceOf(_ context.Context, account common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(account).Clone(), nil
}

func (l *Ledger) Mint(_ context.Context, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] = new(uint256.Int).Add(l.balanceLocked(to), amount)
	l.supply = new(uint256.Int).Add(l.supply, amount)
	return nil
}

func (l *Ledger) Burn(_ context.Context, from common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceLocked(from)
	if bal.Lt(amount) {
		return fmt.Errorf("shares of %s are %s, need %s: %w", from.Hex(), bal.Dec(), amount.Dec(), ErrInsufficientBalance)
	}
	l.balances[from] = new(uint256.Int).Sub(bal, amount)
	l.supply = new(uint256.Int).Sub(l.supply, amount)
	return nil
}

// Transfer moves shares between holders.
func (l *Ledger) Transfer(_ context.Context, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceLocked(from)
	if bal.Lt(amount) {
		return fmt.Errorf("shares of %s are %s, need %s: %w", from.Hex(), bal.Dec(), amount.Dec(), ErrInsufficientBalance)
	}
	l.balances[from] = new(uint256.Int).Sub(bal, amount)
	l.balances[to] = new(uint256.Int).Add(l.balanceLocked(to), amount)
	return nil
}

func (l *Ledger) Snapshot() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	supply := l.supply.Clone()
	balances := make(map[common.Address]*uint256.Int, len(l.balances))
	for k, v := range l.balances {
		balances[k] = v.Clone()
	}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.supply = supply
		l.balances = balances
	}
}

func (l *Ledger) balanceLocked(account common.Address) *uint256.Int {
	if bal, ok := l.balances[account]; ok {
		return bal
	}
	return new(uint256.Int)
}
