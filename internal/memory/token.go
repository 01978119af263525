// Package memory provides in-process implementations of the pool, token
// and share ledger a vault talks to. Each supports Snapshot so an aborted
// vault operation can be rolled back.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Token is an ERC20-like balance sheet.
type Token struct {
	address  common.Address
	symbol   string
	decimals uint8

	mu         sync.Mutex
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

func NewToken(address common.Address, symbol string, decimals uint8) *Token {
	return &Token{
		address:    address,
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }

func (t *Token) BalanceOf(_ context.Context, account common.Address) (*uint256.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balanceLocked(account).Clone(), nil
}

// Mint credits amount to account out of thin air.
func (t *Token) Mint(to common.Address, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bal := t.balanceLocked(to)
	t.balances[to] = new(uint256.Int).Add(bal, amount)
}

func (t *Token) Approve(owner, spender common.Address, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	t.allowances[owner][spender] = amount.Clone()
}

func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowanceLocked(owner, spender).Clone()
}

func (t *Token) Transfer(_ context.Context, from, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.moveLocked(from, to, amount)
}

// TransferFrom moves tokens on behalf of from, spending spender's allowance.
func (t *Token) TransferFrom(_ context.Context, spender, from, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	allowance := t.allowanceLocked(from, spender)
	if allowance.Lt(amount) {
		return fmt.Errorf("%s allowance %s for %s, need %s: %w",
			t.symbol, allowance.Dec(), spender.Hex(), amount.Dec(), ErrInsufficientAllowance)
	}
	if err := t.moveLocked(from, to, amount); err != nil {
		return err
	}
	t.allowances[from][spender] = new(uint256.Int).Sub(allowance, amount)
	return nil
}

// Snapshot copies all balances and allowances. The returned func restores them.
func (t *Token) Snapshot() func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	balances := make(map[common.Address]*uint256.Int, len(t.balances))
	for k, v := range t.balances {
		balances[k] = v.Clone()
	}
	allowances := make(map[common.Address]map[common.Address]*uint256.Int, len(t.allowances))
	for owner, spenders := range t.allowances {
		m := make(map[common.Address]*uint256.Int, len(spenders))
		for k, v := range spenders {
			m[k] = v.Clone()
		}
		allowances[owner] = m
	}

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.balances = balances
		t.allowances = allowances
	}
}

func (t *Token) moveLocked(from, to common.Address, amount *uint256.Int) error {
	bal := t.balanceLocked(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%s balance of %s is %s, need %s: %w",
			t.symbol, from.Hex(), bal.Dec(), amount.Dec(), ErrInsufficientBalance)
	}
	t.balances[from] = new(uint256.Int).Sub(bal, amount)
	t.balances[to] = new(uint256.Int).Add(t.balanceLocked(to), amount)
	return nil
}

func (t *Token) balanceLocked(account common.Address) *uint256.Int {
	if bal, ok := t.balances[account]; ok {
		return bal
	}
	return new(uint256.Int)
}

func (t *Token) allowanceLocked(owner, spender common.Address) *uint256.Int {
	if a, ok := t.allowances[owner][spender]; ok {
		return a
	}
	return new(uint256.Int)
}
