package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Token is an in-memory fungible token with ERC-20 semantics. It serves both
// as the credit asset and as the liquidity-share unit.
type Token struct {
	name   string
	logger *zap.Logger

	mu         sync.RWMutex
	minter     common.Address
	supply     *uint256.Int
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

func NewToken(name string, logger *zap.Logger) *Token {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Token{
		name:       name,
		logger:     logger.With(zap.String("token", name)),
		supply:     new(uint256.Int),
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (t *Token) Name() string { return t.name }

// SetMinter grants mint and burn rights. It can be called once.
func (t *Token) SetMinter(minter common.Address) error {
	if minter == (common.Address{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.minter != (common.Address{}) {
		return ErrMinterAlreadySet
	}
	t.minter = minter
	return nil
}

func (t *Token) Minter() common.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.minter
}

func (t *Token) BalanceOf(_ context.Context, account common.Address) (*uint256.Int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return balanceOf(t.balances, account), nil
}

func (t *Token) TotalSupply(context.Context) (*uint256.Int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supply.Clone(), nil
}

func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowance(owner, spender).Clone()
}

// Approve sets spender's allowance over owner's balance, replacing any previous value.
func (t *Token) Approve(_ context.Context, owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	byOwner, ok := t.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = byOwner
	}
	if amount == nil || amount.IsZero() {
		delete(byOwner, spender)
		return nil
	}
	byOwner[spender] = amount.Clone()
	return nil
}

func (t *Token) Transfer(_ context.Context, from, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// TransferFrom moves amount from -> to, spending spender's allowance.
func (t *Token) TransferFrom(_ context.Context, spender, from, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	allowed := t.allowance(from, spender)
	if allowed.Lt(amount) {
		return fmt.Errorf("%s: %w: %s allows %s, need %s", t.name, ErrInsufficientAllowance, from.Hex(), allowed.Dec(), amount.Dec())
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	left := new(uint256.Int).Sub(allowed, amount)
	if left.IsZero() {
		delete(t.allowances[from], spender)
	} else {
		t.allowances[from][spender] = left
	}
	return nil
}

func (t *Token) Mint(_ context.Context, minter, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkMinter(minter); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	supply, overflow := new(uint256.Int).AddOverflow(t.supply, amount)
	if overflow {
		return fmt.Errorf("%s: %w: supply", t.name, ErrOverflow)
	}
	t.supply = supply
	t.balances[to] = new(uint256.Int).Add(balanceOf(t.balances, to), amount)
	t.logger.Debug("mint", zap.String("to", to.Hex()), zap.String("amount", amount.Dec()))
	return nil
}

func (t *Token) Burn(_ context.Context, minter, from common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkMinter(minter); err != nil {
		return err
	}
	bal := balanceOf(t.balances, from)
	if bal.Lt(amount) {
		return fmt.Errorf("%s: %w: %s holds %s, burning %s", t.name, ErrInsufficientBalance, from.Hex(), bal.Dec(), amount.Dec())
	}
	setBalance(t.balances, from, new(uint256.Int).Sub(bal, amount))
	t.supply = new(uint256.Int).Sub(t.supply, amount)
	t.logger.Debug("burn", zap.String("from", from.Hex()), zap.String("amount", amount.Dec()))
	return nil
}

func (t *Token) checkMinter(caller common.Address) error {
	if t.minter == (common.Address{}) || caller != t.minter {
		return fmt.Errorf("%s: %w: %s", t.name, ErrUnauthorizedMinter, caller.Hex())
	}
	return nil
}

func (t *Token) allowance(owner, spender common.Address) *uint256.Int {
	if v, ok := t.allowances[owner][spender]; ok {
		return v
	}
	return new(uint256.Int)
}

func (t *Token) move(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	bal := balanceOf(t.balances, from)
	if bal.Lt(amount) {
		return fmt.Errorf("%s: %w: %s holds %s, need %s", t.name, ErrInsufficientBalance, from.Hex(), bal.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	setBalance(t.balances, from, new(uint256.Int).Sub(bal, amount))
	t.balances[to] = new(uint256.Int).Add(balanceOf(t.balances, to), amount)
	return nil
}

func balanceOf(m map[common.Address]*uint256.Int, account common.Address) *uint256.Int {
	if v, ok := m[account]; ok {
		return v.Clone()
	}
	return new(uint256.Int)
}

func setBalance(m map[common.Address]*uint256.Int, account common.Address, v *uint256.Int) {
	if v.IsZero() {
		delete(m, account)
		return
	}
	m[account] = v
}
