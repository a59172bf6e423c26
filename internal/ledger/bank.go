package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Bank custodies the reserve currency as native account balances.
type Bank struct {
	logger *zap.Logger

	mu       sync.RWMutex
	issued   *uint256.Int
	balances map[common.Address]*uint256.Int
}

func NewBank(logger *zap.Logger) *Bank {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bank{
		logger:   logger.With(zap.String("ledger", "bank")),
		issued:   new(uint256.Int),
		balances: make(map[common.Address]*uint256.Int),
	}
}

// Fund credits newly issued currency to an account.
func (b *Bank) Fund(to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	issued, overflow := new(uint256.Int).AddOverflow(b.issued, amount)
	if overflow {
		return fmt.Errorf("bank: %w: issuance", ErrOverflow)
	}
	b.issued = issued
	b.balances[to] = new(uint256.Int).Add(balanceOf(b.balances, to), amount)
	b.logger.Info("funded", zap.String("to", to.Hex()), zap.String("amount", amount.Dec()))
	return nil
}

func (b *Bank) BalanceOf(_ context.Context, account common.Address) (*uint256.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return balanceOf(b.balances, account), nil
}

// Issued is the total currency ever funded.
func (b *Bank) Issued() *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.issued.Clone()
}

func (b *Bank) Transfer(_ context.Context, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := balanceOf(b.balances, from)
	if bal.Lt(amount) {
		return fmt.Errorf("bank: %w: %s holds %s, need %s", ErrInsufficientBalance, from.Hex(), bal.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	setBalance(b.balances, from, new(uint256.Int).Sub(bal, amount))
	b.balances[to] = new(uint256.Int).Add(balanceOf(b.balances, to), amount)
	return nil
}
