package pool

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
)

// Holdings compares the committed snapshot with what the collaborators hold.
type Holdings struct {
	State State
	// Custody is the reserve currency the bank holds for the pool. It is at
	// least ReserveBalance; buy-side fees sit in the difference.
	Custody     *uint256.Int
	Credits     *uint256.Int
	ShareSupply *uint256.Int
}

// Surplus is custody held above the accounted reserve.
func (h Holdings) Surplus() *uint256.Int {
	if h.Custody.Lt(h.State.ReserveBalance) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(h.Custody, h.State.ReserveBalance)
}

// Check reports the first inconsistency between snapshot and collaborators.
func (h Holdings) Check() error {
	if err := h.State.Validate(); err != nil {
		return err
	}
	if h.Custody.Lt(h.State.ReserveBalance) {
		return fmt.Errorf("custody %s below reserve %s", h.Custody.Dec(), h.State.ReserveBalance.Dec())
	}
	if !h.ShareSupply.Eq(h.State.TotalShares) {
		return fmt.Errorf("share supply %s differs from pool shares %s", h.ShareSupply.Dec(), h.State.TotalShares.Dec())
	}
	return nil
}

// Holdings reads live balances. The snapshot is taken under the operation lock
// so it matches the balances read.
func (p *Pool) Holdings(ctx context.Context) (Holdings, error) {
	ctx, exit, err := p.enter(ctx)
	if err != nil {
		return Holdings{}, err
	}
	defer exit()

	h := Holdings{State: p.current.Load().Copy(), ShareSupply: new(uint256.Int)}
	pool := p.cfg.Address
	if h.Custody, err = p.cfg.Reserve.BalanceOf(ctx, pool); err != nil {
		return Holdings{}, fmt.Errorf("reserve custody: %w", err)
	}
	if h.Credits, err = p.cfg.Credits.BalanceOf(ctx, pool); err != nil {
		return Holdings{}, fmt.Errorf("credit balance: %w", err)
	}
	if p.shares != nil {
		if h.ShareSupply, err = p.shares.TotalSupply(ctx); err != nil {
			return Holdings{}, fmt.Errorf("share supply: %w", err)
		}
	}
	return h, nil
}
