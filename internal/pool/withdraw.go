package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// WithdrawLiquidity burns shareAmount of provider's shares and pays the
// proportional slice of the current reserve, accrued fees included.
func (p *Pool) WithdrawLiquidity(ctx context.Context, provider common.Address, shareAmount *uint256.Int) (Event, error) {
	if err := positive(shareAmount, "share amount"); err != nil {
		return Event{}, err
	}
	if err := validAddress(provider); err != nil {
		return Event{}, err
	}
	ctx, exit, err := p.enter(ctx)
	if err != nil {
		return Event{}, err
	}
	defer exit()
	if p.shares == nil {
		return Event{}, fmt.Errorf("%w: no shares issued", ErrInsufficientShares)
	}

	owned, err := p.shares.BalanceOf(ctx, provider)
	if err != nil {
		return Event{}, err
	}
	if owned.Lt(shareAmount) {
		return Event{}, fmt.Errorf("%w: holds %s, burning %s", ErrInsufficientShares, owned.Dec(), shareAmount.Dec())
	}
	cur := p.current.Load()
	if cur.TotalShares.Lt(shareAmount) {
		return Event{}, fmt.Errorf("%w: supply %s, burning %s", ErrInsufficientShares, cur.TotalShares.Dec(), shareAmount.Dec())
	}
	payout := payoutFor(shareAmount, cur)
	pool := p.cfg.Address
	custody, err := p.cfg.Reserve.BalanceOf(ctx, pool)
	if err != nil {
		return Event{}, err
	}
	if payout.Gt(custody) {
		return Event{}, fmt.Errorf("%w: payout %s, held %s", ErrInsufficientPoolBalance, payout.Dec(), custody.Dec())
	}

	next := cur.clone()
	next.ReserveBalance = new(uint256.Int).Sub(cur.ReserveBalance, payout)
	next.TotalShares = new(uint256.Int).Sub(cur.TotalShares, shareAmount)
	ev := p.newEvent(EventWithdraw, next, provider)
	ev.Reserve = payout
	ev.Shares = shareAmount.Clone()
	ev.Fee = new(uint256.Int)

	tx := &txn{}
	if err := tx.do(ctx,
		func(ctx context.Context) error { return p.shares.Burn(ctx, pool, provider, shareAmount) },
		func(ctx context.Context) error { return p.shares.Mint(ctx, pool, provider, shareAmount) },
	); err != nil {
		return Event{}, p.fail(ctx, tx, err)
	}
	if !payout.IsZero() {
		if err := tx.do(ctx,
			func(ctx context.Context) error { return p.cfg.Reserve.Transfer(ctx, pool, provider, payout) },
			func(ctx context.Context) error { return p.cfg.Reserve.Transfer(ctx, provider, pool, payout) },
		); err != nil {
			return Event{}, p.fail(ctx, tx, err)
		}
	}
	if err := p.commit(ctx, tx, next, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
