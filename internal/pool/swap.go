package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SellCredits takes creditAmount from seller (via allowance) and pays the net
// reserve value. The fee stays in the reserve.
func (p *Pool) SellCredits(ctx context.Context, seller common.Address, creditAmount *uint256.Int) (Event, error) {
	q, err := p.Quote(creditAmount)
	if err != nil {
		return Event{}, err
	}
	if err := validAddress(seller); err != nil {
		return Event{}, err
	}
	ctx, exit, err := p.enter(ctx)
	if err != nil {
		return Event{}, err
	}
	defer exit()

	cur := p.current.Load()
	if q.Net.Gt(cur.ReserveBalance) {
		return Event{}, fmt.Errorf("%w: net %s exceeds reserve %s", ErrInsufficientLiquidity, q.Net.Dec(), cur.ReserveBalance.Dec())
	}
	// Keeps totalShares == 0 <=> reserveBalance == 0: selling the whole
	// reserve would leave outstanding shares backed by nothing.
	if q.Net.Eq(cur.ReserveBalance) {
		return Event{}, fmt.Errorf("%w: net %s would drain the reserve", ErrInsufficientLiquidity, q.Net.Dec())
	}
	next := cur.clone()
	next.ReserveBalance = new(uint256.Int).Sub(cur.ReserveBalance, q.Net)
	if next.AccumulatedFees, err = addAmount(cur.AccumulatedFees, q.Fee); err != nil {
		return Event{}, err
	}
	ev := p.newEvent(EventSell, next, seller)
	ev.Credits = q.Credits
	ev.Reserve = q.Net
	ev.Fee = q.Fee

	pool := p.cfg.Address
	tx := &txn{}
	if err := tx.do(ctx,
		func(ctx context.Context) error { return p.cfg.Credits.TransferFrom(ctx, pool, seller, pool, q.Credits) },
		func(ctx context.Context) error { return p.cfg.Credits.Transfer(ctx, pool, seller, q.Credits) },
	); err != nil {
		return Event{}, p.fail(ctx, tx, err)
	}
	if err := tx.do(ctx,
		func(ctx context.Context) error { return p.cfg.Reserve.Transfer(ctx, pool, seller, q.Net) },
		func(ctx context.Context) error { return p.cfg.Reserve.Transfer(ctx, seller, pool, q.Net) },
	); err != nil {
		return Event{}, p.fail(ctx, tx, err)
	}
	if err := p.commit(ctx, tx, next, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// BuyCredits sells creditAmount of the pool's credits to buyer, who attaches
// paidReserve. Anything above the gross price is refunded.
func (p *Pool) BuyCredits(ctx context.Context, buyer common.Address, creditAmount, paidReserve *uint256.Int) (Event, error) {
	q, err := p.Quote(creditAmount)
	if err != nil {
		return Event{}, err
	}
	if err := validAddress(buyer); err != nil {
		return Event{}, err
	}
	paid := zeroIfNil(paidReserve).Clone()
	if paid.Lt(q.Gross) {
		return Event{}, fmt.Errorf("%w: paid %s, gross %s", ErrInsufficientPayment, paid.Dec(), q.Gross.Dec())
	}
	ctx, exit, err := p.enter(ctx)
	if err != nil {
		return Event{}, err
	}
	defer exit()

	cur := p.current.Load()
	if cur.TotalShares.IsZero() {
		return Event{}, fmt.Errorf("%w: pool has no liquidity providers", ErrInsufficientLiquidity)
	}
	pool := p.cfg.Address
	held, err := p.cfg.Credits.BalanceOf(ctx, pool)
	if err != nil {
		return Event{}, err
	}
	if q.Credits.Gt(held) {
		return Event{}, fmt.Errorf("%w: pool holds %s credits, requested %s", ErrInsufficientLiquidity, held.Dec(), q.Credits.Dec())
	}
	next := cur.clone()
	if next.ReserveBalance, err = addAmount(cur.ReserveBalance, q.Net); err != nil {
		return Event{}, err
	}
	if next.AccumulatedFees, err = addAmount(cur.AccumulatedFees, q.Fee); err != nil {
		return Event{}, err
	}
	ev := p.newEvent(EventBuy, next, buyer)
	ev.Credits = q.Credits
	ev.Reserve = q.Gross
	ev.Fee = q.Fee

	// retained tracks what the pool still owes back if a later step fails.
	retained := paid
	tx := &txn{}
	if err := tx.do(ctx,
		func(ctx context.Context) error { return p.cfg.Reserve.Transfer(ctx, buyer, pool, paid) },
		func(ctx context.Context) error { return p.cfg.Reserve.Transfer(ctx, pool, buyer, retained) },
	); err != nil {
		return Event{}, p.fail(ctx, tx, err)
	}
	if excess := new(uint256.Int).Sub(paid, q.Gross); !excess.IsZero() {
		if err := p.cfg.Reserve.Transfer(ctx, pool, buyer, excess); err != nil {
			return Event{}, p.fail(ctx, tx, fmt.Errorf("refund %s: %w", excess.Dec(), err))
		}
		retained = q.Gross
	}
	if err := tx.do(ctx,
		func(ctx context.Context) error { return p.cfg.Credits.Transfer(ctx, pool, buyer, q.Credits) },
		func(ctx context.Context) error { return p.cfg.Credits.Transfer(ctx, buyer, pool, q.Credits) },
	); err != nil {
		return Event{}, p.fail(ctx, tx, err)
	}
	if err := p.commit(ctx, tx, next, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
