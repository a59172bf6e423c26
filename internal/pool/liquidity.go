package pool

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AddLiquidity pulls deposit from provider into the reserve and mints shares.
// The first deposit into an empty pool mints 1:1; later deposits mint
// deposit * totalShares / reserveBalance, rounded down.
func (p *Pool) AddLiquidity(ctx context.Context, provider common.Address, deposit *uint256.Int) (Event, error) {
	if err := positive(deposit, "deposit"); err != nil {
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
		return Event{}, ErrPrerequisiteMissing
	}

	cur := p.current.Load()
	minted, err := sharesFor(deposit, cur)
	if err != nil {
		return Event{}, err
	}
	next := cur.clone()
	if next.ReserveBalance, err = addAmount(cur.ReserveBalance, deposit); err != nil {
		return Event{}, err
	}
	if next.TotalShares, err = addAmount(cur.TotalShares, minted); err != nil {
		return Event{}, err
	}
	ev := p.newEvent(EventDeposit, next, provider)
	ev.Reserve = deposit.Clone()
	ev.Shares = minted
	ev.Fee = new(uint256.Int)

	pool := p.cfg.Address
	tx := &txn{}
	if err := tx.do(ctx,
		func(ctx context.Context) error { return p.cfg.Reserve.Transfer(ctx, provider, pool, deposit) },
		func(ctx context.Context) error { return p.cfg.Reserve.Transfer(ctx, pool, provider, deposit) },
	); err != nil {
		return Event{}, p.fail(ctx, tx, err)
	}
	if err := tx.do(ctx,
		func(ctx context.Context) error { return p.shares.Mint(ctx, pool, provider, minted) },
		func(ctx context.Context) error { return p.shares.Burn(ctx, pool, provider, minted) },
	); err != nil {
		return Event{}, p.fail(ctx, tx, err)
	}
	if err := p.commit(ctx, tx, next, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
