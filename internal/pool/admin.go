package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// BindShareLedger sets the share ledger the pool mints into. It may be set once.
func (p *Pool) BindShareLedger(ctx context.Context, caller common.Address, ledger ShareLedger) error {
	if err := p.cfg.Authorizer.Authorize(caller); err != nil {
		return err
	}
	if ledger == nil {
		return fmt.Errorf("%w: nil share ledger", ErrInvalidAddress)
	}
	ctx, exit, err := p.enter(ctx)
	if err != nil {
		return err
	}
	defer exit()
	if p.shares != nil {
		return ErrAlreadyConfigured
	}
	next := p.current.Load().clone()
	next.SharesBound = true
	if err := p.commit(ctx, &txn{}, next, nil); err != nil {
		return err
	}
	p.shares = ledger
	p.logger.Info("share ledger bound", zap.String("caller", caller.Hex()))
	return nil
}

// SweepCredits moves amount of the pool's credit holdings to recipient. A zero
// amount sweeps the whole balance.
func (p *Pool) SweepCredits(ctx context.Context, caller, recipient common.Address, amount *uint256.Int) (Event, error) {
	if err := p.cfg.Authorizer.Authorize(caller); err != nil {
		return Event{}, err
	}
	if err := validAddress(recipient); err != nil {
		return Event{}, err
	}
	ctx, exit, err := p.enter(ctx)
	if err != nil {
		return Event{}, err
	}
	defer exit()

	pool := p.cfg.Address
	held, err := p.cfg.Credits.BalanceOf(ctx, pool)
	if err != nil {
		return Event{}, err
	}
	swept := zeroIfNil(amount).Clone()
	if swept.IsZero() {
		swept = held.Clone()
	}
	if swept.IsZero() {
		return Event{}, fmt.Errorf("%w: pool holds no credits", ErrInvalidAmount)
	}
	if swept.Gt(held) {
		return Event{}, fmt.Errorf("%w: pool holds %s credits, sweeping %s", ErrInsufficientLiquidity, held.Dec(), swept.Dec())
	}
	next := p.current.Load().clone()
	ev := p.newEvent(EventSweep, next, recipient)
	ev.Credits = swept
	ev.Fee = new(uint256.Int)

	tx := &txn{}
	if err := tx.do(ctx,
		func(ctx context.Context) error { return p.cfg.Credits.Transfer(ctx, pool, recipient, swept) },
		func(ctx context.Context) error { return p.cfg.Credits.Transfer(ctx, recipient, pool, swept) },
	); err != nil {
		return Event{}, p.fail(ctx, tx, err)
	}
	if err := p.commit(ctx, tx, next, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
