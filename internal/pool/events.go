package pool

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"carbonPool/internal/model"
)

type EventKind string

const (
	EventDeposit  EventKind = "Deposit"
	EventSell     EventKind = "Sell"
	EventBuy      EventKind = "Buy"
	EventWithdraw EventKind = "Withdraw"
	EventSweep    EventKind = "Sweep"
)

// Event is a committed pool transition. Field use per kind:
//
//	Deposit  Actor=provider  Reserve=deposit      Shares=minted
//	Sell     Actor=seller    Credits=sold         Reserve=net paid out
//	Buy      Actor=buyer     Credits=bought       Reserve=gross paid
//	Withdraw Actor=provider  Reserve=payout       Shares=burned
//	Sweep    Actor=recipient Credits=swept
type Event struct {
	Seq       uint64
	Kind      EventKind
	Actor     common.Address
	Credits   *uint256.Int
	Reserve   *uint256.Int
	Shares    *uint256.Int
	Fee       *uint256.Int
	Timestamp time.Time
}

// Payload returns the event amounts in their published order.
func (e Event) Payload() []*uint256.Int {
	switch e.Kind {
	case EventDeposit:
		return []*uint256.Int{e.Reserve, e.Shares}
	case EventSell, EventBuy:
		return []*uint256.Int{e.Credits, e.Reserve}
	case EventWithdraw:
		return []*uint256.Int{e.Reserve, e.Shares}
	case EventSweep:
		return []*uint256.Int{e.Credits}
	default:
		return nil
	}
}

// Record converts the event to its string-encoded model form.
func (e Event) Record() model.PoolEvent {
	return model.PoolEvent{
		Seq:       e.Seq,
		Kind:      string(e.Kind),
		Actor:     e.Actor.Hex(),
		Credits:   decOrZero(e.Credits),
		Reserve:   decOrZero(e.Reserve),
		Shares:    decOrZero(e.Shares),
		Fee:       decOrZero(e.Fee),
		Timestamp: e.Timestamp.UTC(),
	}
}

// EventFromRecord parses a model event back into pool form.
func EventFromRecord(r model.PoolEvent) (Event, error) {
	ev := Event{
		Seq:       r.Seq,
		Kind:      EventKind(r.Kind),
		Actor:     common.HexToAddress(r.Actor),
		Timestamp: r.Timestamp,
	}
	var err error
	if ev.Credits, err = parseAmount(r.Credits); err != nil {
		return Event{}, err
	}
	if ev.Reserve, err = parseAmount(r.Reserve); err != nil {
		return Event{}, err
	}
	if ev.Shares, err = parseAmount(r.Shares); err != nil {
		return Event{}, err
	}
	if ev.Fee, err = parseAmount(r.Fee); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func decOrZero(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func zeroIfNil(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
