package aggregate

import (
	"fmt"
	"math/big"

	"carbonPool/internal/pool"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	ChainID       uint64
	PoolAddress   string
	WindowStart   uint64
	WindowEnd     uint64
	TradeCount    uint64
	BuyCount      uint64
	SellCount     uint64
	CreditVolume  *big.Int
	ReserveVolume *big.Int
	Fees          *big.Int
	Deposits      *big.Int
	Withdrawals   *big.Int
	FirstSeq      uint64
	LastSeq       uint64
	LastTS        uint64
}

func NewAccumulator(chainID uint64, poolAddress string, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		ChainID:       chainID,
		PoolAddress:   poolAddress,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		CreditVolume:  big.NewInt(0),
		ReserveVolume: big.NewInt(0),
		Fees:          big.NewInt(0),
		Deposits:      big.NewInt(0),
		Withdrawals:   big.NewInt(0),
	}
}

func (a *Accumulator) AddEvent(ev pool.Event) error {
	ts := uint64(ev.Timestamp.Unix())
	if ts >= a.LastTS {
		a.LastTS = ts
	}
	if a.FirstSeq == 0 || ev.Seq < a.FirstSeq {
		a.FirstSeq = ev.Seq
	}
	if ev.Seq > a.LastSeq {
		a.LastSeq = ev.Seq
	}

	switch ev.Kind {
	case pool.EventSell:
		a.SellCount++
		a.addTrade(ev)
	case pool.EventBuy:
		a.BuyCount++
		a.addTrade(ev)
	case pool.EventDeposit:
		a.Deposits.Add(a.Deposits, toBig(ev.Reserve))
	case pool.EventWithdraw:
		a.Withdrawals.Add(a.Withdrawals, toBig(ev.Reserve))
	case pool.EventSweep:
	default:
		return fmt.Errorf("unsupported event kind: %s", ev.Kind)
	}
	return nil
}

func (a *Accumulator) addTrade(ev pool.Event) {
	a.TradeCount++
	a.CreditVolume.Add(a.CreditVolume, toBig(ev.Credits))
	a.ReserveVolume.Add(a.ReserveVolume, toBig(ev.Reserve))
	a.Fees.Add(a.Fees, toBig(ev.Fee))
}

// reserveDelta is the change an event makes to the pool's accounted reserve.
func reserveDelta(ev pool.Event) *big.Int {
	switch ev.Kind {
	case pool.EventDeposit:
		return toBig(ev.Reserve)
	case pool.EventSell, pool.EventWithdraw:
		return new(big.Int).Neg(toBig(ev.Reserve))
	case pool.EventBuy:
		return new(big.Int).Sub(toBig(ev.Reserve), toBig(ev.Fee))
	default:
		return big.NewInt(0)
	}
}
