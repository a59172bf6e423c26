package replay

import (
	"fmt"

	"github.com/holiman/uint256"

	"carbonPool/internal/pool"
)

// fold re-derives pool accounting from events alone.
type fold struct {
	pricing    *Pricing
	reserve    *uint256.Int
	shares     *uint256.Int
	fees       *uint256.Int
	seq        uint64
	violations []Violation
}

func newFold(pricing *Pricing) *fold {
	return &fold{
		pricing: pricing,
		reserve: new(uint256.Int),
		shares:  new(uint256.Int),
		fees:    new(uint256.Int),
	}
}

func (f *fold) resume(cp Checkpoint) error {
	st, err := pool.StateFromRecord(cp.State)
	if err != nil {
		return err
	}
	f.reserve = st.ReserveBalance
	f.shares = st.TotalShares
	f.fees = st.AccumulatedFees
	f.seq = cp.LastVerifiedSeq
	return nil
}

func (f *fold) state() pool.State {
	return pool.State{
		ReserveBalance:  f.reserve.Clone(),
		TotalShares:     f.shares.Clone(),
		AccumulatedFees: f.fees.Clone(),
		Sequence:        f.seq,
	}
}

func (f *fold) violate(seq uint64, kind, format string, args ...interface{}) {
	f.violations = append(f.violations, Violation{Seq: seq, Kind: kind, Detail: fmt.Sprintf(format, args...)})
}

func (f *fold) apply(ev pool.Event) {
	if ev.Seq != f.seq+1 {
		f.violate(ev.Seq, "sequence", "expected %d", f.seq+1)
	}
	f.seq = ev.Seq

	credits, reserve, shares, fee := amount(ev.Credits), amount(ev.Reserve), amount(ev.Shares), amount(ev.Fee)

	switch ev.Kind {
	case pool.EventDeposit:
		f.checkMinted(ev.Seq, reserve, shares)
		f.reserve = f.add(ev.Seq, f.reserve, reserve)
		f.shares = f.add(ev.Seq, f.shares, shares)
	case pool.EventWithdraw:
		f.checkPayout(ev.Seq, reserve, shares)
		f.reserve = f.sub(ev.Seq, f.reserve, reserve)
		f.shares = f.sub(ev.Seq, f.shares, shares)
	case pool.EventSell:
		f.checkPrice(ev.Seq, credits, new(uint256.Int).Add(reserve, fee), fee)
		f.reserve = f.sub(ev.Seq, f.reserve, reserve)
		f.fees = f.add(ev.Seq, f.fees, fee)
	case pool.EventBuy:
		f.checkPrice(ev.Seq, credits, reserve, fee)
		if fee.Gt(reserve) {
			f.violate(ev.Seq, "fee", "fee %s exceeds gross %s", fee.Dec(), reserve.Dec())
			break
		}
		f.reserve = f.add(ev.Seq, f.reserve, new(uint256.Int).Sub(reserve, fee))
		f.fees = f.add(ev.Seq, f.fees, fee)
	case pool.EventSweep:
	default:
		f.violate(ev.Seq, "kind", "unknown event kind %q", ev.Kind)
	}

	if f.shares.IsZero() != f.reserve.IsZero() {
		f.violate(ev.Seq, "empty", "shares %s against reserve %s", f.shares.Dec(), f.reserve.Dec())
	}
}

func (f *fold) checkMinted(seq uint64, deposit, minted *uint256.Int) {
	want := deposit.Clone()
	if !f.shares.IsZero() {
		if f.reserve.IsZero() {
			return
		}
		want, _ = new(uint256.Int).MulDivOverflow(deposit, f.shares, f.reserve)
	}
	if !want.Eq(minted) {
		f.violate(seq, "proportionality", "deposit %s minted %s, expected %s", deposit.Dec(), minted.Dec(), want.Dec())
	}
}

func (f *fold) checkPayout(seq uint64, payout, burned *uint256.Int) {
	if f.shares.IsZero() || burned.Gt(f.shares) {
		return
	}
	want, _ := new(uint256.Int).MulDivOverflow(burned, f.reserve, f.shares)
	if !want.Eq(payout) {
		f.violate(seq, "proportionality", "burn %s paid %s, expected %s", burned.Dec(), payout.Dec(), want.Dec())
	}
}

func (f *fold) checkPrice(seq uint64, credits, gross, fee *uint256.Int) {
	if f.pricing == nil {
		return
	}
	want, overflow := new(uint256.Int).MulOverflow(credits, f.pricing.ExchangeRate)
	if overflow || !want.Eq(gross) {
		f.violate(seq, "price", "%s credits priced %s, expected %s", credits.Dec(), gross.Dec(), want.Dec())
		return
	}
	if wantFee := f.pricing.Fee.Fee(gross); !wantFee.Eq(fee) {
		f.violate(seq, "fee", "fee %s on gross %s, expected %s", fee.Dec(), gross.Dec(), wantFee.Dec())
	}
}

func (f *fold) add(seq uint64, a, b *uint256.Int) *uint256.Int {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		f.violate(seq, "overflow", "%s + %s", a.Dec(), b.Dec())
		return a
	}
	return sum
}

func (f *fold) sub(seq uint64, a, b *uint256.Int) *uint256.Int {
	diff, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		f.violate(seq, "conservation", "%s exceeds balance %s", b.Dec(), a.Dec())
		return new(uint256.Int)
	}
	return diff
}

func amount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
