package pool

import (
	"fmt"

	"github.com/holiman/uint256"
)

// FeeSchedule is a fixed fractional fee, floor(amount * Numerator / Denominator).
type FeeSchedule struct {
	Numerator   *uint256.Int
	Denominator *uint256.Int
}

func (f FeeSchedule) validate() error {
	if f.Denominator == nil || f.Denominator.IsZero() {
		return fmt.Errorf("fee denominator must be positive")
	}
	if f.Numerator == nil {
		return fmt.Errorf("fee numerator is required")
	}
	if !f.Numerator.Lt(f.Denominator) {
		return fmt.Errorf("fee numerator %s must be below denominator %s", f.Numerator.Dec(), f.Denominator.Dec())
	}
	return nil
}

// Fee returns floor(amount * Numerator / Denominator). The product is computed
// in 512 bits and the result is never larger than amount.
func (f FeeSchedule) Fee(amount *uint256.Int) *uint256.Int {
	fee, _ := new(uint256.Int).MulDivOverflow(amount, f.Numerator, f.Denominator)
	return fee
}

// Quote is the price of a trade of Credits units at the fixed rate.
type Quote struct {
	Credits *uint256.Int
	Gross   *uint256.Int
	Fee     *uint256.Int
	Net     *uint256.Int
}

// Quote prices creditAmount without touching pool state.
func (p *Pool) Quote(creditAmount *uint256.Int) (Quote, error) {
	if creditAmount == nil || creditAmount.IsZero() {
		return Quote{}, fmt.Errorf("%w: credit amount must be positive", ErrInvalidAmount)
	}
	gross, overflow := new(uint256.Int).MulOverflow(creditAmount, p.cfg.ExchangeRate)
	if overflow {
		return Quote{}, fmt.Errorf("%w: %s credits at rate %s overflows", ErrInvalidAmount, creditAmount.Dec(), p.cfg.ExchangeRate.Dec())
	}
	fee := p.cfg.Fee.Fee(gross)
	return Quote{
		Credits: creditAmount.Clone(),
		Gross:   gross,
		Fee:     fee,
		Net:     new(uint256.Int).Sub(gross, fee),
	}, nil
}
