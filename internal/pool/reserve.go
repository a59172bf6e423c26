package pool

import (
	"fmt"

	"github.com/holiman/uint256"
)

func addAmount(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("%w: %s + %s overflows", ErrInvalidAmount, a.Dec(), b.Dec())
	}
	return sum, nil
}

func subAmount(a, b *uint256.Int, insufficient error) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, fmt.Errorf("%w: have %s, need %s", insufficient, a.Dec(), b.Dec())
	}
	return diff, nil
}

// sharesFor returns the shares minted for deposit against the pre-deposit state.
func sharesFor(deposit *uint256.Int, s *State) (*uint256.Int, error) {
	if s.TotalShares.IsZero() {
		return deposit.Clone(), nil
	}
	if s.ReserveBalance.IsZero() {
		return nil, fmt.Errorf("%w: shares outstanding against an empty reserve", ErrInsufficientLiquidity)
	}
	minted, overflow := new(uint256.Int).MulDivOverflow(deposit, s.TotalShares, s.ReserveBalance)
	if overflow {
		return nil, fmt.Errorf("%w: minted shares overflow", ErrInvalidAmount)
	}
	if minted.IsZero() {
		return nil, fmt.Errorf("%w: deposit %s mints no shares", ErrInvalidAmount, deposit.Dec())
	}
	return minted, nil
}

// payoutFor returns the reserve owed for burning shares against s.
func payoutFor(shares *uint256.Int, s *State) *uint256.Int {
	if s.TotalShares.IsZero() {
		return new(uint256.Int)
	}
	// shares <= TotalShares, so the result fits.
	payout, _ := new(uint256.Int).MulDivOverflow(shares, s.ReserveBalance, s.TotalShares)
	return payout
}
