package pool

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"carbonPool/internal/ledger"
)

func TestSellAtHalfPercentFeeRoundsFeeToZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{rate: 1, feeNum: 50, feeDen: 10000})
	f.deposit(t, alice, 100)
	f.giveCredits(t, bob, 50)

	ev, err := f.pool.SellCredits(ctx, bob, u(50))
	require.NoError(t, err)
	require.Equal(t, EventSell, ev.Kind)
	require.Equal(t, "50", ev.Credits.Dec())
	require.Equal(t, "50", ev.Reserve.Dec())
	require.Equal(t, "0", ev.Fee.Dec())

	requireState(t, f.pool, "50", "100", "0")
	require.Equal(t, "50", f.cash(t, bob))
	require.Equal(t, "0", f.creditsOf(t, bob))
	require.Equal(t, "50", f.creditsOf(t, poolAddr))
}

func TestSellKeepsFeeInReserve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{rate: 3, feeNum: 1, feeDen: 10})
	f.deposit(t, alice, 1000)
	f.giveCredits(t, bob, 100)

	// gross 300, fee 30, net 270
	ev, err := f.pool.SellCredits(ctx, bob, u(100))
	require.NoError(t, err)
	require.Equal(t, "270", ev.Reserve.Dec())
	require.Equal(t, "30", ev.Fee.Dec())
	requireState(t, f.pool, "730", "1000", "30")

	// The sole provider's claim includes the retained fee.
	_, err = f.pool.WithdrawLiquidity(ctx, alice, u(1000))
	require.NoError(t, err)
	require.Equal(t, "730", f.cash(t, alice))
	requireState(t, f.pool, "0", "0", "30")
}

func TestSellRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	f.deposit(t, alice, 100)

	_, err := f.pool.SellCredits(ctx, bob, u(0))
	require.ErrorIs(t, err, ErrInvalidAmount)

	max := new(uint256.Int).SetAllOne()
	wide := newFixture(t, fixtureOpts{rate: 2})
	_, err = wide.pool.SellCredits(ctx, bob, max)
	require.ErrorIs(t, err, ErrInvalidAmount)

	f.giveCredits(t, bob, 500)
	_, err = f.pool.SellCredits(ctx, bob, u(500))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
	_, err = f.pool.SellCredits(ctx, bob, u(100))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	// No allowance: the credit ledger's own error comes back.
	require.NoError(t, f.credits.Mint(ctx, issuer, carol, u(10)))
	_, err = f.pool.SellCredits(ctx, carol, u(10))
	require.ErrorIs(t, err, ledger.ErrInsufficientAllowance)

	requireState(t, f.pool, "100", "100", "0")
	require.Equal(t, "500", f.creditsOf(t, bob))
	require.Equal(t, "10", f.creditsOf(t, carol))
	require.Equal(t, uint64(1), f.pool.State().Sequence)
}

func TestBuyRefundsOverpayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{rate: 1, feeNum: 1000, feeDen: 10000})
	f.deposit(t, alice, 100)
	require.NoError(t, f.credits.Mint(ctx, issuer, poolAddr, u(40)))
	f.fund(t, carol, 15)

	// gross 10, fee 1, net 9
	ev, err := f.pool.BuyCredits(ctx, carol, u(10), u(15))
	require.NoError(t, err)
	require.Equal(t, EventBuy, ev.Kind)
	require.Equal(t, "10", ev.Reserve.Dec())
	require.Equal(t, "1", ev.Fee.Dec())

	require.Equal(t, "5", f.cash(t, carol))
	require.Equal(t, "10", f.creditsOf(t, carol))
	require.Equal(t, "30", f.creditsOf(t, poolAddr))
	requireState(t, f.pool, "109", "100", "1")

	h, err := f.pool.Holdings(ctx)
	require.NoError(t, err)
	require.NoError(t, h.Check())
	require.Equal(t, "110", h.Custody.Dec())
	require.Equal(t, "1", h.Surplus().Dec())
}

func TestBuyRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{rate: 2})

	_, err := f.pool.BuyCredits(ctx, carol, u(0), u(10))
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.pool.BuyCredits(ctx, carol, u(5), u(9))
	require.ErrorIs(t, err, ErrInsufficientPayment)
	_, err = f.pool.BuyCredits(ctx, carol, u(5), nil)
	require.ErrorIs(t, err, ErrInsufficientPayment)

	// Credits held by an empty pool cannot be bought before anyone provides liquidity.
	require.NoError(t, f.credits.Mint(ctx, issuer, poolAddr, u(5)))
	f.fund(t, carol, 10)
	_, err = f.pool.BuyCredits(ctx, carol, u(5), u(10))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	f.deposit(t, alice, 100)
	_, err = f.pool.BuyCredits(ctx, carol, u(6), u(12))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	// Buyer cannot cover the attached payment.
	_, err = f.pool.BuyCredits(ctx, carol, u(5), u(11))
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	requireState(t, f.pool, "100", "100", "0")
	require.Equal(t, "10", f.cash(t, carol))
	require.Equal(t, "5", f.creditsOf(t, poolAddr))
}

func TestQuote(t *testing.T) {
	f := newFixture(t, fixtureOpts{rate: 7, feeNum: 3, feeDen: 100})
	q, err := f.pool.Quote(u(10))
	require.NoError(t, err)
	require.Equal(t, "70", q.Gross.Dec())
	require.Equal(t, "2", q.Fee.Dec())
	require.Equal(t, "68", q.Net.Dec())

	_, err = f.pool.Quote(u(0))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFeeUsesWideIntermediate(t *testing.T) {
	fs := FeeSchedule{Numerator: u(9999), Denominator: u(10000)}
	max := new(uint256.Int).SetAllOne()
	fee := fs.Fee(max)
	require.True(t, fee.Lt(max))
	// floor((2^256-1) * 9999 / 10000)
	want, overflow := new(uint256.Int).MulDivOverflow(max, u(9999), u(10000))
	require.False(t, overflow)
	require.True(t, fee.Eq(want))
}
