package pool

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"carbonPool/internal/ledger"
)

var (
	owner    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	issuer   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	poolAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000000b3")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

type fixture struct {
	pool    *Pool
	credits *ledger.Token
	shares  *ledger.Token
	bank    *ledger.Bank
}

type fixtureOpts struct {
	rate, feeNum, feeDen uint64
	credits              CreditLedger
	reserve              ReserveBank
	journal              Journal
	unbound              bool
	wait                 time.Duration
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	if opts.rate == 0 {
		opts.rate = 1
	}
	if opts.feeDen == 0 {
		opts.feeNum, opts.feeDen = 50, 10000
	}
	f := &fixture{
		credits: ledger.NewToken("credits", nil),
		shares:  ledger.NewToken("shares", nil),
		bank:    ledger.NewBank(nil),
	}
	require.NoError(t, f.credits.SetMinter(issuer))
	require.NoError(t, f.shares.SetMinter(poolAddr))

	cfg := Config{
		Address:      poolAddr,
		Owner:        owner,
		ExchangeRate: u(opts.rate),
		Fee:          FeeSchedule{Numerator: u(opts.feeNum), Denominator: u(opts.feeDen)},
		Credits:      f.credits,
		Reserve:      f.bank,
		Journal:      opts.journal,

		OperationWait: opts.wait,
	}
	if opts.credits != nil {
		cfg.Credits = opts.credits
	}
	if opts.reserve != nil {
		cfg.Reserve = opts.reserve
	}
	p, err := New(cfg, nil)
	require.NoError(t, err)
	if !opts.unbound {
		require.NoError(t, p.BindShareLedger(context.Background(), owner, f.shares))
	}
	f.pool = p
	return f
}

func (f *fixture) fund(t *testing.T, who common.Address, amount uint64) {
	t.Helper()
	require.NoError(t, f.bank.Fund(who, u(amount)))
}

// giveCredits issues credits to who and approves the pool to pull them.
func (f *fixture) giveCredits(t *testing.T, who common.Address, amount uint64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.credits.Mint(ctx, issuer, who, u(amount)))
	require.NoError(t, f.credits.Approve(ctx, who, poolAddr, u(amount)))
}

func (f *fixture) deposit(t *testing.T, who common.Address, amount uint64) Event {
	t.Helper()
	f.fund(t, who, amount)
	ev, err := f.pool.AddLiquidity(context.Background(), who, u(amount))
	require.NoError(t, err)
	return ev
}

func (f *fixture) cash(t *testing.T, who common.Address) string {
	t.Helper()
	v, err := f.bank.BalanceOf(context.Background(), who)
	require.NoError(t, err)
	return v.Dec()
}

func (f *fixture) sharesOf(t *testing.T, who common.Address) string {
	t.Helper()
	v, err := f.shares.BalanceOf(context.Background(), who)
	require.NoError(t, err)
	return v.Dec()
}

func (f *fixture) creditsOf(t *testing.T, who common.Address) string {
	t.Helper()
	v, err := f.credits.BalanceOf(context.Background(), who)
	require.NoError(t, err)
	return v.Dec()
}

func requireState(t *testing.T, p *Pool, reserve, shares, fees string) {
	t.Helper()
	st := p.State()
	require.Equal(t, reserve, st.ReserveBalance.Dec(), "reserve")
	require.Equal(t, shares, st.TotalShares.Dec(), "shares")
	require.Equal(t, fees, st.AccumulatedFees.Dec(), "fees")
}

func TestNewValidatesConfig(t *testing.T) {
	bank := ledger.NewBank(nil)
	credits := ledger.NewToken("credits", nil)
	base := Config{
		Address:      poolAddr,
		Owner:        owner,
		ExchangeRate: u(1),
		Fee:          FeeSchedule{Numerator: u(50), Denominator: u(10000)},
		Credits:      credits,
		Reserve:      bank,
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero rate", func(c *Config) { c.ExchangeRate = u(0) }, ErrInvalidAmount},
		{"zero denominator", func(c *Config) { c.Fee.Denominator = u(0) }, ErrInvalidAmount},
		{"fee of one hundred percent", func(c *Config) { c.Fee.Numerator = u(10000) }, ErrInvalidAmount},
		{"zero pool address", func(c *Config) { c.Address = common.Address{} }, ErrInvalidAddress},
		{"zero owner", func(c *Config) { c.Owner = common.Address{} }, ErrInvalidAddress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			_, err := New(cfg, nil)
			require.ErrorIs(t, err, tc.want)
		})
	}

	p, err := New(base, nil)
	require.NoError(t, err)
	require.Equal(t, StatusEmpty, p.State().Status())
}

func TestBindShareLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{unbound: true})

	_, err := f.pool.AddLiquidity(ctx, alice, u(10))
	require.ErrorIs(t, err, ErrPrerequisiteMissing)

	require.ErrorIs(t, f.pool.BindShareLedger(ctx, alice, f.shares), ErrNotOwner)
	require.ErrorIs(t, f.pool.BindShareLedger(ctx, owner, nil), ErrInvalidAddress)
	require.NoError(t, f.pool.BindShareLedger(ctx, owner, f.shares))
	require.ErrorIs(t, f.pool.BindShareLedger(ctx, owner, ledger.NewToken("other", nil)), ErrAlreadyConfigured)
	require.True(t, f.pool.State().SharesBound)
}

func TestBootstrapThenProportionalDeposit(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	ev := f.deposit(t, alice, 100)
	require.Equal(t, EventDeposit, ev.Kind)
	require.Equal(t, "100", ev.Shares.Dec())
	require.Equal(t, StatusActive, f.pool.State().Status())

	ev = f.deposit(t, bob, 50)
	require.Equal(t, "50", ev.Shares.Dec())
	requireState(t, f.pool, "150", "150", "0")
	require.Equal(t, "100", f.sharesOf(t, alice))
	require.Equal(t, "50", f.sharesOf(t, bob))
	require.Equal(t, "150", f.cash(t, poolAddr))
	require.Equal(t, uint64(2), ev.Seq)
}

func TestAddLiquidityValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})

	_, err := f.pool.AddLiquidity(ctx, alice, u(0))
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.pool.AddLiquidity(ctx, alice, nil)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.pool.AddLiquidity(ctx, common.Address{}, u(1))
	require.ErrorIs(t, err, ErrInvalidAddress)

	// Unfunded provider: bank error propagates and nothing changes.
	_, err = f.pool.AddLiquidity(ctx, alice, u(10))
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	requireState(t, f.pool, "0", "0", "0")
	require.Equal(t, uint64(0), f.pool.State().Sequence)
}

func TestDepositMintingZeroSharesRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{rate: 1, feeNum: 0, feeDen: 1})
	f.deposit(t, alice, 1)

	// A fee-free buy pushes the reserve far above the share supply.
	require.NoError(t, f.credits.Mint(ctx, issuer, poolAddr, u(500)))
	f.fund(t, carol, 500)
	_, err := f.pool.BuyCredits(ctx, carol, u(500), u(500))
	require.NoError(t, err)
	requireState(t, f.pool, "501", "1", "0")

	f.fund(t, bob, 100)
	_, err = f.pool.AddLiquidity(ctx, bob, u(100))
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.Equal(t, "100", f.cash(t, bob))
	requireState(t, f.pool, "501", "1", "0")
}

func TestNoLossRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	f.deposit(t, alice, 1000)
	f.deposit(t, bob, 777)

	_, err := f.pool.WithdrawLiquidity(ctx, bob, u(777))
	require.NoError(t, err)
	require.Equal(t, "777", f.cash(t, bob))
	require.Equal(t, "0", f.sharesOf(t, bob))
	requireState(t, f.pool, "1000", "1000", "0")
}

func TestRestore(t *testing.T) {
	f := newFixture(t, fixtureOpts{unbound: true})
	st := State{
		ReserveBalance:  u(500),
		TotalShares:     u(400),
		AccumulatedFees: u(12),
		Sequence:        9,
		SharesBound:     true,
	}
	require.ErrorIs(t, f.pool.Restore(st, nil), ErrPrerequisiteMissing)
	require.NoError(t, f.pool.Restore(st, f.shares))
	requireState(t, f.pool, "500", "400", "12")
	require.Equal(t, uint64(9), f.pool.State().Sequence)
	require.ErrorIs(t, f.pool.Restore(st, f.shares), ErrAlreadyConfigured)

	bad := st.Copy()
	bad.ReserveBalance = u(0)
	other := newFixture(t, fixtureOpts{unbound: true})
	require.Error(t, other.pool.Restore(bad, other.shares))
}

func TestStateRecordRoundTrip(t *testing.T) {
	st := State{
		ReserveBalance:  new(uint256.Int).SetAllOne(),
		TotalShares:     u(3),
		AccumulatedFees: u(0),
		Sequence:        4,
		SharesBound:     true,
	}
	rec := st.Record()
	require.Equal(t, "active", rec.Status)
	back, err := StateFromRecord(rec)
	require.NoError(t, err)
	require.True(t, back.ReserveBalance.Eq(st.ReserveBalance))
	require.Equal(t, st.Sequence, back.Sequence)
}
