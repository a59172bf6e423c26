package pool

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestSweepCredits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	f.deposit(t, alice, 1000)
	f.giveCredits(t, bob, 100)
	_, err := f.pool.SellCredits(ctx, bob, u(100))
	require.NoError(t, err)

	_, err = f.pool.SweepCredits(ctx, bob, carol, u(10))
	require.ErrorIs(t, err, ErrNotOwner)
	_, err = f.pool.SweepCredits(ctx, owner, common.Address{}, u(10))
	require.ErrorIs(t, err, ErrInvalidAddress)
	_, err = f.pool.SweepCredits(ctx, owner, carol, u(101))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	ev, err := f.pool.SweepCredits(ctx, owner, carol, u(40))
	require.NoError(t, err)
	require.Equal(t, EventSweep, ev.Kind)
	require.Equal(t, "40", ev.Credits.Dec())
	require.Equal(t, uint64(3), ev.Seq)
	require.Equal(t, "40", f.creditsOf(t, carol))
	require.Equal(t, "60", f.creditsOf(t, poolAddr))

	ev, err = f.pool.SweepCredits(ctx, owner, carol, nil)
	require.NoError(t, err)
	require.Equal(t, "60", ev.Credits.Dec())
	require.Equal(t, "0", f.creditsOf(t, poolAddr))

	_, err = f.pool.SweepCredits(ctx, owner, carol, u(0))
	require.ErrorIs(t, err, ErrInvalidAmount)

	requireState(t, f.pool, "900", "1000", "0")
	require.Equal(t, uint64(4), f.pool.State().Sequence)
}
