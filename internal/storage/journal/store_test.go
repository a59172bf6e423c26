package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"carbonPool/internal/eventlog"
	"carbonPool/internal/ledger"
	"carbonPool/internal/model"
	"carbonPool/internal/pool"
)

var (
	owner    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	poolAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

type venue struct {
	pool    *pool.Pool
	credits *ledger.Token
	shares  *ledger.Token
	bank    *ledger.Bank
	store   *Store
}

func openVenue(t *testing.T, dir string) *venue {
	t.Helper()
	enc, err := eventlog.NewEncoder(31337, poolAddr)
	require.NoError(t, err)
	store, err := Open(filepath.Join(dir, "journal"), enc, nil)
	require.NoError(t, err)

	v := &venue{
		credits: ledger.NewToken("credits", nil),
		shares:  ledger.NewToken("shares", nil),
		bank:    ledger.NewBank(nil),
		store:   store,
	}
	store.Track(v.credits, v.shares, v.bank)
	_, err = store.RestoreLedgers()
	require.NoError(t, err)

	v.pool, err = pool.New(pool.Config{
		Address:      poolAddr,
		Owner:        owner,
		ExchangeRate: uint256.NewInt(1),
		Fee:          pool.FeeSchedule{Numerator: uint256.NewInt(50), Denominator: uint256.NewInt(10000)},
		Credits:      v.credits,
		Reserve:      v.bank,
		Journal:      store,
	}, nil)
	require.NoError(t, err)

	st, ok, err := store.LoadState()
	require.NoError(t, err)
	if ok {
		require.NoError(t, v.pool.Restore(st, v.shares))
	}
	return v
}

func TestJournalRestoresVenue(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	v := openVenue(t, dir)
	require.NoError(t, v.shares.SetMinter(poolAddr))
	require.NoError(t, v.pool.BindShareLedger(ctx, owner, v.shares))
	require.NoError(t, v.bank.Fund(alice, uint256.NewInt(500)))
	_, err := v.pool.AddLiquidity(ctx, alice, uint256.NewInt(300))
	require.NoError(t, err)
	_, err = v.pool.WithdrawLiquidity(ctx, alice, uint256.NewInt(100))
	require.NoError(t, err)
	want := v.pool.State()
	require.NoError(t, v.store.Close())

	reopened := openVenue(t, dir)
	t.Cleanup(func() { reopened.store.Close() })
	got := reopened.pool.State()
	require.Equal(t, want.Record(), got.Record())

	bal, err := reopened.shares.BalanceOf(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, "200", bal.Dec())
	cash, err := reopened.bank.BalanceOf(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, "300", cash.Dec())

	// The restored venue keeps trading with the next sequence number.
	ev, err := reopened.pool.AddLiquidity(ctx, alice, uint256.NewInt(10))
	require.NoError(t, err)
	require.Equal(t, uint64(3), ev.Seq)
}

func TestJournalEventRange(t *testing.T) {
	ctx := context.Background()
	v := openVenue(t, t.TempDir())
	t.Cleanup(func() { v.store.Close() })
	require.NoError(t, v.shares.SetMinter(poolAddr))
	require.NoError(t, v.pool.BindShareLedger(ctx, owner, v.shares))
	require.NoError(t, v.bank.Fund(alice, uint256.NewInt(1000)))
	for i := 0; i < 5; i++ {
		_, err := v.pool.AddLiquidity(ctx, alice, uint256.NewInt(10))
		require.NoError(t, err)
	}

	last, ok, err := v.store.LastSeq()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(5), last)

	var seqs []uint64
	err = v.store.Events(2, 4, func(rec model.LogRecord) error {
		seqs = append(seqs, rec.Seq)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 3, 4}, seqs)

	dec, err := eventlog.NewDecoder()
	require.NoError(t, err)
	err = v.store.Events(1, 1, func(rec model.LogRecord) error {
		ev, err := dec.PoolEvent(rec)
		require.NoError(t, err)
		require.Equal(t, pool.EventDeposit, ev.Kind)
		require.Equal(t, alice, ev.Actor)
		return nil
	})
	require.NoError(t, err)
}

func TestPoolInfoRoundTrip(t *testing.T) {
	v := openVenue(t, t.TempDir())
	t.Cleanup(func() { v.store.Close() })

	_, ok, err := v.store.LoadPoolInfo()
	require.NoError(t, err)
	require.False(t, ok)

	info := model.PoolInfo{ChainID: 1, Address: poolAddr.Hex(), ExchangeRate: "3", FeeNumerator: "1", FeeDenominator: "100"}
	require.NoError(t, v.store.SavePoolInfo(info))
	got, ok, err := v.store.LoadPoolInfo()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, info, got)
}
