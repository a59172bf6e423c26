package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestReconciler(balance func(attempt int) (*uint256.Int, error)) (*Reconciler, *int) {
	attempts := 0
	r := &Reconciler{
		cfg: ReconcileConfig{
			Token:        common.HexToAddress("0x1111111111111111111111111111111111111111"),
			Holder:       common.HexToAddress("0x2222222222222222222222222222222222222222"),
			MaxRetries:   2,
			RetryBackoff: time.Millisecond,
		},
		logger: zap.NewNop(),
		head: func(context.Context) (uint64, error) {
			return 42, nil
		},
		blockTime: func(context.Context, uint64) (uint64, error) {
			return 1700000000, nil
		},
	}
	r.balanceAt = func(_ context.Context, block uint64) (*uint256.Int, error) {
		attempts++
		if block != 42 {
			return nil, errors.New("unexpected block")
		}
		return balance(attempts)
	}
	return r, &attempts
}

func TestReconcileInSync(t *testing.T) {
	r, _ := newTestReconciler(func(int) (*uint256.Int, error) {
		return uint256.NewInt(500), nil
	})

	got, err := r.Check(context.Background(), uint256.NewInt(500))
	require.NoError(t, err)
	require.True(t, got.InSync)
	require.Equal(t, "0", got.Difference)
	require.Equal(t, uint64(42), got.Block)
	require.Equal(t, uint64(1700000000), got.BlockTime)
}

func TestReconcileReportsSignedDifference(t *testing.T) {
	r, _ := newTestReconciler(func(int) (*uint256.Int, error) {
		return uint256.NewInt(480), nil
	})

	got, err := r.Check(context.Background(), uint256.NewInt(500))
	require.NoError(t, err)
	require.False(t, got.InSync)
	require.Equal(t, "-20", got.Difference)
}

func TestReconcileRetriesBalanceCall(t *testing.T) {
	r, attempts := newTestReconciler(func(attempt int) (*uint256.Int, error) {
		if attempt < 3 {
			return nil, errors.New("rpc unavailable")
		}
		return uint256.NewInt(7), nil
	})

	got, err := r.Check(context.Background(), uint256.NewInt(7))
	require.NoError(t, err)
	require.True(t, got.InSync)
	require.Equal(t, 3, *attempts)
}

func TestReconcileGivesUpAfterRetries(t *testing.T) {
	r, attempts := newTestReconciler(func(int) (*uint256.Int, error) {
		return nil, errors.New("rpc unavailable")
	})

	_, err := r.Check(context.Background(), uint256.NewInt(7))
	require.Error(t, err)
	require.Equal(t, 3, *attempts)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, 5, 50*time.Millisecond, func(context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
