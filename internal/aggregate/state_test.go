package aggregate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStateStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "report.json")
	store := &FileStateStore{Path: path, WindowSeconds: 3600}

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Save(ctx, 7200))
	ts, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7200), ts)

	other := &FileStateStore{Path: path, WindowSeconds: 60}
	_, _, err = other.Load(ctx)
	require.Error(t, err)
}
