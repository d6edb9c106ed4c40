package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/rbx-watch/internal/telegram"
	"github.com/yegors/rbx-watch/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestDisplayHandleAbsentByDefault(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	handle, err := store.GetDisplayHandle()

	require.NoError(t, err)
	assert.Nil(t, handle)
}

func TestDisplayHandleRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	require.NoError(t, store.SetDisplayHandle(&telegram.DisplayHandle{ChatID: -100123, MessageID: 42}))

	handle, err := store.GetDisplayHandle()

	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.Equal(t, int64(-100123), handle.ChatID)
	assert.Equal(t, 42, handle.MessageID)
}

func TestDisplayHandleOverwrite(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	require.NoError(t, store.SetDisplayHandle(&telegram.DisplayHandle{ChatID: 1, MessageID: 1}))
	require.NoError(t, store.SetDisplayHandle(&telegram.DisplayHandle{ChatID: 1, MessageID: 2}))

	handle, err := store.GetDisplayHandle()

	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.Equal(t, 2, handle.MessageID)
}

func TestWatchlistAddIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	added, err := store.AddWatchlist(7)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.AddWatchlist(7)
	require.NoError(t, err)
	assert.False(t, added)

	ids, err := store.Watchlist()
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)
}

func TestWatchlistRemove(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.AddWatchlist(7)
	require.NoError(t, err)

	removed, err := store.RemoveWatchlist(7)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.RemoveWatchlist(7)
	require.NoError(t, err)
	assert.False(t, removed)

	ids, err := store.Watchlist()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestWatchlistSortedByUserID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	for _, id := range []int64{30, 10, 20} {
		_, err := store.AddWatchlist(id)
		require.NoError(t, err)
	}

	ids, err := store.Watchlist()

	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, ids)
}
