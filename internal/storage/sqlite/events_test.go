package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/rbx-watch/internal/tracker"
)

var eventTestBase = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestInsertAndReadBackEvent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	require.NoError(t, store.InsertEvent(&tracker.Event{
		Type:       tracker.EventOffline,
		UserID:     1,
		Username:   "alice",
		OccurredAt: eventTestBase,
		OnlineFor:  90 * time.Second,
		GameFor:    60 * time.Second,
	}))

	events, err := store.RecentEvents(10)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, tracker.EventOffline, events[0].Type)
	assert.Equal(t, int64(1), events[0].UserID)
	assert.Equal(t, "alice", events[0].Username)
	assert.True(t, events[0].OccurredAt.Equal(eventTestBase))
	assert.Equal(t, 90*time.Second, events[0].OnlineFor)
	assert.Equal(t, 60*time.Second, events[0].GameFor)
}

func TestRecentEventsNewestFirstWithLimit(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.InsertEvent(&tracker.Event{
			Type:       tracker.EventOnline,
			UserID:     int64(i + 1),
			Username:   "player",
			OccurredAt: eventTestBase.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := store.RecentEvents(3)

	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(5), events[0].UserID)
	assert.Equal(t, int64(4), events[1].UserID)
	assert.Equal(t, int64(3), events[2].UserID)
}

func TestEventsSinceCutsOffOlderEvents(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	for i := 0; i < 4; i++ {
		require.NoError(t, store.InsertEvent(&tracker.Event{
			Type:       tracker.EventOnline,
			UserID:     int64(i + 1),
			Username:   "player",
			OccurredAt: eventTestBase.Add(time.Duration(i) * time.Hour),
		}))
	}

	events, err := store.EventsSince(eventTestBase.Add(2 * time.Hour))

	require.NoError(t, err)
	require.Len(t, events, 2)
	// Oldest first, starting at the cutoff itself
	assert.Equal(t, int64(3), events[0].UserID)
	assert.Equal(t, int64(4), events[1].UserID)
}

func TestEventsSinceEmptyHistory(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	events, err := store.EventsSince(eventTestBase)

	require.NoError(t, err)
	assert.Empty(t, events)
}
