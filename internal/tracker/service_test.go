package tracker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/rbx-watch/internal/roblox"
	"github.com/yegors/rbx-watch/pkg/logger"
)

func newTestService(t *testing.T, client *fakeClient, store *fakeStore) (*Service, *fakeNotifier, *fakePublisher) {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	svc := NewService(client, store, notifier, publisher, &fakeRenderer{}, nil, 999, time.Hour, log)
	svc.now = func() time.Time { return sessionTestBase }

	return svc, notifier, publisher
}

func TestServiceEmitsOnlineEventOncePerSession(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		friends: []int64{1},
		presences: []roblox.UserPresence{
			{UserID: 1, UserPresenceType: roblox.PresenceOnline},
		},
		names: map[int64]string{1: "alice"},
	}
	store := &fakeStore{}
	svc, notifier, _ := newTestService(t, client, store)

	require.NoError(t, svc.fetchAndProcess(context.Background()))

	require.Len(t, notifier.events, 1)
	assert.Equal(t, EventOnline, notifier.events[0].Type)
	assert.Equal(t, "alice", notifier.events[0].Username)
	require.Len(t, store.inserted, 1)

	// Same player still online next tick: no second online event
	require.NoError(t, svc.fetchAndProcess(context.Background()))

	assert.Len(t, notifier.events, 1)
	assert.Len(t, store.inserted, 1)
}

func TestServicePublishFailureDoesNotRepeatEvents(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		friends: []int64{1},
		presences: []roblox.UserPresence{
			{UserID: 1, UserPresenceType: roblox.PresenceOnline},
		},
		names: map[int64]string{1: "alice"},
	}
	store := &fakeStore{}
	svc, notifier, publisher := newTestService(t, client, store)
	publisher.err = errors.New("telegram is down")

	// A failed publish is not a failed tick
	require.NoError(t, svc.fetchAndProcess(context.Background()))
	require.NoError(t, svc.fetchAndProcess(context.Background()))

	assert.Len(t, notifier.events, 1)
	assert.Len(t, publisher.texts, 2)
}

func TestServiceOfflineEventCarriesSessionTotals(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		friends: []int64{1},
		presences: []roblox.UserPresence{
			{UserID: 1, UserPresenceType: roblox.PresenceInGame, LastLocation: "Jailbreak"},
		},
		names: map[int64]string{1: "alice"},
	}
	store := &fakeStore{}
	svc, notifier, _ := newTestService(t, client, store)

	current := sessionTestBase
	svc.now = func() time.Time { return current }

	require.NoError(t, svc.fetchAndProcess(context.Background()))

	current = sessionTestBase.Add(90 * time.Second)
	client.presences = []roblox.UserPresence{
		{UserID: 1, UserPresenceType: roblox.PresenceOffline},
	}

	require.NoError(t, svc.fetchAndProcess(context.Background()))

	require.Len(t, notifier.events, 2)
	offline := notifier.events[1]
	assert.Equal(t, EventOffline, offline.Type)
	assert.Equal(t, 90*time.Second, offline.OnlineFor)
	assert.Equal(t, 90*time.Second, offline.GameFor)
	assert.Len(t, store.inserted, 2)
}

func TestServiceExcludesOwnAccount(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		friends: []int64{1, 999},
		names:   map[int64]string{},
	}
	store := &fakeStore{watchlist: []int64{2, 999, 1}}
	svc, _, _ := newTestService(t, client, store)

	require.NoError(t, svc.fetchAndProcess(context.Background()))

	require.Len(t, client.presenceCalls, 1)
	assert.Equal(t, []int64{1, 2}, client.presenceCalls[0])
}

func TestServiceFriendsFetchErrorAbortsTick(t *testing.T) {
	t.Parallel()

	client := &fakeClient{friendsErr: errors.New("401 unauthorized")}
	store := &fakeStore{}
	svc, notifier, publisher := newTestService(t, client, store)

	err := svc.fetchAndProcess(context.Background())

	require.Error(t, err)
	assert.Empty(t, notifier.events)
	assert.Empty(t, publisher.texts)
}

func TestServiceWatchlistErrorAbortsTick(t *testing.T) {
	t.Parallel()

	client := &fakeClient{friends: []int64{1}}
	store := &fakeStore{watchlistErr: errors.New("database locked")}
	svc, _, publisher := newTestService(t, client, store)

	err := svc.fetchAndProcess(context.Background())

	require.Error(t, err)
	assert.Empty(t, publisher.texts)
}

func TestServiceStatusAccessorsAfterStart(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		friends: []int64{1},
		presences: []roblox.UserPresence{
			{UserID: 1, UserPresenceType: roblox.PresenceOnline},
		},
		names: map[int64]string{1: "alice"},
	}
	store := &fakeStore{}
	svc, _, _ := newTestService(t, client, store)

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	lastTick, ok := svc.GetStatus()
	assert.True(t, ok)
	assert.Equal(t, sessionTestBase, lastTick)

	records := svc.OnlineRecords()
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].Name)

	// The returned slice is a copy, mutating it does not leak back
	records[0].Name = "mallory"
	assert.Equal(t, "alice", svc.OnlineRecords()[0].Name)

	assert.Equal(t, "1 online", svc.StatusText())
}

type fakeClient struct {
	friends     []int64
	friendsErr  error
	presences   []roblox.UserPresence
	presenceErr error
	names       map[int64]string
	namesErr    error

	presenceCalls [][]int64
}

func (c *fakeClient) Presences(_ context.Context, ids []int64) ([]roblox.UserPresence, error) {
	call := make([]int64, len(ids))
	copy(call, ids)
	c.presenceCalls = append(c.presenceCalls, call)
	if c.presenceErr != nil {
		return nil, c.presenceErr
	}
	return c.presences, nil
}

func (c *fakeClient) Usernames(_ context.Context, _ []int64) (map[int64]string, error) {
	if c.namesErr != nil {
		return nil, c.namesErr
	}
	return c.names, nil
}

func (c *fakeClient) FriendIDs(_ context.Context) ([]int64, error) {
	if c.friendsErr != nil {
		return nil, c.friendsErr
	}
	return c.friends, nil
}

type fakeStore struct {
	watchlist    []int64
	watchlistErr error
	inserted     []*Event
	insertErr    error
}

func (s *fakeStore) Watchlist() ([]int64, error) {
	if s.watchlistErr != nil {
		return nil, s.watchlistErr
	}
	return s.watchlist, nil
}

func (s *fakeStore) InsertEvent(event *Event) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, event)
	return nil
}

type fakeNotifier struct {
	events []*Event
}

func (n *fakeNotifier) NotifyEvent(event *Event) {
	n.events = append(n.events, event)
}

type fakePublisher struct {
	texts []string
	err   error
}

func (p *fakePublisher) Publish(text string) error {
	p.texts = append(p.texts, text)
	return p.err
}

type fakeRenderer struct{}

func (r *fakeRenderer) Render(records []Record, _ time.Time) string {
	return fmt.Sprintf("%d online", len(records))
}
