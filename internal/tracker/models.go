package tracker

import (
	"time"
)

// Presence kinds for one monitored player at one poll
const (
	KindOffline = "offline"
	KindOnline  = "online"
	KindInGame  = "in_game"
)

// Snapshot is the normalized per-player view of one poll: presence kind,
// activity label and display name. Rebuilt every poll, never persisted.
type Snapshot struct {
	UserID   int64
	Kind     string
	Activity string
	Name     string
}

// Record is one currently-online player enriched with running session
// durations, as shown on the dashboard and returned by the API
type Record struct {
	UserID      int64
	Name        string
	Kind        string
	Activity    string
	OnlineSince time.Time
	GameSince   time.Time // zero when not in a game
	OnlineFor   time.Duration
	GameFor     time.Duration
}

// Event types
const (
	EventOnline  = "online"
	EventOffline = "offline"
)

// Event is a single session transition: a player coming online, or going
// offline with the total durations of the session that just ended
type Event struct {
	Type       string
	UserID     int64
	Username   string
	OccurredAt time.Time
	OnlineFor  time.Duration // offline events: total time online
	GameFor    time.Duration // offline events: total time in a game
}

// session holds the per-player state that survives between polls: when the
// current online run began, and when the current in-game run began (zero
// when the player is online but not in a game)
type session struct {
	OnlineSince time.Time
	GameSince   time.Time
}
