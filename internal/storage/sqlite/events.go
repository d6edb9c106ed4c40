package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/rbx-watch/internal/tracker"
)

// InsertEvent appends a session event to the history
func (s *Store) InsertEvent(event *tracker.Event) error {
	_, err := s.db.Exec(`
		INSERT INTO session_events (type, user_id, username, occurred_at, online_seconds, game_seconds)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		event.Type,
		event.UserID,
		event.Username,
		event.OccurredAt.UTC().Format(time.RFC3339),
		int64(event.OnlineFor.Seconds()),
		int64(event.GameFor.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session event: %w", err)
	}

	return nil
}

// RecentEvents returns the newest limit events, newest first
func (s *Store) RecentEvents(limit int) ([]*tracker.Event, error) {
	rows, err := s.db.Query(`
		SELECT type, user_id, username, occurred_at, online_seconds, game_seconds
		FROM session_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// EventsSince returns all events at or after the given time, oldest first
func (s *Store) EventsSince(since time.Time) ([]*tracker.Event, error) {
	rows, err := s.db.Query(`
		SELECT type, user_id, username, occurred_at, online_seconds, game_seconds
		FROM session_events
		WHERE occurred_at >= ?
		ORDER BY id
	`, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*tracker.Event, error) {
	var events []*tracker.Event
	for rows.Next() {
		var (
			event      tracker.Event
			occurredAt string
			onlineSecs int64
			gameSecs   int64
		)
		if err := rows.Scan(&event.Type, &event.UserID, &event.Username, &occurredAt, &onlineSecs, &gameSecs); err != nil {
			return nil, fmt.Errorf("failed to scan session event: %w", err)
		}

		t, err := time.Parse(time.RFC3339, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event timestamp: %w", err)
		}
		event.OccurredAt = t
		event.OnlineFor = time.Duration(onlineSecs) * time.Second
		event.GameFor = time.Duration(gameSecs) * time.Second

		events = append(events, &event)
	}

	return events, rows.Err()
}
