package tracker

import (
	"time"
)

// sessionSet is the per-player state machine. It keeps one entry per player
// currently observed online and advances all entries once per poll. Only the
// polling goroutine touches it, so it carries no locking of its own.
type sessionSet struct {
	sessions map[int64]*session
}

func newSessionSet() *sessionSet {
	return &sessionSet{
		sessions: make(map[int64]*session),
	}
}

// apply advances the state machine by one poll and returns the enriched
// records for every player observed online this poll, plus the offline
// events for players whose session just ended.
//
// Durations are always recomputed as now minus the stored run start, never
// accumulated across polls. Players absent from snapshots are left untouched:
// their entries (and timers) survive until they reappear in a response.
func (s *sessionSet) apply(snapshots []Snapshot, now time.Time) ([]Record, []*Event) {
	var records []Record
	var offline []*Event

	for _, snap := range snapshots {
		if snap.Kind == KindOffline {
			sess, ok := s.sessions[snap.UserID]
			if !ok {
				// Already offline last poll (or never tracked), no event
				continue
			}

			ev := &Event{
				Type:       EventOffline,
				UserID:     snap.UserID,
				Username:   snap.Name,
				OccurredAt: now,
				OnlineFor:  now.Sub(sess.OnlineSince),
			}
			if !sess.GameSince.IsZero() {
				ev.GameFor = now.Sub(sess.GameSince)
			}

			delete(s.sessions, snap.UserID)
			offline = append(offline, ev)
			continue
		}

		sess, ok := s.sessions[snap.UserID]
		if !ok {
			sess = &session{OnlineSince: now}
			s.sessions[snap.UserID] = sess
		}

		if snap.Kind == KindInGame {
			if sess.GameSince.IsZero() {
				sess.GameSince = now
			}
		} else {
			// Back to browsing: the in-game run is over
			sess.GameSince = time.Time{}
		}

		record := Record{
			UserID:      snap.UserID,
			Name:        snap.Name,
			Kind:        snap.Kind,
			Activity:    snap.Activity,
			OnlineSince: sess.OnlineSince,
			GameSince:   sess.GameSince,
			OnlineFor:   now.Sub(sess.OnlineSince),
		}
		if !sess.GameSince.IsZero() {
			record.GameFor = now.Sub(sess.GameSince)
		}
		records = append(records, record)
	}

	return records, offline
}
