package tracker

import (
	"strconv"

	"github.com/yegors/rbx-watch/internal/roblox"
)

// buildSnapshots normalizes raw presence records into per-player snapshots.
// Names come from the resolved username map, falling back to the numeric ID
// when a lookup batch failed. Players with no presence record at all never
// reach this function: absent from the response means not reportable this
// tick, which is not the same as offline.
func buildSnapshots(presences []roblox.UserPresence, names map[int64]string) []Snapshot {
	snapshots := make([]Snapshot, 0, len(presences))
	for _, p := range presences {
		name, ok := names[p.UserID]
		if !ok {
			name = strconv.FormatInt(p.UserID, 10)
		}

		kind := KindOnline
		if !p.Online() {
			kind = KindOffline
		} else if p.InGame() {
			kind = KindInGame
		}

		snapshots = append(snapshots, Snapshot{
			UserID:   p.UserID,
			Kind:     kind,
			Activity: p.LastLocation,
			Name:     name,
		})
	}
	return snapshots
}
