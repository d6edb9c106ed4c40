package status

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yegors/rbx-watch/internal/tracker"
)

// barLength is the width of the restart progress bar in the status box
const barLength = 20

// RenderOptions carries every input Render depends on. Identical options
// and records always produce byte-identical output.
type RenderOptions struct {
	Now             time.Time
	StartedAt       time.Time
	RestartInterval time.Duration
	Location        *time.Location
}

// Render builds the full status dashboard text: the status box with uptime,
// online count, last refresh time and restart countdown, followed by the
// online player list sorted case-insensitively by name. Pure function, does
// not modify records.
func Render(records []tracker.Record, opts RenderOptions) string {
	now := opts.Now
	if opts.Location != nil {
		now = now.In(opts.Location)
	}

	uptime := opts.Now.Sub(opts.StartedAt)

	remaining := opts.RestartInterval - uptime
	if remaining < 0 {
		remaining = 0
	}

	ratio := 0.0
	if opts.RestartInterval > 0 {
		ratio = uptime.Seconds() / opts.RestartInterval.Seconds()
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * barLength)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barLength-filled)

	var b strings.Builder

	b.WriteString("╔═══════════ 📊 PRESENCE MONITOR ═══════════╗\n")
	b.WriteString(fmt.Sprintf("║ ⏳ Uptime       : %-24s║\n", FormatDuration(uptime)))
	b.WriteString(fmt.Sprintf("║ 👥 Online       : %-24s║\n", strconv.Itoa(len(records))))
	b.WriteString(fmt.Sprintf("║ 🕒 Last refresh : %-24s║\n", now.Format("15:04:05 02/01/2006 MST")))
	b.WriteString(fmt.Sprintf("║ 🔄 Restart in   : %-24s║\n", FormatDuration(remaining)))
	b.WriteString(fmt.Sprintf("║ [%s]                   ║\n", bar))
	b.WriteString("╚══════════════════════════════════════════╝\n")
	b.WriteString("\n")
	b.WriteString("🎮 ONLINE PLAYERS\n")

	if len(records) == 0 {
		b.WriteString("No players online\n")
		return b.String()
	}

	rows := make([]tracker.Record, len(records))
	copy(rows, records)
	sort.Slice(rows, func(i, j int) bool {
		a, c := strings.ToLower(rows[i].Name), strings.ToLower(rows[j].Name)
		if a != c {
			return a < c
		}
		return rows[i].UserID < rows[j].UserID
	})

	for i, row := range rows {
		activity := row.Activity
		if activity == "" {
			activity = "none"
		}
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, row.Name))
		b.WriteString(fmt.Sprintf("   🕒 Online: %s\n", FormatDuration(row.OnlineFor)))
		b.WriteString(fmt.Sprintf("   🎯 Game: %s\n", activity))
		b.WriteString(fmt.Sprintf("   ⌛ In game: %s\n", FormatDuration(row.GameFor)))
		b.WriteString("\n")
	}

	return b.String()
}

// FormatDuration renders a duration as 5s, 4m 5s or 3h 4m 5s
func FormatDuration(d time.Duration) string {
	secs := int(d.Seconds())
	hours := secs / 3600
	rem := secs % 3600
	minutes := rem / 60
	seconds := rem % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Renderer binds the fixed render inputs at startup so only records and the
// current time vary per poll
type Renderer struct {
	startedAt       time.Time
	restartInterval time.Duration
	location        *time.Location
}

// NewRenderer creates a renderer for the given process start time, restart
// interval and display timezone
func NewRenderer(startedAt time.Time, restartInterval time.Duration, location *time.Location) *Renderer {
	return &Renderer{
		startedAt:       startedAt,
		restartInterval: restartInterval,
		location:        location,
	}
}

// Render builds the dashboard text for one poll
func (r *Renderer) Render(records []tracker.Record, now time.Time) string {
	return Render(records, RenderOptions{
		Now:             now,
		StartedAt:       r.startedAt,
		RestartInterval: r.restartInterval,
		Location:        r.location,
	})
}
