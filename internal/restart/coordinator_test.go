package restart

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/rbx-watch/pkg/logger"
)

var restartTestStart = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestCoordinator(t *testing.T, notifier Notifier, interval time.Duration) (*Coordinator, *execRecorder) {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	rec := &execRecorder{}
	c := NewCoordinator(notifier, interval, 0, restartTestStart, log)
	c.execFn = rec.exec
	return c, rec
}

func TestCheckWarnsOnceInsideWarningWindow(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	c, rec := newTestCoordinator(t, notifier, time.Hour)
	c.now = func() time.Time { return restartTestStart.Add(56 * time.Minute) }

	c.check()
	c.check()
	c.check()

	require.Len(t, notifier.texts, 1)
	assert.Equal(t, "⚠️ Scheduled restart in 4m 0s", notifier.texts[0])
	assert.Equal(t, 0, rec.calls)
}

func TestCheckStaysQuietBeforeWarningWindow(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	c, rec := newTestCoordinator(t, notifier, time.Hour)
	c.now = func() time.Time { return restartTestStart.Add(30 * time.Minute) }

	c.check()

	assert.Empty(t, notifier.texts)
	assert.Equal(t, 0, rec.calls)
}

func TestCheckRestartsWhenIntervalElapses(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	c, rec := newTestCoordinator(t, notifier, time.Hour)
	c.now = func() time.Time { return restartTestStart.Add(time.Hour) }

	c.check()

	require.Equal(t, 1, rec.calls)
	assert.NotEmpty(t, rec.argv0)
	assert.Equal(t, os.Args, rec.argv)

	require.Len(t, notifier.texts, 1)
	assert.Equal(t, "🔄 Restarting (scheduled restart interval reached), back in a moment", notifier.texts[0])
}

func TestRestartHappensOnlyOnce(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	c, rec := newTestCoordinator(t, notifier, time.Hour)
	c.now = func() time.Time { return restartTestStart.Add(2 * time.Hour) }

	c.check()
	c.check()

	assert.Equal(t, 1, rec.calls)
}

func TestRestartNowBypassesTheClock(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	c, rec := newTestCoordinator(t, notifier, time.Hour)
	c.now = func() time.Time { return restartTestStart }

	c.RestartNow("manual restart requested")

	require.Equal(t, 1, rec.calls)
	require.Len(t, notifier.texts, 1)
	assert.Equal(t, "🔄 Restarting (manual restart requested), back in a moment", notifier.texts[0])

	// The scheduled path is spent afterwards too
	c.now = func() time.Time { return restartTestStart.Add(2 * time.Hour) }
	c.check()
	assert.Equal(t, 1, rec.calls)
}

func TestRestartWorksWithoutNotifier(t *testing.T) {
	t.Parallel()

	c, rec := newTestCoordinator(t, nil, time.Hour)
	c.now = func() time.Time { return restartTestStart.Add(time.Hour) }

	c.check()

	assert.Equal(t, 1, rec.calls)
}

type fakeNotifier struct {
	texts []string
}

func (f *fakeNotifier) NotifyText(text string) {
	f.texts = append(f.texts, text)
}

type execRecorder struct {
	calls int
	argv0 string
	argv  []string
}

func (r *execRecorder) exec(argv0 string, argv []string, _ []string) error {
	r.calls++
	r.argv0 = argv0
	r.argv = argv
	return nil
}
