package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/rbx-watch/internal/ai"
	"github.com/yegors/rbx-watch/internal/tracker"
	"github.com/yegors/rbx-watch/pkg/logger"
)

var digestTestNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, provider ai.ChatProvider, events EventSource, notifier Notifier) *Service {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	s := NewService(provider, events, notifier, "gemini-2.0-flash", 21, 0, time.UTC, log)
	s.now = func() time.Time { return digestTestNow }
	return s
}

func TestNextRunLaterTheSameDay(t *testing.T) {
	t.Parallel()

	s := newTestService(t, &fakeChatProvider{}, &fakeEventSource{}, &fakeDigestNotifier{})

	next := s.nextRun(digestTestNow)
	assert.Equal(t, time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC), next)
}

func TestNextRunRollsToTomorrow(t *testing.T) {
	t.Parallel()

	s := newTestService(t, &fakeChatProvider{}, &fakeEventSource{}, &fakeDigestNotifier{})

	next := s.nextRun(time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 15, 21, 0, 0, 0, time.UTC), next)
}

func TestNextRunAtTheScheduledInstantIsTomorrow(t *testing.T) {
	t.Parallel()

	s := newTestService(t, &fakeChatProvider{}, &fakeEventSource{}, &fakeDigestNotifier{})

	next := s.nextRun(time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 15, 21, 0, 0, 0, time.UTC), next)
}

func TestNextRunUsesConfiguredLocation(t *testing.T) {
	t.Parallel()

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	wib := time.FixedZone("WIB", 7*3600)
	s := NewService(&fakeChatProvider{}, &fakeEventSource{}, &fakeDigestNotifier{}, "gemini-2.0-flash", 21, 0, wib, log)

	// 15:00 UTC is 22:00 in WIB, past today's slot
	next := s.nextRun(time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC), next.UTC())
}

func TestPublishDigestPostsSummary(t *testing.T) {
	t.Parallel()

	provider := &fakeChatProvider{summary: "Alice played for an hour, mostly Jailbreak."}
	source := &fakeEventSource{events: []*tracker.Event{
		{Type: tracker.EventOnline, Username: "alice", OccurredAt: digestTestNow.Add(-2 * time.Hour)},
		{Type: tracker.EventOffline, Username: "alice", OccurredAt: digestTestNow.Add(-time.Hour),
			OnlineFor: time.Hour, GameFor: 45 * time.Minute},
	}}
	notifier := &fakeDigestNotifier{}
	s := newTestService(t, provider, source, notifier)

	s.publishDigest(context.Background())

	assert.True(t, source.since.Equal(digestTestNow.Add(-24*time.Hour)))

	require.Equal(t, 1, provider.calls)
	require.Len(t, provider.messages, 2)
	assert.Equal(t, "system", provider.messages[0].Role)
	assert.Equal(t, "user", provider.messages[1].Role)
	assert.Contains(t, provider.messages[1].Content, "alice came online")
	assert.Equal(t, "gemini-2.0-flash", provider.config.Model)
	assert.Equal(t, 0.4, provider.config.Temperature)
	assert.Equal(t, 512, provider.config.MaxTokens)

	require.Len(t, notifier.texts, 1)
	assert.Equal(t, "📅 Daily digest\nAlice played for an hour, mostly Jailbreak.", notifier.texts[0])
}

func TestPublishDigestSkipsQuietDays(t *testing.T) {
	t.Parallel()

	provider := &fakeChatProvider{summary: "unused"}
	notifier := &fakeDigestNotifier{}
	s := newTestService(t, provider, &fakeEventSource{}, notifier)

	s.publishDigest(context.Background())

	assert.Equal(t, 0, provider.calls)
	assert.Empty(t, notifier.texts)
}

func TestPublishDigestSkipsOnProviderError(t *testing.T) {
	t.Parallel()

	provider := &fakeChatProvider{err: errors.New("quota exceeded")}
	source := &fakeEventSource{events: []*tracker.Event{
		{Type: tracker.EventOnline, Username: "alice", OccurredAt: digestTestNow},
	}}
	notifier := &fakeDigestNotifier{}
	s := newTestService(t, provider, source, notifier)

	s.publishDigest(context.Background())

	assert.Empty(t, notifier.texts)
}

func TestPublishDigestSkipsOnStoreError(t *testing.T) {
	t.Parallel()

	provider := &fakeChatProvider{summary: "unused"}
	notifier := &fakeDigestNotifier{}
	s := newTestService(t, provider, &fakeEventSource{err: errors.New("database locked")}, notifier)

	s.publishDigest(context.Background())

	assert.Equal(t, 0, provider.calls)
	assert.Empty(t, notifier.texts)
}

func TestPublishDigestEscapesSummary(t *testing.T) {
	t.Parallel()

	provider := &fakeChatProvider{summary: "<b>big day</b> & more"}
	source := &fakeEventSource{events: []*tracker.Event{
		{Type: tracker.EventOnline, Username: "alice", OccurredAt: digestTestNow},
	}}
	notifier := &fakeDigestNotifier{}
	s := newTestService(t, provider, source, notifier)

	s.publishDigest(context.Background())

	require.Len(t, notifier.texts, 1)
	assert.Equal(t, "📅 Daily digest\n&lt;b&gt;big day&lt;/b&gt; &amp; more", notifier.texts[0])
}

func TestBuildPromptRendersEventLog(t *testing.T) {
	t.Parallel()

	s := newTestService(t, &fakeChatProvider{}, &fakeEventSource{}, &fakeDigestNotifier{})

	prompt := s.buildPrompt([]*tracker.Event{
		{Type: tracker.EventOnline, Username: "alice", OccurredAt: time.Date(2026, 3, 14, 9, 1, 0, 0, time.UTC)},
		{Type: tracker.EventOffline, Username: "alice", OccurredAt: time.Date(2026, 3, 14, 10, 6, 0, 0, time.UTC),
			OnlineFor: 65 * time.Minute, GameFor: 30 * time.Minute},
	})

	assert.Equal(t,
		"Session events of the last 24 hours:\n"+
			"09:01 alice came online\n"+
			"10:06 alice went offline after 1h 5m 0s online, 30m 0s in game\n",
		prompt)
}

type fakeChatProvider struct {
	summary  string
	err      error
	messages []ai.ChatMessage
	config   ai.ChatConfig
	calls    int
}

func (f *fakeChatProvider) ChatCompletion(_ context.Context, messages []ai.ChatMessage, config ai.ChatConfig) (string, error) {
	f.calls++
	f.messages = messages
	f.config = config
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

type fakeEventSource struct {
	events []*tracker.Event
	err    error
	since  time.Time
}

func (f *fakeEventSource) EventsSince(since time.Time) ([]*tracker.Event, error) {
	f.since = since
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

type fakeDigestNotifier struct {
	texts []string
}

func (f *fakeDigestNotifier) NotifyText(text string) {
	f.texts = append(f.texts, text)
}
