package digest

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/yegors/rbx-watch/internal/ai"
	"github.com/yegors/rbx-watch/internal/status"
	"github.com/yegors/rbx-watch/internal/tracker"
	"github.com/yegors/rbx-watch/pkg/logger"
)

const systemPrompt = "You summarise one day of Roblox presence activity for a small friend group. " +
	"Write 2-4 plain text sentences: who was around, notable session lengths, what was played. " +
	"No markdown, no lists, no preamble."

// EventSource loads recent session events
type EventSource interface {
	EventsSince(since time.Time) ([]*tracker.Event, error)
}

// Notifier posts the digest text
type Notifier interface {
	NotifyText(text string)
}

// Service posts a short AI-written summary of the day's session events at a
// fixed local time once per day
type Service struct {
	provider ai.ChatProvider
	events   EventSource
	notifier Notifier
	model    string
	hour     int
	minute   int
	location *time.Location
	logger   *logger.Logger

	now func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewService creates a new digest service
func NewService(
	provider ai.ChatProvider,
	events EventSource,
	notifier Notifier,
	model string,
	hour int,
	minute int,
	location *time.Location,
	log *logger.Logger,
) *Service {
	return &Service{
		provider: provider,
		events:   events,
		notifier: notifier,
		model:    model,
		hour:     hour,
		minute:   minute,
		location: location,
		logger:   log.Named("digest"),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the daily digest scheduler
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting digest service",
		logger.String("model", s.model),
		logger.Time("next_run", s.nextRun(s.now())),
	)

	s.wg.Add(1)
	go s.run(ctx)

	return nil
}

// Stop stops the digest scheduler
func (s *Service) Stop() {
	s.logger.Info("Stopping digest service")
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Digest service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		timer := time.NewTimer(time.Until(s.nextRun(s.now())))

		select {
		case <-timer.C:
			s.publishDigest(ctx)
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// nextRun returns the next occurrence of the configured local time
func (s *Service) nextRun(now time.Time) time.Time {
	local := now.In(s.location)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// publishDigest summarises the last day of events and posts the result. Any
// failure skips this run, the next one fires tomorrow.
func (s *Service) publishDigest(ctx context.Context) {
	now := s.now()

	events, err := s.events.EventsSince(now.Add(-24 * time.Hour))
	if err != nil {
		s.logger.Error("Failed to load events for digest", logger.Error(err))
		return
	}
	if len(events) == 0 {
		s.logger.Info("No session events in the last day, skipping digest")
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	summary, err := s.provider.ChatCompletion(reqCtx, []ai.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: s.buildPrompt(events)},
	}, ai.ChatConfig{
		Model:       s.model,
		Temperature: 0.4,
		MaxTokens:   512,
	})
	if err != nil {
		s.logger.Error("Failed to generate digest", logger.Error(err))
		return
	}

	s.notifier.NotifyText("📅 Daily digest\n" + html.EscapeString(summary))
	s.logger.Info("Daily digest posted", logger.Int("events", len(events)))
}

// buildPrompt renders the event log as one line per event
func (s *Service) buildPrompt(events []*tracker.Event) string {
	var b strings.Builder
	b.WriteString("Session events of the last 24 hours:\n")

	for _, ev := range events {
		stamp := ev.OccurredAt.In(s.location).Format("15:04")
		switch ev.Type {
		case tracker.EventOnline:
			b.WriteString(fmt.Sprintf("%s %s came online\n", stamp, ev.Username))
		case tracker.EventOffline:
			b.WriteString(fmt.Sprintf("%s %s went offline after %s online, %s in game\n",
				stamp, ev.Username, status.FormatDuration(ev.OnlineFor), status.FormatDuration(ev.GameFor)))
		}
	}

	return b.String()
}
