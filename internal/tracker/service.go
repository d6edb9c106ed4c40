package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yegors/rbx-watch/internal/metrics"
	"github.com/yegors/rbx-watch/internal/roblox"
	"github.com/yegors/rbx-watch/internal/websocket"
	"github.com/yegors/rbx-watch/pkg/logger"
)

// PresenceClient defines the upstream API surface the tracker polls
type PresenceClient interface {
	Presences(ctx context.Context, ids []int64) ([]roblox.UserPresence, error)
	Usernames(ctx context.Context, ids []int64) (map[int64]string, error)
	FriendIDs(ctx context.Context) ([]int64, error)
}

// Storage defines the persistence operations used by the tracker
type Storage interface {
	Watchlist() ([]int64, error)
	InsertEvent(event *Event) error
}

// Notifier delivers session event notifications. Delivery is fire and
// forget: implementations log failures themselves and never retry.
type Notifier interface {
	NotifyEvent(event *Event)
}

// Publisher maintains the single status dashboard message at the destination
type Publisher interface {
	Publish(text string) error
}

// Renderer builds the dashboard text from one poll's online records
type Renderer interface {
	Render(records []Record, now time.Time) string
}

// WebSocketServer defines the interface for broadcasting tracker updates
type WebSocketServer interface {
	Broadcast(message *websocket.Message)
}

// Service is the polling core: once per interval it resolves the monitored
// set, fetches presence, advances the session state machine, emits events
// and republishes the status dashboard.
type Service struct {
	client       PresenceClient
	storage      Storage
	notifier     Notifier
	publisher    Publisher
	renderer     Renderer
	wsServer     WebSocketServer
	selfID       int64
	pollInterval time.Duration
	logger       *logger.Logger

	now func() time.Time

	// Owned by the polling goroutine, never shared
	sessions   *sessionSet
	lastOnline map[int64]bool

	mu           sync.RWMutex
	latest       []Record
	lastTickTime time.Time
	lastTickOK   bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewService creates a new presence tracking service
func NewService(
	client PresenceClient,
	storage Storage,
	notifier Notifier,
	publisher Publisher,
	renderer Renderer,
	wsServer WebSocketServer,
	selfID int64,
	pollInterval time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		client:       client,
		storage:      storage,
		notifier:     notifier,
		publisher:    publisher,
		renderer:     renderer,
		wsServer:     wsServer,
		selfID:       selfID,
		pollInterval: pollInterval,
		logger:       log.Named("tracker"),
		now:          time.Now,
		sessions:     newSessionSet(),
		lastOnline:   make(map[int64]bool),
		stopCh:       make(chan struct{}),
	}
}

// Start runs an initial poll and begins the background polling loop
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting presence tracker",
		logger.Duration("poll_interval", s.pollInterval),
		logger.Int64("self_id", s.selfID),
	)

	if err := s.fetchAndProcess(ctx); err != nil {
		metrics.TickErrors.Inc()
		s.logger.Error("Initial presence poll failed", logger.Error(err))
		s.setTickStatus(false)
	} else {
		s.setTickStatus(true)
	}

	s.wg.Add(1)
	go s.fetchLoop(ctx)

	return nil
}

// Stop stops the polling loop
func (s *Service) Stop() {
	s.logger.Info("Stopping presence tracker")
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Presence tracker stopped")
}

// fetchLoop polls presence at the configured interval until stopped. A
// failed tick is logged and abandoned; the loop keeps its schedule.
func (s *Service) fetchLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.fetchAndProcess(ctx); err != nil {
				metrics.TickErrors.Inc()
				s.logger.Error("Presence poll failed", logger.Error(err))
				s.setTickStatus(false)
			} else {
				s.setTickStatus(true)
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// fetchAndProcess executes one polling tick end to end
func (s *Service) fetchAndProcess(ctx context.Context) error {
	metrics.TicksTotal.Inc()
	now := s.now()

	monitored, err := s.monitoredIDs(ctx)
	if err != nil {
		return err
	}

	presences, err := s.client.Presences(ctx, monitored)
	if err != nil {
		return err
	}

	// Resolve names only for players that actually came back with a
	// presence record, the rest would be wasted lookups
	present := make([]int64, 0, len(presences))
	for _, p := range presences {
		present = append(present, p.UserID)
	}
	names, err := s.client.Usernames(ctx, present)
	if err != nil {
		return err
	}

	snapshots := buildSnapshots(presences, names)
	records, events := s.sessions.apply(snapshots, now)

	// Diff against the previous tick's online set
	currentOnline := make(map[int64]bool, len(records))
	for _, r := range records {
		currentOnline[r.UserID] = true
		if !s.lastOnline[r.UserID] {
			events = append(events, &Event{
				Type:       EventOnline,
				UserID:     r.UserID,
				Username:   r.Name,
				OccurredAt: now,
			})
		}
	}

	s.dispatchEvents(events)

	// Swap the online set exactly once per tick, whatever happens to the
	// publish below, otherwise the same transitions fire again next tick
	s.lastOnline = currentOnline

	metrics.PlayersOnline.Set(float64(len(records)))

	if s.publisher != nil {
		if err := s.publisher.Publish(s.renderer.Render(records, now)); err != nil {
			metrics.PublishFailures.Inc()
			s.logger.Error("Failed to publish status message", logger.Error(err))
		}
	}

	s.setLatest(records, now)
	s.broadcastStatus(len(records), now)

	return nil
}

// monitoredIDs builds this tick's monitored set: the friends list plus the
// watchlist, minus the account's own ID. Recomputed every tick so watchlist
// changes take effect on the next poll.
func (s *Service) monitoredIDs(ctx context.Context) ([]int64, error) {
	friends, err := s.client.FriendIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch friends list: %w", err)
	}

	watched, err := s.storage.Watchlist()
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlist: %w", err)
	}

	seen := make(map[int64]bool, len(friends)+len(watched))
	ids := make([]int64, 0, len(friends)+len(watched))
	for _, id := range friends {
		if id != s.selfID && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, id := range watched {
		if id != s.selfID && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// dispatchEvents persists, notifies and broadcasts this tick's session events
func (s *Service) dispatchEvents(events []*Event) {
	for _, ev := range events {
		metrics.SessionEvents.WithLabelValues(ev.Type).Inc()

		s.logger.Info("Session event",
			logger.String("type", ev.Type),
			logger.Int64("user_id", ev.UserID),
			logger.String("username", ev.Username),
			logger.Duration("online_for", ev.OnlineFor),
		)

		if err := s.storage.InsertEvent(ev); err != nil {
			s.logger.Error("Failed to persist session event",
				logger.String("type", ev.Type),
				logger.Int64("user_id", ev.UserID),
				logger.Error(err),
			)
		}

		if s.notifier != nil {
			s.notifier.NotifyEvent(ev)
		}

		if s.wsServer != nil {
			s.wsServer.Broadcast(&websocket.Message{
				Type: websocket.MessageTypePresenceEvent,
				Data: map[string]any{
					"type":         ev.Type,
					"user_id":      ev.UserID,
					"username":     ev.Username,
					"timestamp":    ev.OccurredAt.Format(time.RFC3339),
					"online_secs":  ev.OnlineFor.Seconds(),
					"in_game_secs": ev.GameFor.Seconds(),
				},
			})
		}
	}
}

func (s *Service) broadcastStatus(onlineCount int, now time.Time) {
	if s.wsServer == nil {
		return
	}
	s.wsServer.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeStatusUpdate,
		Data: map[string]any{
			"online_count": onlineCount,
			"timestamp":    now.Format(time.RFC3339),
		},
	})
}

func (s *Service) setLatest(records []Record, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = records
	s.lastTickTime = now
}

func (s *Service) setTickStatus(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTickOK = ok
}

// OnlineRecords returns a copy of the latest tick's online records
func (s *Service) OnlineRecords() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]Record, len(s.latest))
	copy(records, s.latest)
	return records
}

// GetStatus returns the last tick time and whether that tick succeeded
func (s *Service) GetStatus() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTickTime, s.lastTickOK
}

// StatusText renders the dashboard for the latest tick's records
func (s *Service) StatusText() string {
	s.mu.RLock()
	records := make([]Record, len(s.latest))
	copy(records, s.latest)
	s.mu.RUnlock()
	return s.renderer.Render(records, s.now())
}
