package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/rbx-watch/internal/config"
	"github.com/yegors/rbx-watch/internal/storage/sqlite"
	"github.com/yegors/rbx-watch/internal/tracker"
	"github.com/yegors/rbx-watch/pkg/logger"
)

// Handler contains the dependencies for API handlers
type Handler struct {
	trackerService *tracker.Service
	store          *sqlite.Store
	config         *config.Config
	logger         *logger.Logger
	startedAt      time.Time
}

// NewHandler creates a new API handler
func NewHandler(trackerService *tracker.Service, store *sqlite.Store, cfg *config.Config, log *logger.Logger, startedAt time.Time) *Handler {
	return &Handler{
		trackerService: trackerService,
		store:          store,
		config:         cfg,
		logger:         log.Named("api-handler"),
		startedAt:      startedAt,
	}
}

// presenceRecord is the JSON shape of one online player
type presenceRecord struct {
	UserID      int64      `json:"user_id"`
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	Activity    string     `json:"activity,omitempty"`
	OnlineSince time.Time  `json:"online_since"`
	GameSince   *time.Time `json:"game_since,omitempty"`
	OnlineSecs  int64      `json:"online_secs"`
	InGameSecs  int64      `json:"in_game_secs"`
}

// sessionEvent is the JSON shape of one stored session transition
type sessionEvent struct {
	Type       string    `json:"type"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurred_at"`
	OnlineSecs int64     `json:"online_secs,omitempty"`
	InGameSecs int64     `json:"in_game_secs,omitempty"`
}

func toPresenceRecord(r tracker.Record) presenceRecord {
	rec := presenceRecord{
		UserID:      r.UserID,
		Name:        r.Name,
		Kind:        r.Kind,
		Activity:    r.Activity,
		OnlineSince: r.OnlineSince,
		OnlineSecs:  int64(r.OnlineFor.Seconds()),
		InGameSecs:  int64(r.GameFor.Seconds()),
	}
	if !r.GameSince.IsZero() {
		rec.GameSince = &r.GameSince
	}
	return rec
}

func toSessionEvent(ev *tracker.Event) sessionEvent {
	return sessionEvent{
		Type:       ev.Type,
		UserID:     ev.UserID,
		Username:   ev.Username,
		OccurredAt: ev.OccurredAt,
		OnlineSecs: int64(ev.OnlineFor.Seconds()),
		InGameSecs: int64(ev.GameFor.Seconds()),
	}
}

// GetPresence returns the online players from the most recent poll
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	records := h.trackerService.OnlineRecords()

	players := make([]presenceRecord, 0, len(records))
	for _, rec := range records {
		players = append(players, toPresenceRecord(rec))
	}

	response := struct {
		Timestamp time.Time        `json:"timestamp"`
		Count     int              `json:"count"`
		Players   []presenceRecord `json:"players"`
	}{
		Timestamp: time.Now().UTC(),
		Count:     len(players),
		Players:   players,
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetStatus returns the same information as the status dashboard message,
// plus the raw rendered text
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	lastPoll, ok := h.trackerService.GetStatus()
	uptime := time.Since(h.startedAt)

	response := struct {
		Status      string    `json:"status"`
		UptimeSecs  int64     `json:"uptime_secs"`
		OnlineCount int       `json:"online_count"`
		LastPoll    time.Time `json:"last_poll"`
		RestartIn   int64     `json:"restart_in_secs,omitempty"`
		Text        string    `json:"text"`
	}{
		Status:      statusLabel(ok),
		UptimeSecs:  int64(uptime.Seconds()),
		OnlineCount: len(h.trackerService.OnlineRecords()),
		LastPoll:    lastPoll,
		Text:        h.trackerService.StatusText(),
	}

	if h.config.Restart.Enabled {
		remaining := h.config.RestartInterval() - uptime
		if remaining < 0 {
			remaining = 0
		}
		response.RestartIn = int64(remaining.Seconds())
	}

	WriteJSON(w, http.StatusOK, response)
}

func statusLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "degraded"
}

// GetWatchlist returns the manually watched user IDs
func (h *Handler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.Watchlist()
	if err != nil {
		h.logger.Error("Failed to load watchlist", logger.Error(err))
		http.Error(w, "Failed to load watchlist", http.StatusInternalServerError)
		return
	}

	response := struct {
		Count   int     `json:"count"`
		UserIDs []int64 `json:"user_ids"`
	}{
		Count:   len(ids),
		UserIDs: ids,
	}

	WriteJSON(w, http.StatusOK, response)
}

// AddWatchlistEntry adds a user ID to the watchlist. Tracking starts on the
// next poll.
func (h *Handler) AddWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64 `json:"user_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.UserID <= 0 {
		http.Error(w, "user_id must be a positive integer", http.StatusBadRequest)
		return
	}

	added, err := h.store.AddWatchlist(req.UserID)
	if err != nil {
		h.logger.Error("Failed to add watchlist entry", logger.Error(err), logger.Int64("user_id", req.UserID))
		http.Error(w, "Failed to add watchlist entry", http.StatusInternalServerError)
		return
	}

	if added {
		h.logger.Info("Watchlist entry added via API", logger.Int64("user_id", req.UserID))
	}

	response := struct {
		Success bool  `json:"success"`
		Added   bool  `json:"added"`
		UserID  int64 `json:"user_id"`
	}{
		Success: true,
		Added:   added,
		UserID:  req.UserID,
	}

	WriteJSON(w, http.StatusOK, response)
}

// RemoveWatchlistEntry removes a user ID from the watchlist
func (h *Handler) RemoveWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	userID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	removed, err := h.store.RemoveWatchlist(userID)
	if err != nil {
		h.logger.Error("Failed to remove watchlist entry", logger.Error(err), logger.Int64("user_id", userID))
		http.Error(w, "Failed to remove watchlist entry", http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "User not on watchlist", http.StatusNotFound)
		return
	}

	h.logger.Info("Watchlist entry removed via API", logger.Int64("user_id", userID))

	response := struct {
		Success bool  `json:"success"`
		UserID  int64 `json:"user_id"`
	}{
		Success: true,
		UserID:  userID,
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetEvents returns recent session events, newest first
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	limit := 100
	if limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	events, err := h.store.RecentEvents(limit)
	if err != nil {
		h.logger.Error("Failed to load session events", logger.Error(err), logger.Int("limit", limit))
		http.Error(w, "Failed to load session events", http.StatusInternalServerError)
		return
	}

	converted := make([]sessionEvent, 0, len(events))
	for _, ev := range events {
		converted = append(converted, toSessionEvent(ev))
	}

	response := struct {
		Count  int            `json:"count"`
		Events []sessionEvent `json:"events"`
	}{
		Count:  len(converted),
		Events: converted,
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	lastPoll, ok := h.trackerService.GetStatus()

	response := map[string]interface{}{
		"status":       statusLabel(ok),
		"last_poll":    lastPoll,
		"online_count": len(h.trackerService.OnlineRecords()),
	}

	WriteJSON(w, http.StatusOK, response)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
