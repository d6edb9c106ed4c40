package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yegors/rbx-watch/internal/telegram"
	"github.com/yegors/rbx-watch/pkg/logger"
	_ "modernc.org/sqlite"
)

const displayHandleKey = "display_handle"

// Store is the SQLite-backed durable state for the tracker: the display
// handle, the manual watchlist and the session event history
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewStore opens (creating if needed) the database at dbPath
func NewStore(dbPath string, log *logger.Logger) (*Store, error) {
	storeLogger := log.Named("sqlite")

	storeLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	// Open the database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	// Set pragmas for better performance and concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Create tables if they don't exist
	if err := initDatabase(db, storeLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		logger: storeLogger,
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bot_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create bot_state table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS watchlist (
			user_id INTEGER PRIMARY KEY,
			added_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create watchlist table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS session_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			username TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			online_seconds INTEGER NOT NULL DEFAULT 0,
			game_seconds INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create session_events table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_session_events_occurred_at
		ON session_events(occurred_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create session_events index: %w", err)
	}

	return nil
}

// GetDisplayHandle returns the persisted display handle, or nil if none
// has been stored yet
func (s *Store) GetDisplayHandle() (*telegram.DisplayHandle, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM bot_state WHERE key = ?`, displayHandleKey).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read display handle: %w", err)
	}

	var handle telegram.DisplayHandle
	if err := json.Unmarshal([]byte(value), &handle); err != nil {
		return nil, fmt.Errorf("failed to parse display handle: %w", err)
	}

	return &handle, nil
}

// SetDisplayHandle overwrites the persisted display handle
func (s *Store) SetDisplayHandle(handle *telegram.DisplayHandle) error {
	value, err := json.Marshal(handle)
	if err != nil {
		return fmt.Errorf("failed to encode display handle: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO bot_state (key, value, updated_at)
		VALUES (?, ?, ?)
	`, displayHandleKey, string(value), now)
	if err != nil {
		return fmt.Errorf("failed to store display handle: %w", err)
	}

	s.logger.Debug("Display handle persisted",
		logger.Int64("chat_id", handle.ChatID),
		logger.Int("message_id", handle.MessageID))

	return nil
}

// AddWatchlist inserts a user into the manual watchlist. Returns false if
// the user was already present.
func (s *Store) AddWatchlist(userID int64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO watchlist (user_id, added_at)
		VALUES (?, ?)
	`, userID, now)
	if err != nil {
		return false, fmt.Errorf("failed to add watchlist entry: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check watchlist insert: %w", err)
	}

	return rows > 0, nil
}

// RemoveWatchlist deletes a user from the manual watchlist. Returns false
// if the user was not present.
func (s *Store) RemoveWatchlist(userID int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM watchlist WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove watchlist entry: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check watchlist delete: %w", err)
	}

	return rows > 0, nil
}

// Watchlist returns all manually tracked user IDs
func (s *Store) Watchlist() ([]int64, error) {
	rows, err := s.db.Query(`SELECT user_id FROM watchlist ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist row: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
