package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig   `toml:"server"`   // HTTP server settings
	Logging  LoggingConfig  `toml:"logging"`  // Application logging settings
	Roblox   RobloxConfig   `toml:"roblox"`   // Upstream presence API settings
	Telegram TelegramConfig `toml:"telegram"` // Destination bot settings
	Tracker  TrackerConfig  `toml:"tracker"`  // Presence polling settings
	Restart  RestartConfig  `toml:"restart"`  // Scheduled self-restart settings
	Storage  StorageConfig  `toml:"storage"`  // Data persistence settings
	Digest   DigestConfig   `toml:"digest"`   // Daily AI activity digest settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // HTTP port for the API server
	Host             string `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	StaticFilesDir   string `toml:"static_files_dir"`      // Directory to serve the dashboard from (empty = API only)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// RobloxConfig contains upstream Roblox API configuration
type RobloxConfig struct {
	Cookie             string `toml:"cookie"`                  // .ROBLOSECURITY cookie value (env ROBLOX_COOKIE overrides)
	UserID             int64  `toml:"user_id"`                 // User ID of the account owning the cookie (excluded from the monitored set)
	PresenceURL        string `toml:"presence_url"`            // Base URL of the presence API
	UsersURL           string `toml:"users_url"`               // Base URL of the users API
	FriendsURL         string `toml:"friends_url"`             // Base URL of the friends API
	RequestTimeoutSecs int    `toml:"request_timeout_seconds"` // HTTP client timeout for upstream calls
	UsernameCacheSize  int    `toml:"username_cache_size"`     // Entries kept in the username LRU cache
}

// TelegramConfig contains destination bot configuration
type TelegramConfig struct {
	Token        string  `toml:"token"`          // Bot token (env TELEGRAM_BOT_TOKEN overrides)
	StatusChatID int64   `toml:"status_chat_id"` // Chat that holds the single status dashboard message
	NotifChatID  int64   `toml:"notif_chat_id"`  // Chat that receives online/offline notifications
	AdminIDs     []int64 `toml:"admin_ids"`      // Users allowed to run watchlist/restart commands
}

// TrackerConfig contains presence polling configuration
type TrackerConfig struct {
	PollIntervalSecs int    `toml:"poll_interval_seconds"` // How often to poll presence and refresh the dashboard (in seconds)
	Timezone         string `toml:"timezone"`              // IANA timezone for displayed timestamps (e.g., "Asia/Jakarta"), "Local" for the system zone
}

// RestartConfig contains scheduled self-restart configuration
type RestartConfig struct {
	Enabled       bool `toml:"enabled"`        // Enable the scheduled restart
	IntervalHours int  `toml:"interval_hours"` // Process lifetime before the automatic restart
	GraceSecs     int  `toml:"grace_seconds"`  // Delay between the restart notice and the exec
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Path string `toml:"path"` // Path to the SQLite database file
}

// DigestConfig contains daily AI activity digest configuration
type DigestConfig struct {
	Enabled  bool   `toml:"enabled"`  // Enable the daily digest
	Provider string `toml:"provider"` // Chat provider for the summary: "gemini" or "openai"
	Model    string `toml:"model"`    // Model used for the summary
	Hour     int    `toml:"hour"`     // Local hour (0-23) the digest is posted at
	Minute   int    `toml:"minute"`   // Local minute (0-59) the digest is posted at
	APIKey   string `toml:"api_key"`  // Provider API key (env GEMINI_API_KEY or OPENAI_API_KEY overrides)
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Secrets may come from the environment instead of the file
	config.applyEnvOverrides()

	return &config, nil
}

// applyEnvOverrides lets environment variables supply the secrets so they
// can stay out of the config file
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ROBLOX_COOKIE"); v != "" {
		c.Roblox.Cookie = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}

	// The digest key override depends on which provider is configured
	switch c.Digest.Provider {
	case "openai":
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			c.Digest.APIKey = v
		}
	default:
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			c.Digest.APIKey = v
		}
	}
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath, // User-specified path (if provided)
		"config.toml", // Root directory
	}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, home+"/.rbx-watch/config.toml")
	}
	searchPaths = append(searchPaths, "/etc/rbx-watch/config.toml")

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}

	// Validate logging config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Validate Roblox config
	if c.Roblox.Cookie == "" {
		return fmt.Errorf("roblox cookie is required (set roblox.cookie or ROBLOX_COOKIE)")
	}
	if c.Roblox.UserID <= 0 {
		return fmt.Errorf("roblox user_id is required")
	}
	if c.Roblox.PresenceURL == "" {
		c.Roblox.PresenceURL = "https://presence.roblox.com"
	}
	if c.Roblox.UsersURL == "" {
		c.Roblox.UsersURL = "https://users.roblox.com"
	}
	if c.Roblox.FriendsURL == "" {
		c.Roblox.FriendsURL = "https://friends.roblox.com"
	}
	if c.Roblox.RequestTimeoutSecs <= 0 {
		c.Roblox.RequestTimeoutSecs = 10
	}
	if c.Roblox.UsernameCacheSize <= 0 {
		c.Roblox.UsernameCacheSize = 1024
	}

	// Validate Telegram config
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required (set telegram.token or TELEGRAM_BOT_TOKEN)")
	}
	if c.Telegram.StatusChatID == 0 {
		return fmt.Errorf("telegram status_chat_id is required")
	}
	if c.Telegram.NotifChatID == 0 {
		return fmt.Errorf("telegram notif_chat_id is required")
	}

	// Validate tracker config
	if c.Tracker.PollIntervalSecs == 0 {
		c.Tracker.PollIntervalSecs = 5
	}
	if c.Tracker.PollIntervalSecs < 0 {
		return fmt.Errorf("invalid poll interval: %d", c.Tracker.PollIntervalSecs)
	}
	if c.Tracker.Timezone == "" {
		c.Tracker.Timezone = "Local"
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Tracker.Timezone, err)
	}

	// Validate restart config
	if c.Restart.IntervalHours == 0 {
		c.Restart.IntervalHours = 12
	}
	if c.Restart.IntervalHours < 0 {
		return fmt.Errorf("invalid restart interval: %d hours", c.Restart.IntervalHours)
	}
	if c.Restart.GraceSecs == 0 {
		c.Restart.GraceSecs = 5
	}
	if c.Restart.GraceSecs < 0 {
		return fmt.Errorf("invalid restart grace period: %d seconds", c.Restart.GraceSecs)
	}

	// Validate storage config
	if c.Storage.Path == "" {
		c.Storage.Path = "rbx-watch.db"
	}

	// Validate digest config
	if c.Digest.Enabled {
		if c.Digest.Provider == "" {
			c.Digest.Provider = "gemini"
		}
		switch c.Digest.Provider {
		case "gemini", "openai":
			// Valid provider
		default:
			return fmt.Errorf("invalid digest provider: %s", c.Digest.Provider)
		}
		if c.Digest.APIKey == "" {
			return fmt.Errorf("digest api_key is required when the digest is enabled (set digest.api_key, GEMINI_API_KEY or OPENAI_API_KEY)")
		}
		if c.Digest.Model == "" {
			if c.Digest.Provider == "openai" {
				c.Digest.Model = "gpt-4o-mini"
			} else {
				c.Digest.Model = "gemini-2.0-flash"
			}
		}
		if c.Digest.Hour < 0 || c.Digest.Hour > 23 {
			return fmt.Errorf("invalid digest hour: %d", c.Digest.Hour)
		}
		if c.Digest.Minute < 0 || c.Digest.Minute > 59 {
			return fmt.Errorf("invalid digest minute: %d", c.Digest.Minute)
		}
	}

	return nil
}

// Location resolves the configured display timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Tracker.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Tracker.Timezone)
}

// PollInterval returns the tracker poll interval as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Tracker.PollIntervalSecs) * time.Second
}

// RestartInterval returns the scheduled restart interval as a duration
func (c *Config) RestartInterval() time.Duration {
	return time.Duration(c.Restart.IntervalHours) * time.Hour
}
