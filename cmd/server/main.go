package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/yegors/rbx-watch/internal/ai"
	"github.com/yegors/rbx-watch/internal/ai/gemini"
	"github.com/yegors/rbx-watch/internal/ai/openai"
	"github.com/yegors/rbx-watch/internal/api"
	"github.com/yegors/rbx-watch/internal/config"
	"github.com/yegors/rbx-watch/internal/digest"
	"github.com/yegors/rbx-watch/internal/restart"
	"github.com/yegors/rbx-watch/internal/roblox"
	"github.com/yegors/rbx-watch/internal/status"
	"github.com/yegors/rbx-watch/internal/storage/sqlite"
	"github.com/yegors/rbx-watch/internal/telegram"
	"github.com/yegors/rbx-watch/internal/tracker"
	"github.com/yegors/rbx-watch/internal/websocket"
	"github.com/yegors/rbx-watch/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in the usual locations)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// The restart countdown and session durations are measured from here
	startedAt := time.Now()

	log.Info("Starting rbx-watch server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Resolve the display timezone
	location, err := cfg.Location()
	if err != nil {
		log.Error("Failed to resolve timezone", logger.Error(err))
		os.Exit(1)
	}

	// Ensure the database directory exists
	if dbDir := filepath.Dir(cfg.Storage.Path); dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			log.Error("Failed to create database directory", logger.Error(err), logger.String("path", dbDir))
			os.Exit(1)
		}
	}

	// Create SQLite storage
	store, err := sqlite.NewStore(cfg.Storage.Path, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer store.Close()
	log.Info("Using SQLite storage", logger.String("path", cfg.Storage.Path))

	// Create the Roblox API client
	robloxClient, err := roblox.NewClient(
		cfg.Roblox.PresenceURL,
		cfg.Roblox.UsersURL,
		cfg.Roblox.FriendsURL,
		cfg.Roblox.Cookie,
		cfg.Roblox.UsernameCacheSize,
		time.Duration(cfg.Roblox.RequestTimeoutSecs)*time.Second,
		log,
	)
	if err != nil {
		log.Error("Failed to create Roblox client", logger.Error(err))
		os.Exit(1)
	}

	// Create the Telegram bot and its two delivery paths
	bot, err := telegram.NewBot(cfg.Telegram.Token, log)
	if err != nil {
		log.Error("Failed to create Telegram bot", logger.Error(err))
		os.Exit(1)
	}

	publisher, err := telegram.NewPublisher(bot, store, cfg.Telegram.StatusChatID, log)
	if err != nil {
		log.Error("Failed to create status publisher", logger.Error(err))
		os.Exit(1)
	}

	notifier := telegram.NewNotifier(bot, cfg.Telegram.NotifChatID, location, log)

	// The dashboard only counts down when the scheduled restart is on
	restartInterval := time.Duration(0)
	if cfg.Restart.Enabled {
		restartInterval = cfg.RestartInterval()
	}
	renderer := status.NewRenderer(startedAt, restartInterval, location)

	// Create WebSocket server
	wsServer := websocket.NewServer(log)

	// Start WebSocket server
	go wsServer.Run()

	trackerService := tracker.NewService(
		robloxClient,
		store,
		notifier,
		publisher,
		renderer,
		wsServer,
		cfg.Roblox.UserID,
		cfg.PollInterval(),
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the presence tracker
	if err := trackerService.Start(ctx); err != nil {
		log.Error("Failed to start presence tracker", logger.Error(err))
		os.Exit(1)
	}

	// The coordinator is always created so the manual /restart command works,
	// but the scheduled countdown only runs when enabled
	coordinator := restart.NewCoordinator(
		notifier,
		cfg.RestartInterval(),
		time.Duration(cfg.Restart.GraceSecs)*time.Second,
		startedAt,
		log,
	)
	if cfg.Restart.Enabled {
		if err := coordinator.Start(ctx); err != nil {
			log.Error("Failed to start restart coordinator", logger.Error(err))
			os.Exit(1)
		}
	}

	// Create the Telegram command handler
	commandHandler := telegram.NewCommandHandler(bot, cfg.Telegram.AdminIDs, store, coordinator, log)
	if err := commandHandler.Start(ctx); err != nil {
		log.Error("Failed to start command handler", logger.Error(err))
		os.Exit(1)
	}

	// Create the daily digest service (if enabled)
	var digestService *digest.Service
	if cfg.Digest.Enabled {
		var provider ai.ChatProvider
		switch cfg.Digest.Provider {
		case "openai":
			provider = openai.NewClient(cfg.Digest.APIKey, log)
		default:
			geminiClient, err := gemini.NewClient(ctx, cfg.Digest.APIKey, log)
			if err != nil {
				log.Error("Failed to create Gemini client", logger.Error(err))
				os.Exit(1)
			}
			provider = geminiClient
		}

		digestService = digest.NewService(
			provider,
			store,
			notifier,
			cfg.Digest.Model,
			cfg.Digest.Hour,
			cfg.Digest.Minute,
			location,
			log,
		)
		if err := digestService.Start(ctx); err != nil {
			log.Error("Failed to start digest service", logger.Error(err))
			os.Exit(1)
		}
	} else {
		log.Info("Daily digest disabled in configuration")
	}

	// Create API router
	router := api.NewRouter(trackerService, store, cfg, log, wsServer, startedAt)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", server.Addr), logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Stop background services first
	if digestService != nil {
		log.Info("Stopping digest service...")
		digestService.Stop()
		log.Info("Digest service stopped.")
	}

	log.Info("Stopping command handler...")
	commandHandler.Stop()
	log.Info("Command handler stopped.")

	if cfg.Restart.Enabled {
		log.Info("Stopping restart coordinator...")
		coordinator.Stop()
		log.Info("Restart coordinator stopped.")
	}

	log.Info("Stopping presence tracker...")
	trackerService.Stop()
	log.Info("Presence tracker stopped.")

	// Cancel the main context
	cancel()

	// Shutdown the HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	} else {
		log.Info("HTTP server shutdown complete")
	}

	log.Info("Server fully stopped")
}
