package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yegors/rbx-watch/pkg/logger"
)

// WatchlistStore mutates the manual watchlist. Changes take effect on the
// next poll, the running tick is never touched.
type WatchlistStore interface {
	AddWatchlist(userID int64) (bool, error)
	RemoveWatchlist(userID int64) (bool, error)
	Watchlist() ([]int64, error)
}

// Restarter triggers a manual process restart
type Restarter interface {
	RestartNow(reason string)
}

// CommandHandler long-polls bot updates and applies watchlist and restart
// commands issued by the configured admin users
type CommandHandler struct {
	api       botAPI
	admins    map[int64]bool
	store     WatchlistStore
	restarter Restarter
	logger    *logger.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewCommandHandler creates a command handler for the given admin user IDs
func NewCommandHandler(
	api botAPI,
	adminIDs []int64,
	store WatchlistStore,
	restarter Restarter,
	log *logger.Logger,
) *CommandHandler {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}

	return &CommandHandler{
		api:       api,
		admins:    admins,
		store:     store,
		restarter: restarter,
		logger:    log.Named("commands"),
		stopCh:    make(chan struct{}),
	}
}

// Start begins consuming bot updates in the background
func (c *CommandHandler) Start(ctx context.Context) error {
	c.logger.Info("Starting command handler",
		logger.Int("admins", len(c.admins)),
	)

	c.wg.Add(1)
	go c.run(ctx)

	return nil
}

// Stop stops consuming bot updates
func (c *CommandHandler) Stop() {
	c.logger.Info("Stopping command handler")
	c.api.StopReceivingUpdates()
	close(c.stopCh)
	c.wg.Wait()
	c.logger.Info("Command handler stopped")
}

func (c *CommandHandler) run(ctx context.Context) {
	defer c.wg.Done()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.api.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			c.handleUpdate(update)
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *CommandHandler) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	msg := update.Message
	if msg.From == nil || !c.admins[msg.From.ID] {
		c.logger.Warn("Ignoring command from unauthorized user",
			logger.String("command", msg.Command()),
			logger.Int64("chat_id", msg.Chat.ID),
		)
		return
	}

	switch msg.Command() {
	case "add":
		c.handleAdd(msg)
	case "remove":
		c.handleRemove(msg)
	case "watchlist":
		c.handleList(msg)
	case "restart":
		c.handleRestart(msg)
	}
}

func (c *CommandHandler) handleAdd(msg *tgbotapi.Message) {
	id, err := parseUserID(msg.CommandArguments())
	if err != nil {
		c.reply(msg.Chat.ID, "Usage: /add <user id>")
		return
	}

	added, err := c.store.AddWatchlist(id)
	if err != nil {
		c.logger.Error("Failed to add watchlist entry",
			logger.Int64("user_id", id),
			logger.Error(err),
		)
		c.reply(msg.Chat.ID, "Something went wrong, try again")
		return
	}
	if !added {
		c.reply(msg.Chat.ID, fmt.Sprintf("⚠️ %d is already on the watchlist", id))
		return
	}

	c.logger.Info("Watchlist entry added",
		logger.Int64("user_id", id),
		logger.Int64("by", msg.From.ID),
	)
	c.reply(msg.Chat.ID, fmt.Sprintf("✅ %d added to the watchlist, tracking starts on the next poll", id))
}

func (c *CommandHandler) handleRemove(msg *tgbotapi.Message) {
	id, err := parseUserID(msg.CommandArguments())
	if err != nil {
		c.reply(msg.Chat.ID, "Usage: /remove <user id>")
		return
	}

	removed, err := c.store.RemoveWatchlist(id)
	if err != nil {
		c.logger.Error("Failed to remove watchlist entry",
			logger.Int64("user_id", id),
			logger.Error(err),
		)
		c.reply(msg.Chat.ID, "Something went wrong, try again")
		return
	}
	if !removed {
		c.reply(msg.Chat.ID, fmt.Sprintf("⚠️ %d is not on the watchlist", id))
		return
	}

	c.logger.Info("Watchlist entry removed",
		logger.Int64("user_id", id),
		logger.Int64("by", msg.From.ID),
	)
	c.reply(msg.Chat.ID, fmt.Sprintf("✅ %d removed from the watchlist", id))
}

func (c *CommandHandler) handleList(msg *tgbotapi.Message) {
	ids, err := c.store.Watchlist()
	if err != nil {
		c.logger.Error("Failed to load watchlist", logger.Error(err))
		c.reply(msg.Chat.ID, "Something went wrong, try again")
		return
	}

	if len(ids) == 0 {
		c.reply(msg.Chat.ID, "The watchlist is empty")
		return
	}

	var b strings.Builder
	b.WriteString("📋 Watchlist:\n")
	for _, id := range ids {
		b.WriteString(fmt.Sprintf("• %d\n", id))
	}
	c.reply(msg.Chat.ID, b.String())
}

func (c *CommandHandler) handleRestart(msg *tgbotapi.Message) {
	c.logger.Info("Manual restart requested",
		logger.Int64("by", msg.From.ID),
	)
	c.reply(msg.Chat.ID, "🔄 Restart scheduled")

	// RestartNow blocks through the grace delay and then replaces the
	// process image, so it must not run on the update loop
	go c.restarter.RestartNow("manual restart requested")
}

func (c *CommandHandler) reply(chatID int64, text string) {
	if _, err := c.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		c.logger.Warn("Failed to send command reply", logger.Error(err))
	}
}

func parseUserID(args string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("user ID must be positive: %d", id)
	}
	return id, nil
}
