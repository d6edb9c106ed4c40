package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yegors/rbx-watch/pkg/logger"
)

// botAPI is the slice of the bot client this package uses, separated out so
// tests can substitute a fake
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// NewBot authenticates against the Bot API and returns the shared client
func NewBot(token string, log *logger.Logger) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate bot: %w", err)
	}

	log.Info("Telegram bot authenticated",
		logger.String("username", bot.Self.UserName),
	)

	return bot, nil
}
