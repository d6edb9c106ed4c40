package telegram

import (
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yegors/rbx-watch/pkg/logger"
)

// HandleStore persists the status message handle across restarts
type HandleStore interface {
	GetDisplayHandle() (*DisplayHandle, error)
	SetDisplayHandle(handle *DisplayHandle) error
}

// Publisher maintains the single status dashboard message: it creates the
// message once, then edits it in place on every poll. When the referenced
// message no longer exists it posts a replacement and persists the new
// handle. Called from the polling goroutine only.
type Publisher struct {
	api    botAPI
	store  HandleStore
	chatID int64
	handle *DisplayHandle
	logger *logger.Logger
}

// NewPublisher creates a publisher for the given status chat, resuming the
// persisted message handle when one exists
func NewPublisher(api botAPI, store HandleStore, chatID int64, log *logger.Logger) (*Publisher, error) {
	handle, err := store.GetDisplayHandle()
	if err != nil {
		return nil, fmt.Errorf("failed to load status message handle: %w", err)
	}
	if handle != nil && handle.ChatID != chatID {
		// The configured chat changed since the handle was saved, the old
		// message is unreachable now
		handle = nil
	}

	p := &Publisher{
		api:    api,
		store:  store,
		chatID: chatID,
		handle: handle,
		logger: log.Named("publisher"),
	}

	if handle != nil {
		p.logger.Info("Resuming existing status message",
			logger.Int64("chat_id", handle.ChatID),
			logger.Int("message_id", handle.MessageID),
		)
	}

	return p, nil
}

// Publish sends or edits the status message so it shows the given text
func (p *Publisher) Publish(text string) error {
	if p.handle == nil {
		return p.createMessage(text)
	}

	edit := tgbotapi.NewEditMessageText(p.handle.ChatID, p.handle.MessageID, wrapPre(text))
	edit.ParseMode = tgbotapi.ModeHTML

	if _, err := p.api.Send(edit); err != nil {
		if isNotModified(err) {
			// Same rendered text as last poll, nothing to do
			return nil
		}
		if isMessageNotFound(err) {
			p.logger.Warn("Status message is gone, posting a replacement",
				logger.Int("message_id", p.handle.MessageID),
			)
			return p.createMessage(text)
		}
		return fmt.Errorf("failed to edit status message: %w", err)
	}

	return nil
}

// createMessage posts a fresh status message and persists its handle
func (p *Publisher) createMessage(text string) error {
	msg := tgbotapi.NewMessage(p.chatID, wrapPre(text))
	msg.ParseMode = tgbotapi.ModeHTML

	sent, err := p.api.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send status message: %w", err)
	}

	p.handle = &DisplayHandle{ChatID: p.chatID, MessageID: sent.MessageID}
	if err := p.store.SetDisplayHandle(p.handle); err != nil {
		p.logger.Error("Failed to persist status message handle", logger.Error(err))
	}

	p.logger.Info("Status message created",
		logger.Int64("chat_id", p.chatID),
		logger.Int("message_id", sent.MessageID),
	)

	return nil
}

func wrapPre(text string) string {
	return "<pre>" + html.EscapeString(text) + "</pre>"
}

// The Bot API reports edit failures as bare error strings, there are no
// typed errors to match on
func isMessageNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message to edit not found")
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
