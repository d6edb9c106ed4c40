package telegram

import (
	"fmt"
	"html"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yegors/rbx-watch/internal/metrics"
	"github.com/yegors/rbx-watch/internal/status"
	"github.com/yegors/rbx-watch/internal/tracker"
	"github.com/yegors/rbx-watch/pkg/logger"
)

// Notifier sends one-shot session notifications to the notification chat.
// Delivery is fire and forget: a failed send is logged and dropped, the
// event is never queued or retried.
type Notifier struct {
	api      botAPI
	chatID   int64
	location *time.Location
	logger   *logger.Logger
}

// NewNotifier creates a notifier for the given notification chat
func NewNotifier(api botAPI, chatID int64, location *time.Location, log *logger.Logger) *Notifier {
	return &Notifier{
		api:      api,
		chatID:   chatID,
		location: location,
		logger:   log.Named("notifier"),
	}
}

// NotifyEvent announces a single session transition
func (n *Notifier) NotifyEvent(ev *tracker.Event) {
	ts := ev.OccurredAt
	if n.location != nil {
		ts = ts.In(n.location)
	}
	stamp := ts.Format("15:04:05 02/01/2006 MST")
	name := html.EscapeString(ev.Username)

	var text string
	switch ev.Type {
	case tracker.EventOnline:
		text = fmt.Sprintf("✅ <b>%s</b> came online at %s", name, stamp)
	case tracker.EventOffline:
		text = fmt.Sprintf("❌ <b>%s</b> went offline at %s\n🕒 Total online: %s\n🎯 Total in game: %s",
			name, stamp, status.FormatDuration(ev.OnlineFor), status.FormatDuration(ev.GameFor))
	default:
		return
	}

	n.send(text)
}

// NotifyText sends an arbitrary notice to the notification chat
func (n *Notifier) NotifyText(text string) {
	n.send(text)
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.api.Send(msg); err != nil {
		metrics.NotifyFailures.Inc()
		n.logger.Warn("Failed to send notification", logger.Error(err))
	}
}
