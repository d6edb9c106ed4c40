package telegram

// DisplayHandle identifies the single live status dashboard message.
// Persisted so a restarted process edits the same message instead of
// posting a duplicate.
type DisplayHandle struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}
