package telegram

// Client sends a notification text to a member's chat. It decouples the
// dispatcher from the concrete bot library.
type Client interface {
	SendMessage(chatID int64, text string) error
}
