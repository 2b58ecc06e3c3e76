package telegram

import (
	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the telegram.Client interface on top of
// gopkg.in/telebot.v3.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a plain-text message to the member's private chat.
func (tba *TelebotAdapter) SendMessage(chatID int64, text string) error {
	recipient := &telebot.User{ID: chatID}
	_, err := tba.bot.Send(recipient, text, &telebot.SendOptions{})
	return err
}
