package bot

import (
	"fmt"
	"runtime/debug"

	"github.com/chatlog-dashboard/internal/report"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// recoverMiddleware handles panics in message handlers
func (b *Bot) recoverMiddleware(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Panic recovered in handler")
		}
	}()

	handler()
}

// sendChunks sends a reply, splitting it when it exceeds the Telegram limit
func (b *Bot) sendChunks(chatID int64, r reply) error {
	for _, chunk := range report.Split(r.text, report.MaxMessageLength) {
		if err := b.sendMessage(chatID, chunk, r.markdown); err != nil {
			return err
		}
	}
	return nil
}

// sendMessage sends a message to the chat. Markdown that Telegram rejects is resent as plain text.
func (b *Bot) sendMessage(chatID int64, text string, markdown bool) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}

	_, err := b.api.Send(msg)
	if err != nil && markdown {
		b.logger.Warn().
			Err(err).
			Int64("chat_id", chatID).
			Msg("Markdown rejected, retrying as plain text")
		msg.ParseMode = ""
		_, err = b.api.Send(msg)
	}
	if err != nil {
		b.logger.Error().
			Err(err).
			Int64("chat_id", chatID).
			Msg("Failed to send message")
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// sendTypingAction sends typing action to the chat
func (b *Bot) sendTypingAction(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, _ = b.api.Request(action)
}
