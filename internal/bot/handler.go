package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chatlog-dashboard/internal/conversation"
	"github.com/chatlog-dashboard/internal/models"
	"github.com/chatlog-dashboard/internal/report"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ConversationListLimit is the number of conversations shown by /conversations
const ConversationListLimit = 10

// reply is one answer produced by a command
type reply struct {
	text     string
	markdown bool
}

// handleUpdate processes incoming update
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.recoverMiddleware(func() {
		if update.Message != nil {
			b.handleMessage(ctx, update.Message)
		}
	})
}

// handleMessage processes incoming message
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if !b.config.IsAllowedChat(message.Chat.ID) {
		b.logger.Debug().
			Int64("chat_id", message.Chat.ID).
			Msg("Ignoring message from chat that is not allowed")
		return
	}

	if !message.IsCommand() {
		return
	}

	var userID int64
	if message.From != nil {
		userID = message.From.ID
	}

	command := message.Command()
	b.logger.Info().
		Str("command", command).
		Int64("user_id", userID).
		Int64("chat_id", message.Chat.ID).
		Msg("Received command")

	if command == "digest" {
		b.sendTypingAction(message.Chat.ID)
	}

	r := b.executeCommand(ctx, command, message.CommandArguments(), userID)
	_ = b.sendChunks(message.Chat.ID, r)
}

// executeCommand runs a command and returns the text to send back
func (b *Bot) executeCommand(ctx context.Context, command, args string, userID int64) reply {
	args = strings.TrimSpace(args)

	switch command {
	case "conversations":
		return b.conversationsCommand(ctx, args)
	case "conversation":
		return b.conversationCommand(ctx, args)
	case "stats":
		return b.statsCommand(ctx, args)
	case "digest":
		return b.digestCommand(ctx, args, userID)
	case "start", "help":
		return b.helpCommand()
	default:
		return reply{text: "❓ Comando desconocido. Usa /help para ver la lista de comandos."}
	}
}

// conversationsCommand handles /conversations [userId]
func (b *Bot) conversationsCommand(ctx context.Context, userID string) reply {
	summaries, err := b.service.Conversations(ctx, userID)
	if err != nil {
		b.logger.Debug().Err(err).Str("user_filter", userID).Msg("Failed to list conversations")
		return reply{text: "❌ Error al obtener las conversaciones"}
	}
	return reply{text: report.Conversations(summaries, ConversationListLimit), markdown: true}
}

// conversationCommand handles /conversation <sessionId>
func (b *Bot) conversationCommand(ctx context.Context, sessionID string) reply {
	if sessionID == "" {
		return reply{text: "ℹ️ Uso: /conversation <sessionId>"}
	}

	messages, err := b.service.ConversationMessages(ctx, sessionID)
	if err != nil {
		b.logger.Debug().Err(err).Str("session_id", sessionID).Msg("Failed to get conversation")
		return reply{text: "❌ Error al obtener la conversación"}
	}
	return reply{text: report.Transcript(sessionID, messages)}
}

// statsCommand handles /stats [userId]
func (b *Bot) statsCommand(ctx context.Context, userID string) reply {
	stats, err := b.service.Stats(ctx, userID)
	if err != nil {
		b.logger.Debug().Err(err).Str("user_filter", userID).Msg("Failed to compute stats")
		return reply{text: "❌ Error al obtener las estadísticas"}
	}
	return reply{text: report.Stats(stats, userID), markdown: true}
}

// digestCommand handles /digest <sessionId>
func (b *Bot) digestCommand(ctx context.Context, sessionID string, userID int64) reply {
	if b.digester == nil || !b.digester.Enabled() {
		return reply{text: "⚠️ Los resúmenes están desactivados."}
	}
	if sessionID == "" {
		return reply{text: "ℹ️ Uso: /digest <sessionId>"}
	}
	if _, ok := conversation.ExtractUserID(sessionID); !ok {
		return reply{text: "❌ Identificador de sesión no válido"}
	}

	// The slot is taken up front and given back when no digest is produced
	release := func() {}
	if b.limiter != nil {
		var limit models.RateLimitResult
		limit, release = b.limiter.Reserve(userID)
		if !limit.Allowed {
			return reply{text: limit.Message}
		}
	}

	messages, err := b.service.ConversationMessages(ctx, sessionID)
	if err != nil {
		release()
		b.logger.Debug().Err(err).Str("session_id", sessionID).Msg("Failed to get conversation for digest")
		return reply{text: "❌ Error al obtener la conversación"}
	}
	if len(messages) == 0 {
		release()
		return reply{text: report.Transcript(sessionID, messages)}
	}

	result, err := b.digester.Digest(ctx, sessionID, messages)
	if err != nil {
		release()
		b.logger.Error().Err(err).Str("session_id", sessionID).Msg("Digest generation failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return reply{text: "⏱ El resumen tardó demasiado. Inténtalo más tarde."}
		}
		return reply{text: "❌ No se pudo generar el resumen. Inténtalo más tarde."}
	}

	return reply{text: report.Digest(result)}
}

// helpCommand handles /help and /start commands
func (b *Bot) helpCommand() reply {
	text := fmt.Sprintf(
		"👋 *%s*\n\n"+
			"*Comandos disponibles:*\n"+
			"/conversations [usuario] - Últimas conversaciones\n"+
			"/conversation <sesión> - Mensajes de una conversación\n"+
			"/stats [usuario] - Estadísticas de uso\n"+
			"/digest <sesión> - Resumen de una conversación\n"+
			"/help - Mostrar este mensaje\n\n"+
			"Límite de resúmenes: %d por día.",
		report.EntityText(b.config.AppName),
		b.config.DigestDailyLimit,
	)
	return reply{text: text, markdown: true}
}
