package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/chatlog-dashboard/internal/models"
	"github.com/chatlog-dashboard/internal/ratelimit"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// ConversationService is the read side of the chat log used by the commands
type ConversationService interface {
	Conversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	ConversationMessages(ctx context.Context, sessionID string) ([]models.Message, error)
	Stats(ctx context.Context, userID string) (models.StatsSummary, error)
}

// Digester writes conversation digests
type Digester interface {
	Enabled() bool
	Digest(ctx context.Context, sessionID string, messages []models.Message) (*models.DigestResult, error)
}

// Bot represents the Telegram bot
type Bot struct {
	api      *tgbotapi.BotAPI
	config   models.AppConfig
	service  ConversationService
	digester Digester
	limiter  *ratelimit.Limiter
	logger   zerolog.Logger
	wg       sync.WaitGroup // Tracks active handlers for graceful shutdown
}

// New creates a new bot instance
func New(
	config models.AppConfig,
	service ConversationService,
	digester Digester,
	limiter *ratelimit.Limiter,
	logger zerolog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(config.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	// Set debug mode based on log level
	api.Debug = config.LogLevel == "debug"

	logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authorized")

	b := newBot(config, service, digester, limiter, logger)
	b.api = api
	return b, nil
}

func newBot(
	config models.AppConfig,
	service ConversationService,
	digester Digester,
	limiter *ratelimit.Limiter,
	logger zerolog.Logger,
) *Bot {
	return &Bot{
		config:   config,
		service:  service,
		digester: digester,
		limiter:  limiter,
		logger:   logger.With().Str("component", "bot").Logger(),
	}
}

// Start starts the bot
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info().Msg("Starting bot...")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Msg("Bot started, waiting for messages...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Shutting down bot...")
			b.api.StopReceivingUpdates()

			b.logger.Info().Msg("Waiting for active handlers to complete...")
			b.wg.Wait()
			b.logger.Info().Msg("All handlers completed")

			return nil

		case update := <-updates:
			b.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.wg.Done()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// Wait blocks until every in-flight handler has returned
func (b *Bot) Wait() {
	b.wg.Wait()
}

// GetUsername returns bot username
func (b *Bot) GetUsername() string {
	return b.api.Self.UserName
}

// SendReport delivers a Markdown report to a chat, split to fit Telegram limits
func (b *Bot) SendReport(chatID int64, text string) error {
	return b.sendChunks(chatID, reply{text: text, markdown: true})
}
