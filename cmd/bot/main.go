package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatlog-dashboard/internal/bot"
	"github.com/chatlog-dashboard/internal/config"
	"github.com/chatlog-dashboard/internal/conversation"
	"github.com/chatlog-dashboard/internal/digest"
	"github.com/chatlog-dashboard/internal/logging"
	"github.com/chatlog-dashboard/internal/ratelimit"
	"github.com/chatlog-dashboard/internal/scheduler"
	"github.com/chatlog-dashboard/internal/storage"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := config.ValidateBot(cfg); err != nil {
		log.Fatal().Err(err).Msg("Invalid bot configuration")
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)
	logger.Info().
		Str("environment", cfg.Environment).
		Str("timezone", cfg.Timezone).
		Str("chat_table", cfg.ChatTable).
		Bool("digest_enabled", cfg.DigestEnabled()).
		Int("digest_limit", cfg.DigestDailyLimit).
		Msg("Starting chat log bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage client
	logger.Info().Msg("Initializing Supabase client...")
	storageClient, err := storage.NewClient(
		cfg.Chat.URL,
		cfg.Chat.Key,
		cfg.ChatTable,
		cfg.SupabaseTimeout,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create storage client")
	}

	if err := storageClient.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Supabase")
	}
	logger.Info().Msg("Supabase connection successful")

	conversations := conversation.NewService(storageClient, logger)

	generator := digest.NewGenerator(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout, logger)
	defer func() {
		if err := generator.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close digest generator")
		}
	}()

	limiter, err := ratelimit.NewLimiter(cfg.Timezone, cfg.DigestDailyLimit, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create rate limiter")
	}

	logger.Info().Msg("Initializing Telegram bot...")
	telegramBot, err := bot.New(cfg, conversations, generator, limiter, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create bot")
	}

	logger.Info().
		Str("username", telegramBot.GetUsername()).
		Interface("allowed_chat_ids", cfg.AllowedChatIDs).
		Msg("Bot initialized successfully")

	sched, err := scheduler.NewScheduler(conversations, cfg, telegramBot.SendReport, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Scheduler stopped with error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	botDone := make(chan error, 1)
	go func() {
		botDone <- telegramBot.Start(ctx)
	}()

	logger.Info().Msg("Bot is running. Press Ctrl+C to stop.")

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received termination signal")
	case err := <-botDone:
		if err != nil {
			logger.Error().Err(err).Msg("Bot stopped with error")
		}
	}

	// Graceful shutdown
	logger.Info().Msg("Initiating graceful shutdown...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		<-schedDone
		telegramBot.Wait()
		close(done)
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn().Msg("Shutdown timeout exceeded, some requests may be lost")
	case <-done:
		logger.Info().Msg("Graceful shutdown completed")
	}

	logger.Info().Msg("Bot stopped")
}
