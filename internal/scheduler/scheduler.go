package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatlog-dashboard/internal/models"
	"github.com/chatlog-dashboard/internal/report"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// StatsSource computes usage statistics for the report
type StatsSource interface {
	Stats(ctx context.Context, userID string) (models.StatsSummary, error)
}

// ReportCallback is a function that sends the report to a chat
type ReportCallback func(chatID int64, text string) error

// Scheduler runs the periodic stats report
type Scheduler struct {
	stats    StatsSource
	config   models.AppConfig
	callback ReportCallback
	cron     *cron.Cron
	logger   zerolog.Logger
	timezone *time.Location
}

// NewScheduler creates a new scheduler. The cron expression is evaluated in the configured timezone.
func NewScheduler(
	stats StatsSource,
	config models.AppConfig,
	callback ReportCallback,
	logger zerolog.Logger,
) (*Scheduler, error) {
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", config.Timezone, err)
	}

	if config.ReportCron != "" {
		if _, err := cron.ParseStandard(config.ReportCron); err != nil {
			return nil, fmt.Errorf("invalid REPORT_CRON %q: %w", config.ReportCron, err)
		}
	}

	return &Scheduler{
		stats:    stats,
		config:   config,
		callback: callback,
		cron:     cron.New(cron.WithLocation(loc)),
		logger:   logger.With().Str("component", "scheduler").Logger(),
		timezone: loc,
	}, nil
}

// Start starts the scheduler and blocks until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting scheduler...")

	if s.config.ReportCron == "" {
		s.logger.Info().Msg("REPORT_CRON is empty, stats report disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	entryID, err := s.cron.AddFunc(s.config.ReportCron, func() {
		if err := s.RunReport(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Scheduled stats report failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule stats report: %w", err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.config.ReportCron).
		Time("next_report_run", s.cron.Entry(entryID).Next).
		Msg("Scheduler started and running")

	<-ctx.Done()

	// Wait for a running report to finish
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info().Msg("Scheduler stopped")
	return ctx.Err()
}

// RunReport computes the stats and sends them to every allowed chat
func (s *Scheduler) RunReport(ctx context.Context) error {
	userID := s.config.ReportUserID
	logger := s.logger.With().Str("user_filter", userID).Logger()

	logger.Info().
		Int("chat_count", len(s.config.AllowedChatIDs)).
		Msg("Running stats report")

	stats, err := s.stats.Stats(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}

	text := s.formatReport(stats, userID, time.Now().In(s.timezone))

	var errs []error
	for _, chatID := range s.config.AllowedChatIDs {
		if s.callback == nil {
			break
		}
		if err := s.callback(chatID, text); err != nil {
			logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send stats report")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to send stats report: %w", errors.Join(errs...))
	}

	logger.Info().
		Int("conversations", stats.TotalConversations).
		Int("messages", stats.TotalMessages).
		Msg("Stats report completed successfully")
	return nil
}

func (s *Scheduler) formatReport(stats models.StatsSummary, userID string, now time.Time) string {
	return fmt.Sprintf("🗓 *Informe del %s*\n\n%s", now.Format("02/01/2006"), report.Stats(stats, userID))
}
