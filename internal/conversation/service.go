package conversation

import (
	"context"
	"fmt"

	"github.com/chatlog-dashboard/internal/models"
	"github.com/rs/zerolog"
)

// MessageSource reads chat rows in ascending id order
type MessageSource interface {
	FetchAll(ctx context.Context, userID string) ([]models.MessageRow, error)
	FetchBySession(ctx context.Context, sessionID string) ([]models.MessageRow, error)
}

// Service fetches chat rows and reshapes them for the dashboard
type Service struct {
	source MessageSource
	logger zerolog.Logger
}

// NewService creates a new conversation service
func NewService(source MessageSource, logger zerolog.Logger) *Service {
	return &Service{
		source: source,
		logger: logger.With().Str("component", "conversation").Logger(),
	}
}

// Conversations returns the conversations of a user, most recent first.
// An empty userID returns every conversation.
func (s *Service) Conversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	rows, err := s.source.FetchAll(ctx, userID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("Error in Conversations")
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}

	summaries := GroupBySession(rows)

	s.logger.Debug().
		Str("user_id", userID).
		Int("row_count", len(rows)).
		Int("conversation_count", len(summaries)).
		Msg("Grouped conversations")

	return summaries, nil
}

// ConversationMessages returns the messages of one conversation in order
func (s *Service) ConversationMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	rows, err := s.source.FetchBySession(ctx, sessionID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("Error in ConversationMessages")
		return nil, fmt.Errorf("failed to get conversation messages: %w", err)
	}

	return ReduceRows(rows), nil
}

// Stats returns usage statistics for a user.
// An empty userID computes statistics over every conversation.
func (s *Service) Stats(ctx context.Context, userID string) (models.StatsSummary, error) {
	rows, err := s.source.FetchAll(ctx, userID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("Error in Stats")
		return models.StatsSummary{}, fmt.Errorf("failed to get stats: %w", err)
	}

	stats := ComputeStats(rows)

	s.logger.Debug().
		Str("user_id", userID).
		Int("total_messages", stats.TotalMessages).
		Int("total_conversations", stats.TotalConversations).
		Msg("Computed stats")

	return stats, nil
}
