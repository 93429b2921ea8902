package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/chatlog-dashboard/internal/models"
)

// HandleCallback completes a redirect from an email link. The tokens are read
// from the URL fragment, validated against the auth server and stored.
func (s *Service) HandleCallback(ctx context.Context, rawURL string) (*models.CallbackResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, s.fail(opCallback, err)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, s.fail(opCallback, fmt.Errorf("invalid callback url: %w", err))
	}

	params, err := url.ParseQuery(parsed.EscapedFragment())
	if err != nil {
		return nil, s.fail(opCallback, fmt.Errorf("invalid callback fragment: %w", err))
	}

	if desc := params.Get("error_description"); desc != "" {
		return nil, s.fail(opCallback, errors.New(desc))
	}
	if desc := params.Get("error"); desc != "" {
		return nil, s.fail(opCallback, errors.New(desc))
	}

	accessToken := params.Get("access_token")
	refreshToken := params.Get("refresh_token")
	if accessToken == "" || refreshToken == "" {
		return &models.CallbackResult{}, nil
	}

	user, err := s.backend.GetUser(accessToken)
	if err != nil {
		return nil, s.fail(opCallback, err)
	}

	session := &models.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    params.Get("token_type"),
		User:         *user,
	}
	if expiresAt, err := strconv.ParseInt(params.Get("expires_at"), 10, 64); err == nil && expiresAt > 0 {
		session.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	} else if expiresIn, err := strconv.ParseInt(params.Get("expires_in"), 10, 64); err == nil && expiresIn > 0 {
		session.ExpiresAt = s.now().Add(time.Duration(expiresIn) * time.Second).UTC()
	}

	if err := s.setSession(session); err != nil {
		return nil, s.fail(opCallback, err)
	}

	flowType := params.Get("type")
	event := EventSignedIn
	if flowType == "recovery" {
		event = EventPasswordRecovery
	}
	s.logger.Info().Str("user_id", user.ID).Str("type", flowType).Msg("Auth callback completed")
	s.hub.emit(Event{Type: event, Session: copySession(session)})

	return &models.CallbackResult{Session: copySession(session), Type: flowType}, nil
}
