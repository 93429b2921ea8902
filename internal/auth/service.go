package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chatlog-dashboard/internal/models"
	"github.com/rs/zerolog"
)

// Service manages the signed-in session of the dashboard user
type Service struct {
	backend Backend
	store   SessionStore
	logger  zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	session *models.Session
	loaded  bool

	hub *eventHub
}

// NewService creates an auth service. A nil store keeps the session in memory.
func NewService(backend Backend, store SessionStore, logger zerolog.Logger) *Service {
	if store == nil {
		store = NewMemorySessionStore()
	}
	return &Service{
		backend: backend,
		store:   store,
		logger:  logger.With().Str("component", "auth").Logger(),
		now:     time.Now,
		hub:     newEventHub(),
	}
}

// SignUp registers a new account. The returned session is nil until the email is confirmed.
func (s *Service) SignUp(ctx context.Context, email, password string) (*models.SignUpResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, s.fail(opSignUp, err)
	}
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, s.fail(opSignUp, ErrMissingCredentials)
	}

	result, err := s.backend.SignUp(email, password)
	if err != nil {
		return nil, s.fail(opSignUp, err)
	}

	if result.Session != nil {
		if err := s.setSession(result.Session); err != nil {
			return nil, s.fail(opSignUp, err)
		}
		s.hub.emit(Event{Type: EventSignedIn, Session: copySession(result.Session)})
	}

	s.logger.Info().Str("user_id", result.User.ID).Bool("confirmed", result.Session != nil).Msg("User signed up")
	return result, nil
}

// SignIn authenticates with email and password and stores the session
func (s *Service) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, s.fail(opSignIn, err)
	}
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, s.fail(opSignIn, ErrMissingCredentials)
	}

	session, err := s.backend.SignIn(email, password)
	if err != nil {
		return nil, s.fail(opSignIn, err)
	}
	if err := s.setSession(session); err != nil {
		return nil, s.fail(opSignIn, err)
	}

	s.logger.Info().Str("user_id", session.User.ID).Msg("User signed in")
	s.hub.emit(Event{Type: EventSignedIn, Session: copySession(session)})
	return copySession(session), nil
}

// SignOut ends the session. The local session is cleared even when the remote logout fails.
func (s *Service) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return s.fail(opSignOut, err)
	}

	current, err := s.current()
	if err != nil {
		return s.fail(opSignOut, err)
	}
	if current == nil {
		return nil
	}

	remoteErr := s.backend.SignOut(current.AccessToken)
	if err := s.setSession(nil); err != nil {
		return s.fail(opSignOut, err)
	}
	s.hub.emit(Event{Type: EventSignedOut})

	if remoteErr != nil {
		return s.fail(opSignOut, remoteErr)
	}
	s.logger.Info().Str("user_id", current.User.ID).Msg("User signed out")
	return nil
}

// ResetPassword sends a recovery email to the address
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return s.fail(opResetPassword, err)
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return s.fail(opResetPassword, ErrMissingCredentials)
	}

	if err := s.backend.Recover(email); err != nil {
		return s.fail(opResetPassword, err)
	}
	s.logger.Info().Msg("Password recovery email requested")
	return nil
}

// UpdatePassword changes the password of the signed-in user
func (s *Service) UpdatePassword(ctx context.Context, newPassword string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, s.fail(opUpdatePassword, err)
	}
	if newPassword == "" {
		return nil, s.fail(opUpdatePassword, ErrMissingCredentials)
	}

	session, err := s.GetSession(ctx)
	if err != nil {
		return nil, s.fail(opUpdatePassword, err)
	}
	if session == nil {
		return nil, s.fail(opUpdatePassword, ErrNotSignedIn)
	}

	user, err := s.backend.UpdatePassword(session.AccessToken, newPassword)
	if err != nil {
		return nil, s.fail(opUpdatePassword, err)
	}

	session.User = *user
	if err := s.setSession(session); err != nil {
		return nil, s.fail(opUpdatePassword, err)
	}
	s.hub.emit(Event{Type: EventUserUpdated, Session: copySession(session)})
	return user, nil
}

// GetSession returns the current session, or nil when signed out.
// An expired session is refreshed with its refresh token.
func (s *Service) GetSession(ctx context.Context) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, s.fail(opGetSession, err)
	}

	current, err := s.current()
	if err != nil {
		return nil, s.fail(opGetSession, err)
	}
	if current == nil {
		return nil, nil
	}
	if !current.Expired(s.now()) {
		return current, nil
	}

	if current.RefreshToken == "" {
		if err := s.setSession(nil); err != nil {
			return nil, s.fail(opGetSession, err)
		}
		s.hub.emit(Event{Type: EventSignedOut})
		return nil, nil
	}

	refreshed, err := s.backend.Refresh(current.RefreshToken)
	if err != nil {
		if clearErr := s.setSession(nil); clearErr != nil {
			s.logger.Error().Err(clearErr).Msg("Failed to clear stale session")
		}
		s.hub.emit(Event{Type: EventSignedOut})
		return nil, s.fail(opGetSession, err)
	}
	if err := s.setSession(refreshed); err != nil {
		return nil, s.fail(opGetSession, err)
	}

	s.logger.Debug().Str("user_id", refreshed.User.ID).Msg("Session refreshed")
	s.hub.emit(Event{Type: EventTokenRefreshed, Session: copySession(refreshed)})
	return copySession(refreshed), nil
}

// GetUser validates the access token remotely and returns its user
func (s *Service) GetUser(ctx context.Context) (*models.User, error) {
	session, err := s.GetSession(ctx)
	if err != nil {
		return nil, s.fail(opGetUser, err)
	}
	if session == nil {
		return nil, s.fail(opGetUser, ErrNotSignedIn)
	}

	user, err := s.backend.GetUser(session.AccessToken)
	if err != nil {
		return nil, s.fail(opGetUser, err)
	}
	return user, nil
}

// Subscribe registers a listener for auth events. It receives INITIAL_SESSION
// right away, before any event emitted concurrently with the subscription.
func (s *Service) Subscribe(listener Listener) *Subscription {
	sub := s.hub.add(listener)

	current, err := s.current()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load session for subscriber")
	}
	sub.start(Event{Type: EventInitialSession, Session: current})
	return sub
}

// current returns a copy of the session, loading it from the store on first use
func (s *Service) current() (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		session, err := s.store.Load()
		if err != nil {
			return nil, err
		}
		s.session = session
		s.loaded = true
	}
	return copySession(s.session), nil
}

func (s *Service) setSession(session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if session == nil {
		err = s.store.Clear()
	} else {
		err = s.store.Save(session)
	}
	if err != nil {
		return err
	}

	s.session = copySession(session)
	s.loaded = true
	return nil
}

func (s *Service) fail(op string, err error) *Error {
	if authErr, ok := err.(*Error); ok {
		return authErr
	}
	s.logger.Error().Err(err).Str("op", op).Msg("Auth operation failed")
	return &Error{Op: op, Err: err}
}

func copySession(session *models.Session) *models.Session {
	if session == nil {
		return nil
	}
	c := *session
	return &c
}
