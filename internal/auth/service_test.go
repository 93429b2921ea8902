package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chatlog-dashboard/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	user        models.User
	signInErr   error
	signOutErr  error
	refreshErr  error
	getUserErr  error
	confirmSign bool

	signOutToken  string
	recovered     string
	refreshedWith string
	newPassword   string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{user: models.User{ID: uuid.NewString(), Email: "ana@example.com"}}
}

func (f *fakeBackend) session(token string, expiresAt time.Time) *models.Session {
	return &models.Session{
		AccessToken:  token,
		RefreshToken: "refresh-" + token,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
		User:         f.user,
	}
}

func (f *fakeBackend) SignUp(email, _ string) (*models.SignUpResult, error) {
	result := &models.SignUpResult{User: models.User{ID: f.user.ID, Email: email}}
	if !f.confirmSign {
		result.Session = f.session("signup-token", time.Time{})
	}
	return result, nil
}

func (f *fakeBackend) SignIn(_, _ string) (*models.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.session("access", time.Time{}), nil
}

func (f *fakeBackend) SignOut(accessToken string) error {
	f.signOutToken = accessToken
	return f.signOutErr
}

func (f *fakeBackend) Recover(email string) error {
	f.recovered = email
	return nil
}

func (f *fakeBackend) UpdatePassword(_, password string) (*models.User, error) {
	f.newPassword = password
	user := f.user
	return &user, nil
}

func (f *fakeBackend) GetUser(_ string) (*models.User, error) {
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	user := f.user
	return &user, nil
}

func (f *fakeBackend) Refresh(refreshToken string) (*models.Session, error) {
	f.refreshedWith = refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.session("refreshed", time.Time{}), nil
}

type recorder struct {
	events []Event
}

func (r *recorder) listen(e Event) {
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	types := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func newTestService(backend Backend) (*Service, *MemorySessionStore) {
	store := NewMemorySessionStore()
	return NewService(backend, store, zerolog.Nop()), store
}

func TestSignInStoresSessionAndEmits(t *testing.T) {
	backend := newFakeBackend()
	svc, store := newTestService(backend)
	rec := &recorder{}
	svc.Subscribe(rec.listen)

	session, err := svc.SignIn(context.Background(), " ana@example.com ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "access", session.AccessToken)

	stored, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "access", stored.AccessToken)

	assert.Equal(t, []EventType{EventInitialSession, EventSignedIn}, rec.types())
	assert.Nil(t, rec.events[0].Session)
	assert.Equal(t, backend.user.ID, rec.events[1].Session.User.ID)
}

func TestSignInMissingCredentials(t *testing.T) {
	svc, _ := newTestService(newFakeBackend())

	_, err := svc.SignIn(context.Background(), "", "secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	var authErr *Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, opSignIn, authErr.Op)
}

func TestSignInBackendFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.signInErr = errors.New("invalid login credentials")
	svc, store := newTestService(backend)

	_, err := svc.SignIn(context.Background(), "ana@example.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth: sign_in: invalid login credentials")

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSignInCancelledContext(t *testing.T) {
	svc, _ := newTestService(newFakeBackend())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.SignIn(ctx, "ana@example.com", "secret")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSignUp(t *testing.T) {
	t.Run("confirmed immediately", func(t *testing.T) {
		svc, store := newTestService(newFakeBackend())

		result, err := svc.SignUp(context.Background(), "new@example.com", "secret")
		require.NoError(t, err)
		require.NotNil(t, result.Session)
		assert.Equal(t, "new@example.com", result.User.Email)

		stored, _ := store.Load()
		assert.NotNil(t, stored)
	})

	t.Run("waiting for email confirmation", func(t *testing.T) {
		backend := newFakeBackend()
		backend.confirmSign = true
		svc, store := newTestService(backend)

		result, err := svc.SignUp(context.Background(), "new@example.com", "secret")
		require.NoError(t, err)
		assert.Nil(t, result.Session)

		stored, _ := store.Load()
		assert.Nil(t, stored)
	})
}

func TestSignOut(t *testing.T) {
	backend := newFakeBackend()
	svc, store := newTestService(backend)
	_, err := svc.SignIn(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)

	rec := &recorder{}
	svc.Subscribe(rec.listen)

	require.NoError(t, svc.SignOut(context.Background()))
	assert.Equal(t, "access", backend.signOutToken)
	assert.Equal(t, []EventType{EventInitialSession, EventSignedOut}, rec.types())

	stored, _ := store.Load()
	assert.Nil(t, stored)
}

func TestSignOutClearsLocalSessionOnRemoteFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.signOutErr = errors.New("network down")
	svc, store := newTestService(backend)
	_, err := svc.SignIn(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)

	err = svc.SignOut(context.Background())
	require.Error(t, err)

	stored, _ := store.Load()
	assert.Nil(t, stored)

	session, err := svc.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSignOutWithoutSession(t *testing.T) {
	backend := newFakeBackend()
	svc, _ := newTestService(backend)

	require.NoError(t, svc.SignOut(context.Background()))
	assert.Empty(t, backend.signOutToken)
}

func TestResetPassword(t *testing.T) {
	backend := newFakeBackend()
	svc, _ := newTestService(backend)

	require.NoError(t, svc.ResetPassword(context.Background(), "ana@example.com"))
	assert.Equal(t, "ana@example.com", backend.recovered)

	assert.ErrorIs(t, svc.ResetPassword(context.Background(), "  "), ErrMissingCredentials)
}

func TestUpdatePassword(t *testing.T) {
	backend := newFakeBackend()
	svc, _ := newTestService(backend)

	_, err := svc.UpdatePassword(context.Background(), "new-secret")
	assert.ErrorIs(t, err, ErrNotSignedIn)

	_, err = svc.SignIn(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	rec := &recorder{}
	svc.Subscribe(rec.listen)

	user, err := svc.UpdatePassword(context.Background(), "new-secret")
	require.NoError(t, err)
	assert.Equal(t, backend.user.ID, user.ID)
	assert.Equal(t, "new-secret", backend.newPassword)
	assert.Equal(t, []EventType{EventInitialSession, EventUserUpdated}, rec.types())
}

func TestGetSessionRefreshesExpired(t *testing.T) {
	backend := newFakeBackend()
	svc, store := newTestService(backend)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	require.NoError(t, store.Save(backend.session("old", now.Add(-time.Minute))))
	rec := &recorder{}
	svc.Subscribe(rec.listen)

	session, err := svc.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "refreshed", session.AccessToken)
	assert.Equal(t, "refresh-old", backend.refreshedWith)
	assert.Equal(t, []EventType{EventInitialSession, EventTokenRefreshed}, rec.types())
}

func TestGetSessionValidIsNotRefreshed(t *testing.T) {
	backend := newFakeBackend()
	svc, store := newTestService(backend)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	require.NoError(t, store.Save(backend.session("current", now.Add(time.Hour))))

	session, err := svc.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "current", session.AccessToken)
	assert.Empty(t, backend.refreshedWith)
}

func TestGetSessionRefreshFailureClearsSession(t *testing.T) {
	backend := newFakeBackend()
	backend.refreshErr = errors.New("refresh token revoked")
	svc, store := newTestService(backend)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	require.NoError(t, store.Save(backend.session("old", now.Add(-time.Minute))))

	session, err := svc.GetSession(context.Background())
	require.Error(t, err)
	assert.Nil(t, session)

	var authErr *Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, opGetSession, authErr.Op)

	stored, _ := store.Load()
	assert.Nil(t, stored)
}

func TestGetUser(t *testing.T) {
	backend := newFakeBackend()
	svc, _ := newTestService(backend)

	_, err := svc.GetUser(context.Background())
	assert.ErrorIs(t, err, ErrNotSignedIn)

	_, err = svc.SignIn(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)

	user, err := svc.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, backend.user, *user)
}

func TestSubscribeDeliversInitialSession(t *testing.T) {
	backend := newFakeBackend()
	svc, store := newTestService(backend)
	require.NoError(t, store.Save(backend.session("persisted", time.Time{})))

	rec := &recorder{}
	svc.Subscribe(rec.listen)

	require.Len(t, rec.events, 1)
	assert.Equal(t, EventInitialSession, rec.events[0].Type)
	require.NotNil(t, rec.events[0].Session)
	assert.Equal(t, "persisted", rec.events[0].Session.AccessToken)
}

// hookStore runs onLoad before the first session read
type hookStore struct {
	*MemorySessionStore
	onLoad func()
}

func (h *hookStore) Load() (*models.Session, error) {
	if h.onLoad != nil {
		h.onLoad()
	}
	return h.MemorySessionStore.Load()
}

func TestSubscribeQueuesEventsUntilInitialSession(t *testing.T) {
	backend := newFakeBackend()
	store := &hookStore{MemorySessionStore: NewMemorySessionStore()}
	svc := NewService(backend, store, zerolog.Nop())
	store.onLoad = func() {
		svc.hub.emit(Event{Type: EventSignedIn, Session: backend.session("access", time.Time{})})
	}

	rec := &recorder{}
	svc.Subscribe(rec.listen)

	assert.Equal(t, []EventType{EventInitialSession, EventSignedIn}, rec.types())
}

func TestSubscribeDuringConcurrentSignIn(t *testing.T) {
	for i := 0; i < 50; i++ {
		svc, _ := newTestService(newFakeBackend())

		var (
			mu   sync.Mutex
			seen []EventType
		)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = svc.SignIn(context.Background(), "ana@example.com", "secret")
		}()

		svc.Subscribe(func(e Event) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, e.Type)
		})
		<-done

		mu.Lock()
		require.NotEmpty(t, seen)
		assert.Equal(t, EventInitialSession, seen[0])
		mu.Unlock()
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	svc, _ := newTestService(newFakeBackend())
	first := &recorder{}
	second := &recorder{}
	sub := svc.Subscribe(first.listen)
	svc.Subscribe(second.listen)

	sub.Unsubscribe()
	sub.Unsubscribe()

	_, err := svc.SignIn(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventInitialSession}, first.types())
	assert.Equal(t, []EventType{EventInitialSession, EventSignedIn}, second.types())
}

func TestListenerMayCallService(t *testing.T) {
	svc, _ := newTestService(newFakeBackend())
	var seen *models.Session
	svc.Subscribe(func(e Event) {
		if e.Type == EventSignedIn {
			seen, _ = svc.GetSession(context.Background())
		}
	})

	_, err := svc.SignIn(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "access", seen.AccessToken)
}
