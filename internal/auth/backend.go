package auth

import (
	"fmt"
	"time"

	"github.com/chatlog-dashboard/internal/models"
	gotrue "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

// Backend is the remote auth API used by Service
type Backend interface {
	SignUp(email, password string) (*models.SignUpResult, error)
	SignIn(email, password string) (*models.Session, error)
	SignOut(accessToken string) error
	Recover(email string) error
	UpdatePassword(accessToken, password string) (*models.User, error)
	GetUser(accessToken string) (*models.User, error)
	Refresh(refreshToken string) (*models.Session, error)
}

// GoTrueBackend implements Backend on top of the Supabase GoTrue client
type GoTrueBackend struct {
	client gotrue.Client
	now    func() time.Time
}

// NewGoTrueBackend creates a backend for the project at supabaseURL
func NewGoTrueBackend(supabaseURL, anonKey string) *GoTrueBackend {
	client := gotrue.New("", anonKey).WithCustomGoTrueURL(supabaseURL + "/auth/v1")
	return &GoTrueBackend{client: client, now: time.Now}
}

func (b *GoTrueBackend) SignUp(email, password string) (*models.SignUpResult, error) {
	resp, err := b.client.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	result := &models.SignUpResult{User: convertUser(resp.User)}
	// Projects with email confirmation disabled return a session right away,
	// and the user is then nested inside it
	if resp.AccessToken != "" {
		result.Session = b.convertSession(resp.Session)
		result.User = result.Session.User
	}
	return result, nil
}

func (b *GoTrueBackend) SignIn(email, password string) (*models.Session, error) {
	resp, err := b.client.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, err
	}
	return b.convertSession(resp.Session), nil
}

func (b *GoTrueBackend) SignOut(accessToken string) error {
	return b.client.WithToken(accessToken).Logout()
}

func (b *GoTrueBackend) Recover(email string) error {
	return b.client.Recover(types.RecoverRequest{Email: email})
}

func (b *GoTrueBackend) UpdatePassword(accessToken, password string) (*models.User, error) {
	resp, err := b.client.WithToken(accessToken).UpdateUser(types.UpdateUserRequest{
		Password: &password,
	})
	if err != nil {
		return nil, err
	}
	user := convertUser(resp.User)
	return &user, nil
}

func (b *GoTrueBackend) GetUser(accessToken string) (*models.User, error) {
	resp, err := b.client.WithToken(accessToken).GetUser()
	if err != nil {
		return nil, err
	}
	user := convertUser(resp.User)
	return &user, nil
}

func (b *GoTrueBackend) Refresh(refreshToken string) (*models.Session, error) {
	resp, err := b.client.RefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	return b.convertSession(resp.Session), nil
}

func (b *GoTrueBackend) convertSession(s types.Session) *models.Session {
	session := &models.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		User:         convertUser(s.User),
	}

	if expiresAt := int64(s.ExpiresAt); expiresAt > 0 {
		session.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	} else if expiresIn := int64(s.ExpiresIn); expiresIn > 0 {
		session.ExpiresAt = b.now().Add(time.Duration(expiresIn) * time.Second).UTC()
	}

	return session
}

func convertUser(u types.User) models.User {
	return models.User{
		ID:    u.ID.String(),
		Email: u.Email,
	}
}
