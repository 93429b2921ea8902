package models

import "time"

// User represents an authenticated account
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session represents the tokens of a signed-in user
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is past its expiry at the given time.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// SignUpResult represents the outcome of a sign up.
// Session is nil while the account waits for email confirmation.
type SignUpResult struct {
	User    User     `json:"user"`
	Session *Session `json:"session,omitempty"`
}

// CallbackResult represents tokens handed off through a redirect URL fragment
type CallbackResult struct {
	Session *Session `json:"session,omitempty"`
	Type    string   `json:"type,omitempty"`
}
