package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSignedIn is returned by operations that need an active session
	ErrNotSignedIn = errors.New("no active session")

	// ErrMissingCredentials is returned when email or password is empty
	ErrMissingCredentials = errors.New("email and password are required")
)

// Error is the failure outcome of an auth operation
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// operation labels used in logs and errors
const (
	opSignUp         = "sign_up"
	opSignIn         = "sign_in"
	opSignOut        = "sign_out"
	opResetPassword  = "reset_password"
	opUpdatePassword = "update_password"
	opGetSession     = "get_session"
	opGetUser        = "get_user"
	opCallback       = "auth_callback"
)
