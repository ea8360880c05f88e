// Package autherr defines the error taxonomy shared by the session manager,
// the request interceptor, the backend API client and the document cache.
// Callers match with errors.Is against the sentinels; UserMessage gives the
// text shown to the user.
package autherr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrTooManyAttempts      = errors.New("too many attempts")
	ErrRoleMissing          = errors.New("role claim missing")
	ErrEmailAlreadyInUse    = errors.New("email already in use")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrPopupClosed          = errors.New("consent flow abandoned")
	ErrPopupBlocked         = errors.New("consent flow could not be opened")
	ErrSignOutFailed        = errors.New("sign out failed")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrStorageUnavailable   = errors.New("local storage unavailable")
	ErrConnectivity         = errors.New("connectivity error")
)

// Error pairs a taxonomy sentinel with a user-displayable message and the
// underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *Error) Is(target error) bool { return errors.Is(e.Kind, target) }

func (e *Error) Unwrap() error { return e.Err }

// New wraps cause under the given sentinel with a user-displayable message.
func New(kind error, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// UserMessage returns the text to show the user for err, or fallback when
// err carries no message of its own.
func UserMessage(err error, fallback string) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return fallback
}
