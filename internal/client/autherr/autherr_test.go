package autherr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("status 401")
	err := New(ErrInvalidCredentials, "Invalid email or password. Please try again.", cause)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("errors.Is should match the sentinel")
	}
	if errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("must not match other sentinels")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause should be reachable through Unwrap")
	}
}

func TestErrorSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("login: %w", New(ErrRoleMissing, "", nil))
	if !errors.Is(err, ErrRoleMissing) {
		t.Fatalf("sentinel lost through fmt.Errorf wrapping")
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrEmailAlreadyInUse, "Email already registered.", nil)
	if got := UserMessage(err, "fallback"); got != "Email already registered." {
		t.Fatalf("got %q", got)
	}
	if got := UserMessage(errors.New("raw"), "fallback"); got != "fallback" {
		t.Fatalf("got %q", got)
	}
}
