package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrDuplicateEmail         = errors.New("email already registered")
	ErrAccountLocked          = errors.New("account is temporarily locked")
	ErrAlreadyVerified        = errors.New("account is already verified")
	ErrNotVerified            = errors.New("account is not verified")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidResetRequest    = errors.New("invalid or expired reset token")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	ErrPasswordUnchanged      = errors.New("new password must differ from current password")
	ErrInvalidToken           = errors.New("invalid or revoked token")
	ErrNotificationFailed     = errors.New("notification delivery failed")
)

// ChallengeError reports a wrong verification code or reset token while
// attempts remain. Once the last attempt is spent the account locks and
// ErrAccountLocked is returned instead.
type ChallengeError struct {
	Remaining int
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("challenge mismatch, %d attempts remaining", e.Remaining)
}

// RateLimitError reports a request made inside a cooldown window.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("retry after %s", e.Wait.Round(time.Second))
}

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
