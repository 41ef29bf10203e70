package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation          = errors.New("invalid input")
	ErrUsernameTaken       = errors.New("username is already taken")
	ErrEmailTaken          = errors.New("email is already registered")
	ErrMissingRefreshToken = errors.New("refresh token required")
	// ErrInvalidRefreshToken covers expired, revoked and unknown refresh
	// tokens alike; the distinction is deliberately not leaked.
	ErrInvalidRefreshToken    = errors.New("invalid refresh token")
	ErrInvalidResetToken      = errors.New("password reset token is invalid or has expired")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	ErrInvalidVerifyToken     = errors.New("invalid verification token")
)

// WeakPasswordError reports every violated password-policy rule so the client
// can show a complete checklist.
type WeakPasswordError struct {
	Violations []string
}

func (e *WeakPasswordError) Error() string {
	return "password does not meet security requirements"
}

// InvalidCredentialsError is returned both for an unknown username and a
// wrong password, in the same shape, to prevent username enumeration.
// RemainingAttempts is negative when the counter does not apply.
type InvalidCredentialsError struct {
	RemainingAttempts int
}

func (e *InvalidCredentialsError) Error() string {
	return "username or password is incorrect"
}

// AccountLockedError carries how long the lockout still holds.
type AccountLockedError struct {
	RetryIn time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account is locked for %d more minutes due to multiple failed login attempts", e.RemainingMinutes())
}

// RemainingMinutes rounds the remaining lockout up to whole minutes.
func (e *AccountLockedError) RemainingMinutes() int {
	return int((e.RetryIn + time.Minute - 1) / time.Minute)
}
