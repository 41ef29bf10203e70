package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cinevault/auth-service/internal/token"
	"github.com/cinevault/auth-service/internal/user"
)

// UserStore is the credential-store surface the orchestrator depends on.
// Implemented by user.Repository; tests substitute an in-memory fake.
type UserStore interface {
	Create(ctx context.Context, nu user.NewUser) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByUsername(ctx context.Context, username string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByResetToken(ctx context.Context, resetToken string, now time.Time) (*user.User, error)
	UpdateLockout(ctx context.Context, id uuid.UUID, failedCount int, lockedUntil *time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetResetToken(ctx context.Context, id uuid.UUID, resetToken string, expiresAt time.Time) error
	CompleteReset(ctx context.Context, id uuid.UUID, passwordHash string) error
	RecordLogin(ctx context.Context, id uuid.UUID, ip, userAgent string, at time.Time) error
	UpdateProfile(ctx context.Context, id uuid.UUID, upd user.ProfileUpdate) (*user.User, error)
	MarkEmailVerified(ctx context.Context, verificationToken string) error
}

// TokenService issues and verifies signed tokens.
// Implemented by token.JWTService.
type TokenService interface {
	IssuePair(u *user.User) (token.Pair, error)
	IssueAccessToken(u *user.User) (string, error)
	Verify(tokenStr string, kind token.Kind) (*token.Claims, error)
	AccessTokenDuration() time.Duration
	RefreshTokenDuration() time.Duration
}

// EmailService dispatches auth notifications; called asynchronously.
type EmailService interface {
	SendPasswordResetEmail(ctx context.Context, toEmail, resetToken string) error
	SendVerificationEmail(ctx context.Context, toEmail, verificationToken string) error
}

// EventPublisher emits lifecycle events; fire-and-forget.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, userID uuid.UUID, data map[string]any)
}
