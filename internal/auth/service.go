package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/cinevault/auth-service/internal/events"
	"github.com/cinevault/auth-service/internal/guard"
	"github.com/cinevault/auth-service/internal/logging"
	"github.com/cinevault/auth-service/internal/session"
	"github.com/cinevault/auth-service/internal/token"
	"github.com/cinevault/auth-service/internal/user"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// Service sequences the credential store, account guard, token service and
// session manager for every auth flow, and maps outcomes to domain errors.
type Service struct {
	users    UserStore
	sessions *session.Manager
	tokens   TokenService
	hasher   token.PasswordHasher
	guard    *guard.Guard
	email    EmailService
	events   EventPublisher
	logger   *logging.Logger
}

func NewService(
	users UserStore,
	sessions *session.Manager,
	tokens TokenService,
	hasher token.PasswordHasher,
	accountGuard *guard.Guard,
	emailService EmailService,
	publisher EventPublisher,
	logger *logging.Logger,
) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		hasher:   hasher,
		guard:    accountGuard,
		email:    emailService,
		events:   publisher,
		logger:   logger,
	}
}

// ClientInfo carries the request metadata recorded on successful logins.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Register creates a local account and logs it in.
func (s *Service) Register(ctx context.Context, username, email, password string, client ClientInfo) (*user.User, token.Pair, error) {
	if !usernamePattern.MatchString(username) {
		return nil, token.Pair{}, fmt.Errorf("%w: username must be 3-30 characters of letters, digits or underscore", ErrValidation)
	}
	if email == "" {
		return nil, token.Pair{}, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, token.Pair{}, fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	if violations := token.ValidatePasswordStrength(password); len(violations) > 0 {
		return nil, token.Pair{}, &WeakPasswordError{Violations: violations}
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, token.Pair{}, fmt.Errorf("failed to hash password: %w", err)
	}

	verificationToken, err := token.GenerateOpaque()
	if err != nil {
		return nil, token.Pair{}, fmt.Errorf("failed to generate verification token: %w", err)
	}

	newUser, err := s.users.Create(ctx, user.NewUser{
		Username:               username,
		Email:                  email,
		PasswordHash:           passwordHash,
		Type:                   user.AccountLocal,
		EmailVerificationToken: verificationToken,
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrDuplicateUsername):
			return nil, token.Pair{}, ErrUsernameTaken
		case errors.Is(err, user.ErrDuplicateEmail):
			return nil, token.Pair{}, ErrEmailTaken
		}
		return nil, token.Pair{}, fmt.Errorf("failed to create user: %w", err)
	}

	pair, err := s.startSession(ctx, newUser, client)
	if err != nil {
		return nil, token.Pair{}, err
	}

	s.dispatchEmail(func(emailCtx context.Context) error {
		return s.email.SendVerificationEmail(emailCtx, email, verificationToken)
	}, "verification", email)

	s.events.Publish(ctx, events.TypeUserRegistered, newUser.ID, map[string]any{
		"username": newUser.Username,
	})

	return newUser, pair, nil
}

// Login authenticates a local account, enforcing lockout and recording the
// attempt either way. An unknown username produces the same error shape as a
// wrong password.
func (s *Service) Login(ctx context.Context, username, password string, client ClientInfo) (*user.User, token.Pair, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, token.Pair{}, &InvalidCredentialsError{RemainingAttempts: -1}
		}
		return nil, token.Pair{}, fmt.Errorf("failed to look up user: %w", err)
	}

	if s.guard.IsLocked(u) {
		return nil, token.Pair{}, &AccountLockedError{RetryIn: s.guard.RemainingLockout(u)}
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		s.guard.RecordFailure(u)
		if err := s.users.UpdateLockout(ctx, u.ID, u.FailedLoginCount, u.LockedUntil); err != nil {
			return nil, token.Pair{}, fmt.Errorf("failed to record failed attempt: %w", err)
		}
		if s.guard.IsLocked(u) {
			s.events.Publish(ctx, events.TypeAccountLocked, u.ID, map[string]any{
				"locked_until": u.LockedUntil,
			})
		}
		return nil, token.Pair{}, &InvalidCredentialsError{RemainingAttempts: s.guard.RemainingAttempts(u)}
	}

	if s.guard.RecordSuccess(u) {
		if err := s.users.UpdateLockout(ctx, u.ID, 0, nil); err != nil {
			return nil, token.Pair{}, fmt.Errorf("failed to clear lockout state: %w", err)
		}
	}

	pair, err := s.startSession(ctx, u, client)
	if err != nil {
		return nil, token.Pair{}, err
	}

	s.events.Publish(ctx, events.TypeUserLoggedIn, u.ID, nil)

	return u, pair, nil
}

// startSession issues a token pair, tracks the refresh session, and records
// audit fields.
func (s *Service) startSession(ctx context.Context, u *user.User, client ClientInfo) (token.Pair, error) {
	pair, err := s.tokens.IssuePair(u)
	if err != nil {
		return token.Pair{}, fmt.Errorf("failed to issue tokens: %w", err)
	}

	if err := s.sessions.Add(ctx, u.ID, pair.RefreshToken); err != nil {
		return token.Pair{}, fmt.Errorf("failed to store refresh session: %w", err)
	}

	if err := s.users.RecordLogin(ctx, u.ID, client.IP, client.UserAgent, time.Now()); err != nil {
		// Audit metadata is best-effort; the login itself already succeeded.
		s.logger.Warn("failed to record login audit fields", "user_id", u.ID, "error", err.Error())
	}

	return pair, nil
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself is not rotated; it stays valid until logout or natural expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, *user.User, error) {
	if refreshToken == "" {
		return "", nil, ErrMissingRefreshToken
	}

	claims, err := s.tokens.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		return "", nil, ErrInvalidRefreshToken
	}

	userID, err := claims.UserID()
	if err != nil {
		return "", nil, ErrInvalidRefreshToken
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", nil, ErrInvalidRefreshToken
		}
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// Membership is what blocks replay of a logged-out token whose signature
	// still verifies.
	live, err := s.sessions.Contains(ctx, u.ID, refreshToken)
	if err != nil {
		return "", nil, fmt.Errorf("failed to check refresh session: %w", err)
	}
	if !live {
		return "", nil, ErrInvalidRefreshToken
	}

	if err := s.sessions.PruneExpired(ctx, u.ID); err != nil {
		s.logger.Warn("failed to prune expired sessions", "user_id", u.ID, "error", err.Error())
	}

	accessToken, err := s.tokens.IssueAccessToken(u)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	return accessToken, u, nil
}

// Logout removes one refresh session. Logging out twice with the same token
// is not an error.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.Remove(ctx, userID, refreshToken); err != nil {
		return fmt.Errorf("failed to remove refresh session: %w", err)
	}
	return nil
}

// LogoutAll revokes every refresh session for the user.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// RequestPasswordReset issues a reset token and dispatches the notification.
// It reports success even for unknown emails so the endpoint cannot be used
// to probe which addresses exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email string, resetTTL time.Duration) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to look up user for password reset", "error", err.Error())
		}
		return nil
	}

	resetToken, err := token.GenerateOpaque()
	if err != nil {
		s.logger.Warn("failed to generate reset token", "error", err.Error())
		return nil
	}

	if err := s.users.SetResetToken(ctx, u.ID, resetToken, time.Now().Add(resetTTL)); err != nil {
		s.logger.Warn("failed to store reset token", "error", err.Error())
		return nil
	}

	s.dispatchEmail(func(emailCtx context.Context) error {
		return s.email.SendPasswordResetEmail(emailCtx, email, resetToken)
	}, "password reset", email)

	s.events.Publish(ctx, events.TypePasswordReset, u.ID, map[string]any{"stage": "requested"})

	return nil
}

// ResetPassword consumes a reset token: installs the new hash, clears the
// token pair and any lockout, and revokes every session. The token is
// single-use by construction.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if violations := token.ValidatePasswordStrength(newPassword); len(violations) > 0 {
		return &WeakPasswordError{Violations: violations}
	}

	u, err := s.users.GetByResetToken(ctx, resetToken, time.Now())
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to look up reset token: %w", err)
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.CompleteReset(ctx, u.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	if err := s.sessions.RevokeAll(ctx, u.ID); err != nil {
		s.logger.Warn("failed to revoke sessions after reset", "user_id", u.ID, "error", err.Error())
	}

	s.events.Publish(ctx, events.TypePasswordReset, u.ID, map[string]any{"stage": "completed"})

	return nil
}

// ChangePassword verifies the current password before installing a new one,
// then forces re-login everywhere, consistent with reset.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if !s.hasher.Verify(currentPassword, u.PasswordHash) {
		return ErrInvalidCurrentPassword
	}

	if violations := token.ValidatePasswordStrength(newPassword); len(violations) > 0 {
		return &WeakPasswordError{Violations: violations}
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke sessions after password change", "user_id", userID, "error", err.Error())
	}

	return nil
}

// Profile returns the caller's user record.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return u, nil
}

// UpdateProfile changes username and/or email. A changed email loses its
// verified status and triggers a fresh verification mail.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, newUsername, newEmail *string) (*user.User, error) {
	if newUsername == nil && newEmail == nil {
		return nil, fmt.Errorf("%w: no updates provided", ErrValidation)
	}
	if newUsername != nil && !usernamePattern.MatchString(*newUsername) {
		return nil, fmt.Errorf("%w: username must be 3-30 characters of letters, digits or underscore", ErrValidation)
	}
	if newEmail != nil {
		if _, err := mail.ParseAddress(*newEmail); err != nil {
			return nil, fmt.Errorf("%w: invalid email format", ErrValidation)
		}
	}

	upd := user.ProfileUpdate{Username: newUsername, Email: newEmail}
	if newEmail != nil {
		verificationToken, err := token.GenerateOpaque()
		if err != nil {
			return nil, fmt.Errorf("failed to generate verification token: %w", err)
		}
		upd.ResetEmailVerified = true
		upd.EmailVerifyToken = verificationToken
	}

	updated, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrDuplicateUsername):
			return nil, ErrUsernameTaken
		case errors.Is(err, user.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if newEmail != nil {
		s.dispatchEmail(func(emailCtx context.Context) error {
			return s.email.SendVerificationEmail(emailCtx, *newEmail, upd.EmailVerifyToken)
		}, "verification", *newEmail)
	}

	return updated, nil
}

// VerifyEmail consumes an email verification token.
func (s *Service) VerifyEmail(ctx context.Context, verificationToken string) error {
	if err := s.users.MarkEmailVerified(ctx, verificationToken); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidVerifyToken
		}
		return fmt.Errorf("failed to verify email: %w", err)
	}
	return nil
}

// SecurityInfo is the account security summary for the authenticated user.
type SecurityInfo struct {
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	FailedAttempts  int        `json:"failed_login_attempts"`
	IsLocked        bool       `json:"is_locked"`
	LockedUntil     *time.Time `json:"locked_until,omitempty"`
	IsEmailVerified bool       `json:"email_verified"`
	ActiveSessions  int        `json:"active_sessions"`
	RegisteredAt    time.Time  `json:"registered_at"`
	LastUpdatedAt   time.Time  `json:"last_updated_at"`
}

// GetSecurityInfo reports the caller's lockout, session and audit summary.
func (s *Service) GetSecurityInfo(ctx context.Context, userID uuid.UUID) (SecurityInfo, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return SecurityInfo{}, fmt.Errorf("failed to look up user: %w", err)
	}

	active, err := s.sessions.Count(ctx, userID)
	if err != nil {
		return SecurityInfo{}, fmt.Errorf("failed to count sessions: %w", err)
	}

	return SecurityInfo{
		LastLoginAt:     u.LastLoginAt,
		FailedAttempts:  u.FailedLoginCount,
		IsLocked:        s.guard.IsLocked(u),
		LockedUntil:     u.LockedUntil,
		IsEmailVerified: u.IsEmailVerified,
		ActiveSessions:  active,
		RegisteredAt:    u.CreatedAt,
		LastUpdatedAt:   u.UpdatedAt,
	}, nil
}

// dispatchEmail runs a send in its own goroutine with a fresh context so the
// HTTP response never waits on the mail transport. Failures are logged; the
// user can re-request the email.
func (s *Service) dispatchEmail(send func(ctx context.Context) error, kind, toEmail string) {
	go func() {
		emailCtx := context.WithValue(context.Background(), logging.LoggerContextKey, s.logger)
		if err := send(emailCtx); err != nil {
			s.logger.Warn("failed to send "+kind+" email", "email", toEmail, "error", err.Error())
		}
	}()
}
