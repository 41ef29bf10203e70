package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/cinevault/auth-service/internal/database"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
)

// Repository handles user data persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// NewUser describes a record to create. Password hash is empty for external
// accounts; email is optional for them as well.
type NewUser struct {
	Username               string
	Email                  string
	PasswordHash           string
	ExternalID             string
	Type                   AccountType
	EmailVerificationToken string
}

// Create inserts a new user into the database
func (r *Repository) Create(ctx context.Context, nu NewUser) (*User, error) {
	dbUser := &database.User{
		Username:       nu.Username,
		Email:          optional(nu.Email),
		ExternalID:     optional(nu.ExternalID),
		Role:           string(RoleCustomer),
		PasswordHash:   optional(nu.PasswordHash),
		IsExternalAuth: nu.Type == AccountExternal,

		EmailVerificationToken: optional(nu.EmailVerificationToken),
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			if strings.Contains(err.Error(), "email") {
				return nil, ErrDuplicateEmail
			}
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByUsername retrieves a user by username
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, "username = ?", username)
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "email = ?", email)
}

// GetByResetToken retrieves a user whose reset token matches and has not
// expired. An expired token behaves exactly like an unknown one.
func (r *Repository) GetByResetToken(ctx context.Context, token string, now time.Time) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("reset_token = ?", token).
		Where("reset_expires_at > ?", now).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by reset token: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where(where, arg).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// UpdateLockout persists the failed-attempt counter and lock deadline.
func (r *Repository) UpdateLockout(ctx context.Context, id uuid.UUID, failedCount int, lockedUntil *time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("failed_login_count = ?", failedCount).
		Set("locked_until = ?", lockedUntil).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update lockout state: %w", err)
	}

	return nil
}

// UpdatePassword replaces a user's password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return requireRows(result)
}

// SetResetToken stores a password-reset token with its expiry.
func (r *Repository) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("reset_token = ?", token).
		Set("reset_expires_at = ?", expiresAt).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}

	return requireRows(result)
}

// CompleteReset atomically installs the new password hash, clears the reset
// token pair, and clears lockout state. Token and expiry are never left
// independently stale.
func (r *Repository) CompleteReset(ctx context.Context, id uuid.UUID, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("reset_token = NULL").
		Set("reset_expires_at = NULL").
		Set("failed_login_count = 0").
		Set("locked_until = NULL").
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to complete password reset: %w", err)
	}

	return requireRows(result)
}

// RecordLogin stores audit fields for a successful authentication.
func (r *Repository) RecordLogin(ctx context.Context, id uuid.UUID, ip, userAgent string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("last_login_at = ?", at).
		Set("last_login_ip = ?", ip).
		Set("last_login_user_agent = ?", userAgent).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}

	return nil
}

// ProfileUpdate describes the optional profile mutations. A changed email
// resets verification and installs a fresh verification token.
type ProfileUpdate struct {
	Username           *string
	Email              *string
	EmailVerifyToken   string
	ResetEmailVerified bool
}

// UpdateProfile applies a profile update and returns the refreshed record.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*User, error) {
	q := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("updated_at = NOW()").
		Where("id = ?", id)

	if upd.Username != nil {
		q = q.Set("username = ?", *upd.Username)
	}
	if upd.Email != nil {
		q = q.Set("email = ?", *upd.Email)
	}
	if upd.ResetEmailVerified {
		q = q.Set("is_email_verified = ?", false).
			Set("email_verification_token = ?", upd.EmailVerifyToken)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			if strings.Contains(err.Error(), "email") {
				return nil, ErrDuplicateEmail
			}
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if err := requireRows(result); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// MarkEmailVerified flips the verification flag for the user holding the
// token and clears the token so it cannot be replayed.
func (r *Repository) MarkEmailVerified(ctx context.Context, token string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("is_email_verified = ?", true).
		Set("email_verification_token = NULL").
		Set("updated_at = NOW()").
		Where("email_verification_token = ?", token).
		Where("is_email_verified = ?", false).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}

	return requireRows(result)
}

func requireRows(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	accountType := AccountLocal
	if dbu.IsExternalAuth {
		accountType = AccountExternal
	}

	return &User{
		ID:         dbu.ID,
		Username:   dbu.Username,
		Email:      deref(dbu.Email),
		ExternalID: deref(dbu.ExternalID),
		Role:       Role(dbu.Role),

		PasswordHash: deref(dbu.PasswordHash),
		Type:         accountType,

		FailedLoginCount: dbu.FailedLoginCount,
		LockedUntil:      dbu.LockedUntil,

		ResetToken:     deref(dbu.ResetToken),
		ResetExpiresAt: dbu.ResetExpiresAt,

		EmailVerificationToken: deref(dbu.EmailVerificationToken),
		IsEmailVerified:        dbu.IsEmailVerified,

		LastLoginAt:        dbu.LastLoginAt,
		LastLoginIP:        deref(dbu.LastLoginIP),
		LastLoginUserAgent: deref(dbu.LastLoginUserAgent),

		CreatedAt: dbu.CreatedAt,
		UpdatedAt: dbu.UpdatedAt,
	}
}
