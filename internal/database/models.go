package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the users table row. Refresh sessions live in their own table
// (RefreshToken) rather than an embedded list.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Username   string    `bun:"username,notnull,unique"`
	Email      *string   `bun:"email,unique,nullzero"`
	ExternalID *string   `bun:"external_id,unique,nullzero"`
	Role       string    `bun:"role,notnull,default:'customer'"`

	// PasswordHash is NULL for externally authenticated accounts.
	PasswordHash   *string `bun:"password_hash,nullzero"`
	IsExternalAuth bool    `bun:"is_external_auth,notnull,default:false"`

	FailedLoginCount int        `bun:"failed_login_count,notnull,default:0"`
	LockedUntil      *time.Time `bun:"locked_until,nullzero"`

	ResetToken     *string    `bun:"reset_token,nullzero"`
	ResetExpiresAt *time.Time `bun:"reset_expires_at,nullzero"`

	EmailVerificationToken *string `bun:"email_verification_token,nullzero"`
	IsEmailVerified        bool    `bun:"is_email_verified,notnull,default:false"`

	LastLoginAt        *time.Time `bun:"last_login_at,nullzero"`
	LastLoginIP        *string    `bun:"last_login_ip,nullzero"`
	LastLoginUserAgent *string    `bun:"last_login_user_agent,nullzero"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// RefreshToken is a single live refresh session for a user. Tokens are stored
// hashed; the plaintext never touches the database.
type RefreshToken struct {
	bun.BaseModel `bun:"table:user_refresh_tokens,alias:rt"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid"`
	TokenHash string    `bun:"token_hash,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
}
