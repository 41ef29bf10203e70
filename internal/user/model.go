package user

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization level of an account.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

// AccountType distinguishes locally registered accounts from federated ones.
// Typed instead of a loose boolean flag so role/account combinations are
// checked at compile time.
type AccountType string

const (
	AccountLocal    AccountType = "local"
	AccountExternal AccountType = "external"
)

type User struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email,omitempty"`
	ExternalID string    `json:"-"`
	Role       Role      `json:"role"`

	// PasswordHash is empty for external accounts.
	PasswordHash string      `json:"-"`
	Type         AccountType `json:"-"`

	FailedLoginCount int        `json:"-"`
	LockedUntil      *time.Time `json:"-"`

	ResetToken     string     `json:"-"`
	ResetExpiresAt *time.Time `json:"-"`

	EmailVerificationToken string `json:"-"`
	IsEmailVerified        bool   `json:"email_verified"`

	LastLoginAt        *time.Time `json:"-"`
	LastLoginIP        string     `json:"-"`
	LastLoginUserAgent string     `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExternal reports whether the account authenticates through a federated
// identity provider and therefore carries no password hash.
func (u *User) IsExternal() bool {
	return u.Type == AccountExternal
}

// View is the client-safe projection of a user record. Credential, lockout
// and token state never leave the service.
type View struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email,omitempty"`
	Role          Role      `json:"role"`
	IsExternal    bool      `json:"is_external_auth_user"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// ToView strips everything a client must not see.
func (u *User) ToView() View {
	return View{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Role:          u.Role,
		IsExternal:    u.IsExternal(),
		EmailVerified: u.IsEmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}
