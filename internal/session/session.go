// Package session owns the authoritative per-user refresh-token set: a
// bounded list with FIFO eviction, explicit revocation, and opportunistic
// expiry pruning. Membership here is what makes a logged-out refresh token
// unusable even while its signature still verifies.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Store is the pluggable backing for refresh sessions. The Postgres store is
// the default; the in-memory store serves tests and single-instance
// deployments. Tokens arrive pre-hashed.
type Store interface {
	// Insert appends a session and trims the user's set down to maxPerUser,
	// evicting oldest-first.
	Insert(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, maxPerUser int) error
	// Delete removes one session; absent sessions are not an error.
	Delete(ctx context.Context, userID uuid.UUID, tokenHash string) error
	// DeleteAll empties the user's session set.
	DeleteAll(ctx context.Context, userID uuid.UUID) error
	// DeleteExpired drops sessions whose expiry has passed.
	DeleteExpired(ctx context.Context, userID uuid.UUID, now time.Time) error
	// Exists reports live membership.
	Exists(ctx context.Context, userID uuid.UUID, tokenHash string) (bool, error)
	// Count returns the number of tracked sessions for the user.
	Count(ctx context.Context, userID uuid.UUID) (int, error)
}

// Manager applies the session policy (TTL, per-user bound) on top of a Store.
type Manager struct {
	store      Store
	ttl        time.Duration
	maxPerUser int
}

func NewManager(store Store, ttl time.Duration, maxPerUser int) *Manager {
	return &Manager{store: store, ttl: ttl, maxPerUser: maxPerUser}
}

// Add tracks a freshly issued refresh token. The oldest session is evicted
// once the user exceeds the per-user bound.
func (m *Manager) Add(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	expiresAt := time.Now().Add(m.ttl)
	return m.store.Insert(ctx, userID, hashToken(refreshToken), expiresAt, m.maxPerUser)
}

// Remove forgets a single session (logout of one device). Removing a token
// that is already gone is a no-op, which makes logout idempotent.
func (m *Manager) Remove(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	return m.store.Delete(ctx, userID, hashToken(refreshToken))
}

// RevokeAll forgets every session (logout of all devices); called after
// password change or reset.
func (m *Manager) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return m.store.DeleteAll(ctx, userID)
}

// PruneExpired drops sessions past their expiry; invoked opportunistically
// during refresh.
func (m *Manager) PruneExpired(ctx context.Context, userID uuid.UUID) error {
	return m.store.DeleteExpired(ctx, userID, time.Now())
}

// Contains reports whether the presented refresh token is still live, i.e.
// not revoked, rotated out, or expired server-side.
func (m *Manager) Contains(ctx context.Context, userID uuid.UUID, refreshToken string) (bool, error) {
	return m.store.Exists(ctx, userID, hashToken(refreshToken))
}

// Count returns how many sessions the user currently holds.
func (m *Manager) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	return m.store.Count(ctx, userID)
}

// hashToken stores a digest instead of the raw token so a database leak does
// not yield replayable credentials.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
