// Package guard implements brute-force mitigation: it tracks failed login
// attempts on a user record and computes progressive lockout state. The guard
// mutates the in-memory record only; callers persist the result.
package guard

import (
	"time"

	"github.com/cinevault/auth-service/internal/user"
)

type Guard struct {
	maxAttempts     int
	lockoutDuration time.Duration

	// now is swappable in tests to simulate lock expiry.
	now func() time.Time
}

func New(maxAttempts int, lockoutDuration time.Duration) *Guard {
	return &Guard{
		maxAttempts:     maxAttempts,
		lockoutDuration: lockoutDuration,
		now:             time.Now,
	}
}

// IsLocked reports whether the account is currently locked out.
func (g *Guard) IsLocked(u *user.User) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(g.now())
}

// RemainingLockout returns how long the lock still holds, zero when unlocked.
func (g *Guard) RemainingLockout(u *user.User) time.Duration {
	if !g.IsLocked(u) {
		return 0
	}
	return u.LockedUntil.Sub(g.now())
}

// RemainingAttempts returns how many failures are left before lockout.
func (g *Guard) RemainingAttempts(u *user.User) int {
	remaining := g.maxAttempts - u.FailedLoginCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RecordFailure registers a failed login attempt. A failure arriving after an
// expired lock restarts the counter at 1 rather than 0, so an attacker cannot
// wait out the window and retry indefinitely at the threshold. Reaching the
// threshold on an unlocked account sets the lock deadline.
func (g *Guard) RecordFailure(u *user.User) {
	now := g.now()

	if u.LockedUntil != nil && u.LockedUntil.Before(now) {
		u.FailedLoginCount = 1
		u.LockedUntil = nil
		return
	}

	u.FailedLoginCount++
	if u.FailedLoginCount >= g.maxAttempts && !g.IsLocked(u) {
		lockedUntil := now.Add(g.lockoutDuration)
		u.LockedUntil = &lockedUntil
	}
}

// RecordSuccess clears failure state after a successful login. Returns false
// when there was nothing to clear, so callers can skip the write.
func (g *Guard) RecordSuccess(u *user.User) bool {
	if u.FailedLoginCount == 0 && u.LockedUntil == nil {
		return false
	}
	u.FailedLoginCount = 0
	u.LockedUntil = nil
	return true
}
