// Package ratelimit bounds request rates per client key over fixed time
// windows, with independently configured limits per endpoint class.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/cinevault/auth-service/internal/config"
	"github.com/cinevault/auth-service/internal/logging"
)

// Class names an endpoint group with its own window and ceiling.
type Class string

const (
	ClassLogin         Class = "login"
	ClassRegister      Class = "register"
	ClassPasswordReset Class = "password_reset"
	ClassRefresh       Class = "refresh"
	ClassGeneral       Class = "general"
)

// Result of a rate-limit check. RetryAfter is set only when denied.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Store is the pluggable counter backend. The in-memory store serves a single
// instance; the Redis store shares counters across replicas. Losing counters
// on restart is acceptable.
type Store interface {
	// Incr bumps the fixed-window counter for key, creating the window when
	// absent or expired, and returns the post-increment count together with
	// the window deadline. The check-then-increment must be atomic.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Limiter gates requests by client key and endpoint class.
type Limiter struct {
	store  Store
	limits map[Class]config.Limit
	logger *logging.Logger
}

func NewLimiter(store Store, cfg config.RateLimitConfig, logger *logging.Logger) *Limiter {
	return &Limiter{
		store: store,
		limits: map[Class]config.Limit{
			ClassLogin:         cfg.Login,
			ClassRegister:      cfg.Register,
			ClassPasswordReset: cfg.PasswordReset,
			ClassRefresh:       cfg.Refresh,
			ClassGeneral:       cfg.General,
		},
		logger: logger,
	}
}

// Check records one request from key against the class limit. A store failure
// fails open: blocking legitimate traffic on an infra hiccup is worse than
// letting the burst through, and the event is logged.
func (l *Limiter) Check(ctx context.Context, key string, class Class) Result {
	limit, ok := l.limits[class]
	if !ok {
		limit = l.limits[ClassGeneral]
	}

	count, resetAt, err := l.store.Incr(ctx, storeKey(class, key), limit.Window)
	if err != nil {
		l.logger.Error("rate limit store failure, allowing request",
			"class", string(class), "error", err.Error())
		return Result{Allowed: true}
	}

	if count > int64(limit.MaxAttempts) {
		retryAfter := time.Until(resetAt)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Result{Allowed: false, RetryAfter: retryAfter}
	}

	return Result{Allowed: true}
}

func storeKey(class Class, key string) string {
	return fmt.Sprintf("ratelimit:%s:%s", class, key)
}
