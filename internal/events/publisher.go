// Package events publishes auth lifecycle events for downstream consumers
// (notification service, analytics) over Redis pub/sub. Publication is
// fire-and-forget: a missing or unreachable broker never fails the request.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cinevault/auth-service/internal/logging"
)

const channel = "auth.events"

// Event types emitted by the auth service.
const (
	TypeUserRegistered = "user.registered"
	TypeUserLoggedIn   = "user.logged_in"
	TypeAccountLocked  = "account.locked"
	TypePasswordReset  = "password.reset"
)

// Event is the wire envelope published for every auth lifecycle change.
type Event struct {
	Type      string         `json:"event"`
	UserID    uuid.UUID      `json:"user_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publisher sends events over Redis pub/sub. A nil client degrades to a
// logged no-op so single-process deployments can run without a broker.
type Publisher struct {
	client *redis.Client
	logger *logging.Logger
}

func NewPublisher(client *redis.Client, logger *logging.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Publish emits one event. Errors are logged, never returned: event delivery
// is best-effort and must not affect the auth flow that triggered it.
func (p *Publisher) Publish(ctx context.Context, eventType string, userID uuid.UUID, data map[string]any) {
	if p.client == nil {
		p.logger.Debug("event broker not configured, skipping event", "event", eventType)
		return
	}

	payload, err := json.Marshal(Event{
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		p.logger.Error("failed to encode auth event", "event", eventType, "error", err.Error())
		return
	}

	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Warn("failed to publish auth event", "event", eventType, "error", err.Error())
	}
}
