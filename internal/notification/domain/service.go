package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrNotConfigured = errors.New("notification_client_not_configured")

// Publisher records events for later delivery. Callers treat failures as non-fatal.
type Publisher interface {
	PublishAccessGranted(ctx context.Context, evt AccessGranted) error
}

type Repository interface {
	Insert(ctx context.Context, evt AccessEvent) error
	ListPending(ctx context.Context, limit, maxAttempts int) ([]AccessEvent, error)
	CountPending(ctx context.Context, maxAttempts int) (int64, error)
	MarkPublished(ctx context.Context, id snowflake.ID, at time.Time) error
	MarkFailed(ctx context.Context, id snowflake.ID, reason string) error
}

// Message is the body posted to the notification service.
type Message struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	ResidenceID string          `json:"residence_id"`
	UserID      string          `json:"user_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Client delivers a message to the external notification service.
type Client interface {
	Deliver(ctx context.Context, msg Message) error
}

// Relay moves pending outbox rows to the notification service.
type Relay interface {
	RelayPending(ctx context.Context) (int, error)
}
