// Package analytics publishes product events to a Redis stream for
// downstream processing.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamEvents is the stream product events are appended to.
const StreamEvents = "analytics:events"

// SchemaVersionV1 tags every published message.
const SchemaVersionV1 = "v1"

// Event names
const (
	EventReminderSent = "reminder_sent"
)

// maxStreamLen is an approximate cap on retained messages.
const maxStreamLen = 10000

// Event is the JSON payload of one stream message.
type Event struct {
	UserID     string         `json:"user_id"`
	Event      string         `json:"event"`
	Properties map[string]any `json:"properties,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Publisher appends events to StreamEvents. A nil Publisher drops events.
type Publisher struct {
	rdb    streamAdder
	closer func() error
	now    func() time.Time
}

// NewPublisher connects to redisURL. An empty URL yields a nil Publisher.
func NewPublisher(redisURL string) (*Publisher, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	return &Publisher{rdb: client, closer: client.Close, now: time.Now}, nil
}

// Capture publishes one event.
func (p *Publisher) Capture(ctx context.Context, userID, event string, props map[string]any) error {
	if p == nil {
		return nil
	}

	now := p.now().UTC()
	payload, err := json.Marshal(Event{UserID: userID, Event: event, Properties: props, OccurredAt: now})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	res := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamEvents,
		MaxLen: maxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{
			"payload":        string(payload),
			"event":          event,
			"published_at":   now.Unix(),
			"schema_version": SchemaVersionV1,
		},
	})
	if err := res.Err(); err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	if p == nil || p.closer == nil {
		return nil
	}
	return p.closer()
}
