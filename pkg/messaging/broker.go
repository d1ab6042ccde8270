package messaging

import (
	"context"
	"encoding/json"
	"time"
)

// Broker publishes domain events to subscribers outside this service.
type Broker interface {
	Publish(ctx context.Context, channel string, message []byte) error
	PingContext(ctx context.Context) error
	Close() error
}

// Message is the envelope published for every outbox event.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Channel returns the channel an event type is published on.
func Channel(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}
