package kafka

import (
	"encoding/json"
	"time"
)

// Topics по умолчанию.
const (
	TopicOrderEvents     = "orders.events"
	TopicDeadLetterQueue = "orders.dlq"
)

// Kafka headers сообщений outbox.
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
)

// OutboxEnvelope - формат сообщения, публикуемого из outbox.
type OutboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}
