package model

import "time"

const (
	OutboxPending    = "pending"
	OutboxProcessing = "processing"
	OutboxCompleted  = "completed"
	OutboxFailed     = "failed"
)

const (
	EventReservationCreated   = "reservation.created"
	EventReservationUpdated   = "reservation.updated"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationExpired   = "reservation.expired"
)

const AggregateReservation = "reservation"

// OutboxEvent is a staged domain event. It is inserted in the same storage
// transaction as the state change it describes and published by the outbox
// publisher afterwards.
type OutboxEvent struct {
	ID            string         `json:"id,omitempty" bson:"_id,omitempty"`
	EventID       string         `json:"event_id" bson:"event_id"`
	EventType     string         `json:"event_type" bson:"event_type"`
	AggregateID   string         `json:"aggregate_id" bson:"aggregate_id"`
	AggregateType string         `json:"aggregate_type" bson:"aggregate_type"`
	Payload       map[string]any `json:"payload" bson:"payload"`
	Status        string         `json:"status" bson:"status"`
	RetryCount    int            `json:"retry_count" bson:"retry_count"`
	NextRetryAt   time.Time      `json:"next_retry_at" bson:"next_retry_at"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty" bson:"error_message,omitempty"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" bson:"updated_at"`
}

// OutboxStats reports event counts grouped by status.
type OutboxStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Total      int64 `json:"total"`
}

// EventEnvelope is the wire shape published to the message bus.
type EventEnvelope struct {
	EventID       string         `json:"event_id"`
	EventType     string         `json:"event_type"`
	AggregateID   string         `json:"aggregate_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Payload       map[string]any `json:"payload"`
	SchemaVersion string         `json:"schema_version"`
}
