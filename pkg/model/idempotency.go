package model

import "time"

const (
	IdempotencyInProgress = "in_progress"
	IdempotencyCompleted  = "completed"
)

// IdempotencyRecord is the admission gate for duplicate booking requests.
// At most one record exists per key (unique index); the record is inserted
// before the reservation is created and resolved with the reservation id
// once the booking transaction commits. A TTL index on expires_at reclaims
// abandoned keys.
type IdempotencyRecord struct {
	Key           string    `json:"key" bson:"_id"`
	ReservationID string    `json:"reservation_id,omitempty" bson:"reservation_id,omitempty"`
	Status        string    `json:"status" bson:"status"`
	ExpiresAt     time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}
