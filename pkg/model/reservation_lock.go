package model

import "time"

// ReservationLock is an advisory lock closing the window between the overlap
// pre-check and the insert. Insertion fails with a duplicate key error when
// another request holds the same slot; a TTL index reclaims locks left behind
// by crashed requests.
type ReservationLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
