package model

import "time"

// OperatingRoomCounter tracks how many active reservations currently hold
// the room. The counter is adjusted inside the same transaction as the
// reservation write; the room's usability flag itself lives in the external
// rooms directory.
type OperatingRoomCounter struct {
	RoomID              string    `json:"room_id" bson:"_id"`
	CurrentReservations int64     `json:"current_reservations" bson:"current_reservations"`
	UpdatedAt           time.Time `json:"updated_at" bson:"updated_at"`
}
