package model

import (
	"time"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

const (
	KindSurgery      = "surgery"
	KindConsultation = "consultation"
	KindEmergency    = "emergency"
	KindMaintenance  = "maintenance"
)

// ActiveStatuses are the statuses that occupy the operating room for
// conflict detection purposes.
var ActiveStatuses = []string{StatusPending, StatusConfirmed}

// TerminalStatuses never transition to anything else.
var TerminalStatuses = []string{StatusCancelled, StatusExpired}

type Reservation struct {
	ID              string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	OperatingRoomID string    `json:"operating_room_id" bson:"operating_room_id" validate:"required,mongodb"`
	SurgeonID       string    `json:"surgeon_id" bson:"surgeon_id" validate:"required,mongodb"`
	StartTime       time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime         time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status          string    `json:"status" bson:"status" validate:"required,oneof=pending confirmed cancelled expired"`
	Kind            string    `json:"kind" bson:"kind" validate:"required,oneof=surgery consultation emergency maintenance"`
	Description     string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=500"`
	PatientName     string    `json:"patient_name,omitempty" bson:"patient_name,omitempty" validate:"omitempty,max=200"`
	PatientID       string    `json:"patient_id,omitempty" bson:"patient_id,omitempty" validate:"omitempty,max=64"`
	Notes           string    `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=2000"`
	CancelledBy     string    `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	IdempotencyKey  string    `json:"idempotency_key,omitempty" bson:"idempotency_key,omitempty"`
	Version         int64     `json:"version" bson:"version"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

func (r *Reservation) IsTerminal() bool {
	return r.Status == StatusCancelled || r.Status == StatusExpired
}

type ReservationUpdate struct {
	OperatingRoomID string     `json:"operating_room_id,omitempty" validate:"omitempty,mongodb"`
	SurgeonID       string     `json:"surgeon_id,omitempty" validate:"omitempty,mongodb"`
	StartTime       *time.Time `json:"start_time,omitempty" validate:"omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty" validate:"omitempty"`
	Status          string     `json:"status,omitempty" validate:"omitempty,oneof=pending confirmed"`
	Kind            string     `json:"kind,omitempty" validate:"omitempty,oneof=surgery consultation emergency maintenance"`
	Description     *string    `json:"description,omitempty" validate:"omitempty,max=500"`
	PatientName     *string    `json:"patient_name,omitempty" validate:"omitempty,max=200"`
	PatientID       *string    `json:"patient_id,omitempty" validate:"omitempty,max=64"`
	Notes           *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ReservationConflict describes an existing reservation that overlaps a
// requested time range.
type ReservationConflict struct {
	ReservationID string    `json:"reservation_id" bson:"_id"`
	SurgeonID     string    `json:"surgeon_id" bson:"surgeon_id"`
	StartTime     time.Time `json:"start_time" bson:"start_time"`
	EndTime       time.Time `json:"end_time" bson:"end_time"`
}

type AvailabilityResult struct {
	Available bool                  `json:"available"`
	Conflicts []ReservationConflict `json:"conflicts,omitempty"`
}
