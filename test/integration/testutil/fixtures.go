package testutil

import (
	"time"

	"orbook/pkg/model"
)

const (
	TestRoomID    = "64a000000000000000000001"
	TestSurgeonID = "64a000000000000000000002"
)

type ReservationBuilder struct {
	r model.Reservation
}

func NewReservationBuilder() *ReservationBuilder {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	return &ReservationBuilder{
		r: model.Reservation{
			OperatingRoomID: TestRoomID,
			SurgeonID:       TestSurgeonID,
			StartTime:       start,
			EndTime:         start.Add(2 * time.Hour),
			Kind:            model.KindSurgery,
			PatientName:     "Test Patient",
			Description:     "Scheduled procedure",
		},
	}
}

func (b *ReservationBuilder) WithRoom(roomID string) *ReservationBuilder {
	b.r.OperatingRoomID = roomID
	return b
}

func (b *ReservationBuilder) WithSurgeon(surgeonID string) *ReservationBuilder {
	b.r.SurgeonID = surgeonID
	return b
}

func (b *ReservationBuilder) WithTimes(start, end time.Time) *ReservationBuilder {
	b.r.StartTime = start
	b.r.EndTime = end
	return b
}

func (b *ReservationBuilder) WithShift(offset time.Duration) *ReservationBuilder {
	b.r.StartTime = b.r.StartTime.Add(offset)
	b.r.EndTime = b.r.EndTime.Add(offset)
	return b
}

func (b *ReservationBuilder) WithKind(kind string) *ReservationBuilder {
	b.r.Kind = kind
	return b
}

func (b *ReservationBuilder) WithPatient(name string) *ReservationBuilder {
	b.r.PatientName = name
	return b
}

func (b *ReservationBuilder) Build() model.Reservation {
	return b.r
}

func ValidReservation() model.Reservation {
	return NewReservationBuilder().Build()
}

func EmptyReservation() model.Reservation {
	return model.Reservation{}
}

func ReversedRangeReservation() model.Reservation {
	r := NewReservationBuilder().Build()
	r.StartTime, r.EndTime = r.EndTime, r.StartTime
	return r
}

func PastReservation() model.Reservation {
	r := NewReservationBuilder().Build()
	r.StartTime = time.Now().Add(-2 * time.Hour)
	r.EndTime = time.Now().Add(-time.Hour)
	return r
}
