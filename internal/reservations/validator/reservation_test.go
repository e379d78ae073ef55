package validator

import (
	"strings"
	"testing"
	"time"

	"orbook/pkg/logger"
	"orbook/pkg/model"
)

func newTestValidator() *ReservationValidator {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return NewReservationValidator(log)
}

func futureReservation() *model.Reservation {
	start := time.Now().Add(2 * time.Hour)
	return &model.Reservation{
		OperatingRoomID: "64a000000000000000000001",
		SurgeonID:       "64a000000000000000000002",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		Status:          model.StatusPending,
		Kind:            model.KindSurgery,
	}
}

func TestValidate_ValidReservation(t *testing.T) {
	v := newTestValidator()

	if err := v.Validate(futureReservation()); err != nil {
		t.Errorf("expected valid reservation, got %v", err)
	}
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	v := newTestValidator()

	err := v.Validate(&model.Reservation{})
	if err == nil {
		t.Fatal("expected validation errors, got nil")
	}

	var validationErrs ValidationErrors
	ok := false
	if validationErrs, ok = err.(ValidationErrors); !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(validationErrs) < 4 {
		t.Errorf("expected errors for each missing field, got %d: %v", len(validationErrs), validationErrs)
	}
}

func TestValidate_InvalidObjectID(t *testing.T) {
	v := newTestValidator()

	r := futureReservation()
	r.OperatingRoomID = "not-an-object-id"

	err := v.Validate(r)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "ObjectID") {
		t.Errorf("expected ObjectID message, got %v", err)
	}
}

func TestValidate_EndBeforeStart(t *testing.T) {
	v := newTestValidator()

	r := futureReservation()
	r.EndTime = r.StartTime.Add(-time.Hour)

	if err := v.Validate(r); err == nil {
		t.Error("expected validation error for reversed range, got nil")
	}
}

func TestValidate_EndEqualsStart(t *testing.T) {
	v := newTestValidator()

	r := futureReservation()
	r.EndTime = r.StartTime

	if err := v.Validate(r); err == nil {
		t.Error("expected validation error for zero-length range, got nil")
	}
}

func TestValidate_StartInPast(t *testing.T) {
	v := newTestValidator()

	r := futureReservation()
	r.StartTime = time.Now().Add(-time.Hour)
	r.EndTime = time.Now().Add(time.Hour)

	err := v.Validate(r)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "past") {
		t.Errorf("expected past start_time message, got %v", err)
	}
}

func TestValidate_UnknownStatus(t *testing.T) {
	v := newTestValidator()

	r := futureReservation()
	r.Status = "scheduled"

	if err := v.Validate(r); err == nil {
		t.Error("expected validation error for unknown status, got nil")
	}
}

func TestValidate_UnknownKind(t *testing.T) {
	v := newTestValidator()

	r := futureReservation()
	r.Kind = "checkup"

	if err := v.Validate(r); err == nil {
		t.Error("expected validation error for unknown kind, got nil")
	}
}

func TestValidateUpdate_ValidPartial(t *testing.T) {
	v := newTestValidator()

	notes := "pre-op bloods confirmed"
	update := &model.ReservationUpdate{Notes: &notes}

	if err := v.ValidateUpdate(update); err != nil {
		t.Errorf("expected valid update, got %v", err)
	}
}

func TestValidateUpdate_TerminalStatusRejected(t *testing.T) {
	v := newTestValidator()

	// Cancellation goes through its own endpoint, not a status update
	update := &model.ReservationUpdate{Status: model.StatusCancelled}

	if err := v.ValidateUpdate(update); err == nil {
		t.Error("expected validation error for terminal status, got nil")
	}
}

func TestValidateUpdate_ReversedRange(t *testing.T) {
	v := newTestValidator()

	start := time.Now().Add(2 * time.Hour)
	end := start.Add(-time.Hour)
	update := &model.ReservationUpdate{StartTime: &start, EndTime: &end}

	if err := v.ValidateUpdate(update); err == nil {
		t.Error("expected validation error for reversed range, got nil")
	}
}

func TestValidateFields_SkipsTimeRangeRules(t *testing.T) {
	v := newTestValidator()

	reservation := futureReservation()
	reservation.StartTime = time.Now().Add(-time.Hour)
	reservation.EndTime = time.Now().Add(time.Hour)

	if err := v.ValidateFields(reservation); err != nil {
		t.Errorf("expected field validation to pass for a started reservation, got %v", err)
	}
	if err := v.Validate(reservation); err == nil {
		t.Error("expected full validation to reject the past start, got nil")
	}
}

func TestValidateTimeRange(t *testing.T) {
	v := newTestValidator()

	start := time.Now().Add(time.Hour)
	if err := v.ValidateTimeRange(start, start.Add(time.Hour)); err != nil {
		t.Errorf("expected valid range, got %v", err)
	}
	if err := v.ValidateTimeRange(start.Add(time.Hour), start); err == nil {
		t.Error("expected error for reversed range, got nil")
	}
}
