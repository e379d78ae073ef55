package integration

import (
	"net/http"
	"testing"
	"time"

	"orbook/pkg/model"
	"orbook/test/integration/testutil"

	"go.mongodb.org/mongo-driver/bson"
)

func TestUpdate_ConfirmReservation(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp, err := client.Create(testutil.ValidReservation(), "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	created, err := client.DecodeReservation(resp)
	if err != nil {
		t.Fatalf("failed to decode reservation: %v", err)
	}

	resp, err = client.Update(created.ID, map[string]string{"status": model.StatusConfirmed})
	if err != nil {
		t.Fatalf("update request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	updated, err := client.DecodeReservation(resp)
	if err != nil {
		t.Fatalf("failed to decode reservation: %v", err)
	}

	if updated.Status != model.StatusConfirmed {
		t.Errorf("expected status confirmed, got %s", updated.Status)
	}
	if updated.Version != created.Version+1 {
		t.Errorf("expected version %d, got %d", created.Version+1, updated.Version)
	}

	staged := mongo.CountDocumentsWhere(t, testutil.OutboxEventsCollection, bson.M{
		"event_type":   model.EventReservationUpdated,
		"aggregate_id": created.ID,
	})
	if staged != 1 {
		t.Errorf("expected 1 updated event staged, got %d", staged)
	}
}

func TestUpdate_RescheduleIntoOccupiedSlot(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	first := testutil.ValidReservation()
	resp, err := client.Create(first, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	second := testutil.NewReservationBuilder().WithShift(24 * time.Hour).Build()
	resp, err = client.Create(second, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	secondCreated, err := client.DecodeReservation(resp)
	if err != nil {
		t.Fatalf("failed to decode reservation: %v", err)
	}

	// Move the second reservation onto the first one's slot
	resp, err = client.Update(secondCreated.ID, map[string]string{
		"start_time": first.StartTime.Format(time.RFC3339),
		"end_time":   first.EndTime.Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("update request failed: %v", err)
	}

	testutil.AssertStatusCode(t, resp, http.StatusConflict)
}

func TestCancel_ActiveReservation(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp, err := client.Create(testutil.ValidReservation(), "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	created, err := client.DecodeReservation(resp)
	if err != nil {
		t.Fatalf("failed to decode reservation: %v", err)
	}

	resp, err = client.Cancel(created.ID, "patient rescheduled")
	if err != nil {
		t.Fatalf("cancel request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	cancelled, err := client.DecodeReservation(resp)
	if err != nil {
		t.Fatalf("failed to decode reservation: %v", err)
	}

	if cancelled.Status != model.StatusCancelled {
		t.Errorf("expected status cancelled, got %s", cancelled.Status)
	}

	staged := mongo.CountDocumentsWhere(t, testutil.OutboxEventsCollection, bson.M{
		"event_type":   model.EventReservationCancelled,
		"aggregate_id": created.ID,
	})
	if staged != 1 {
		t.Errorf("expected 1 cancelled event staged, got %d", staged)
	}
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp, err := client.Create(testutil.ValidReservation(), "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	created, err := client.DecodeReservation(resp)
	if err != nil {
		t.Fatalf("failed to decode reservation: %v", err)
	}

	resp, err = client.Cancel(created.ID, "first cancel")
	if err != nil {
		t.Fatalf("cancel request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	resp, err = client.Cancel(created.ID, "second cancel")
	if err != nil {
		t.Fatalf("cancel request failed: %v", err)
	}

	testutil.AssertStatusCode(t, resp, http.StatusConflict)
	testutil.AssertContains(t, resp, "ALREADY_TERMINAL")
}

func TestUpdate_CancelledReservationRejected(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp, err := client.Create(testutil.ValidReservation(), "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	created, err := client.DecodeReservation(resp)
	if err != nil {
		t.Fatalf("failed to decode reservation: %v", err)
	}

	resp, err = client.Cancel(created.ID, "")
	if err != nil {
		t.Fatalf("cancel request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	resp, err = client.Update(created.ID, map[string]string{"notes": "late notes"})
	if err != nil {
		t.Fatalf("update request failed: %v", err)
	}

	testutil.AssertStatusCode(t, resp, http.StatusConflict)
	testutil.AssertContains(t, resp, "ALREADY_TERMINAL")
}

func TestCancel_FreesTheSlot(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	first := testutil.ValidReservation()
	resp, err := client.Create(first, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	created, err := client.DecodeReservation(resp)
	if err != nil {
		t.Fatalf("failed to decode reservation: %v", err)
	}

	resp, err = client.Cancel(created.ID, "")
	if err != nil {
		t.Fatalf("cancel request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	// Cancelled reservations no longer occupy the room
	resp, err = client.Create(first, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
}

func TestGetByID_NotFound(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp, err := client.GetByID("64a0000000000000000000ff")
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}

	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
}
