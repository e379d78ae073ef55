package integration

import (
	"net/http"
	"os"
	"testing"
	"time"

	"orbook/pkg/model"
	"orbook/test/integration/testutil"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	env  *testutil.TestEnv
	stub *testutil.StubDirectory
)

func TestMain(m *testing.M) {
	env = testutil.NewTestEnv()
	stub = testutil.StartStubDirectory(env.StubAddr)
	code := m.Run()
	stub.Stop()
	os.Exit(code)
}

func TestCreate_ValidReservation(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	// Arrange
	reservation := testutil.ValidReservation()

	// Act
	resp, err := client.Create(reservation, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	// Assert
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	created, err := client.DecodeReservation(resp)
	if err != nil {
		t.Fatalf("failed to decode reservation: %v", err)
	}

	if created.ID == "" {
		t.Error("expected ID to be set")
	}
	if created.Status != model.StatusPending {
		t.Errorf("expected status pending, got %s", created.Status)
	}
	if created.Version != 1 {
		t.Errorf("expected version 1, got %d", created.Version)
	}
	if created.Kind != model.KindSurgery {
		t.Errorf("expected kind surgery, got %s", created.Kind)
	}

	// Verify it's actually in the database
	count := mongo.CountDocuments(t, testutil.ReservationsCollection)
	if count != 1 {
		t.Errorf("expected 1 document in DB, got %d", count)
	}

	// Verify the created event was staged in the same transaction
	staged := mongo.CountDocumentsWhere(t, testutil.OutboxEventsCollection, bson.M{
		"event_type":   model.EventReservationCreated,
		"aggregate_id": created.ID,
	})
	if staged != 1 {
		t.Errorf("expected 1 staged outbox event, got %d", staged)
	}
}

func TestCreate_EmptyReservation(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp, err := client.Create(testutil.EmptyReservation(), "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	testutil.AssertStatusCode(t, resp, http.StatusUnprocessableEntity)

	count := mongo.CountDocuments(t, testutil.ReservationsCollection)
	if count != 0 {
		t.Errorf("expected 0 documents in DB, got %d", count)
	}
}

func TestCreate_InvalidTimeRanges(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	testCases := []struct {
		name        string
		reservation model.Reservation
	}{
		{name: "end before start", reservation: testutil.ReversedRangeReservation()},
		{name: "start in past", reservation: testutil.PastReservation()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mongo.CleanCollection(t, testutil.ReservationsCollection)

			resp, err := client.Create(tc.reservation, "")
			if err != nil {
				t.Fatalf("create request failed: %v", err)
			}

			testutil.AssertStatusCode(t, resp, http.StatusUnprocessableEntity)

			count := mongo.CountDocuments(t, testutil.ReservationsCollection)
			if count != 0 {
				t.Errorf("expected 0 documents in DB, got %d", count)
			}
		})
	}
}

func TestCreate_OverlapRejected(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	first := testutil.ValidReservation()
	resp, err := client.Create(first, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	// Same room, range shifted one hour into the first reservation
	overlapping := testutil.NewReservationBuilder().WithShift(time.Hour).Build()

	resp, err = client.Create(overlapping, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	testutil.AssertStatusCode(t, resp, http.StatusConflict)
	testutil.AssertContains(t, resp, "overlaps")

	count := mongo.CountDocuments(t, testutil.ReservationsCollection)
	if count != 1 {
		t.Errorf("expected 1 document in DB, got %d", count)
	}
}

func TestCreate_AdjacentSlotsAllowed(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	first := testutil.ValidReservation()
	resp, err := client.Create(first, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	// Back to back: starts exactly when the first one ends
	adjacent := testutil.NewReservationBuilder().
		WithTimes(first.EndTime, first.EndTime.Add(2*time.Hour)).
		Build()

	resp, err = client.Create(adjacent, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	count := mongo.CountDocuments(t, testutil.ReservationsCollection)
	if count != 2 {
		t.Errorf("expected 2 documents in DB, got %d", count)
	}
}

func TestCreate_IdempotentReplay(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	reservation := testutil.ValidReservation()
	key := "integration-key-1"

	resp, err := client.Create(reservation, key)
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	first, err := client.DecodeReservation(resp)
	if err != nil {
		t.Fatalf("failed to decode reservation: %v", err)
	}

	// Same key again: the original reservation comes back, nothing new
	resp, err = client.Create(reservation, key)
	if err != nil {
		t.Fatalf("replay request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	replayed, err := client.DecodeReservation(resp)
	if err != nil {
		t.Fatalf("failed to decode reservation: %v", err)
	}

	if replayed.ID != first.ID {
		t.Errorf("expected replay to return reservation %s, got %s", first.ID, replayed.ID)
	}

	count := mongo.CountDocuments(t, testutil.ReservationsCollection)
	if count != 1 {
		t.Errorf("expected 1 document in DB, got %d", count)
	}

	staged := mongo.CountDocumentsWhere(t, testutil.OutboxEventsCollection, bson.M{
		"event_type": model.EventReservationCreated,
	})
	if staged != 1 {
		t.Errorf("expected 1 staged event despite replay, got %d", staged)
	}
}

func TestCreate_FreshKeyAfterRejection(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp, err := client.Create(testutil.ValidReservation(), "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	// Conflict discards the key, so the same key works for a free slot
	key := "integration-key-2"
	overlapping := testutil.NewReservationBuilder().WithShift(time.Hour).Build()
	resp, err = client.Create(overlapping, key)
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusConflict)

	free := testutil.NewReservationBuilder().WithShift(48 * time.Hour).Build()
	resp, err = client.Create(free, key)
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	count := mongo.CountDocuments(t, testutil.ReservationsCollection)
	if count != 2 {
		t.Errorf("expected 2 documents in DB, got %d", count)
	}
}
