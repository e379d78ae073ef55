package integration

import (
	"net/http"
	"testing"
	"time"

	"orbook/test/integration/testutil"
)

func TestCreate_SurgeonBusyInDirectory(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	stub.SetSurgeonBusy(testutil.TestSurgeonID, "on leave")
	defer stub.SetSurgeonBusy(testutil.TestSurgeonID, "")

	resp, err := client.Create(testutil.ValidReservation(), "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	testutil.AssertStatusCode(t, resp, http.StatusConflict)
	testutil.AssertContains(t, resp, "not available")

	count := mongo.CountDocuments(t, testutil.ReservationsCollection)
	if count != 0 {
		t.Errorf("expected 0 documents in DB, got %d", count)
	}
}

func TestCreate_RoomDownInDirectory(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	stub.SetRoomDown(testutil.TestRoomID, true)
	defer stub.SetRoomDown(testutil.TestRoomID, false)

	resp, err := client.Create(testutil.ValidReservation(), "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	testutil.AssertStatusCode(t, resp, http.StatusConflict)
	testutil.AssertContains(t, resp, "not usable")

	count := mongo.CountDocuments(t, testutil.ReservationsCollection)
	if count != 0 {
		t.Errorf("expected 0 documents in DB, got %d", count)
	}
}

func TestCheckAvailability_FreeAndOccupied(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	reservation := testutil.ValidReservation()
	start := reservation.StartTime.Format(time.RFC3339)
	end := reservation.EndTime.Format(time.RFC3339)

	resp, err := client.CheckAvailability(testutil.TestRoomID, testutil.TestSurgeonID, start, end)
	if err != nil {
		t.Fatalf("availability request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.AssertContains(t, resp, `"available":true`)

	resp, err = client.Create(reservation, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	resp, err = client.CheckAvailability(testutil.TestRoomID, testutil.TestSurgeonID, start, end)
	if err != nil {
		t.Fatalf("availability request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.AssertContains(t, resp, `"available":false`)
	testutil.AssertContains(t, resp, "conflicts")
}

func TestCheckAvailability_OtherRoomStaysFree(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	reservation := testutil.ValidReservation()
	resp, err := client.Create(reservation, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	otherRoom := "64a000000000000000000009"
	start := reservation.StartTime.Format(time.RFC3339)
	end := reservation.EndTime.Format(time.RFC3339)

	resp, err = client.CheckAvailability(otherRoom, testutil.TestSurgeonID, start, end)
	if err != nil {
		t.Fatalf("availability request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.AssertContains(t, resp, `"available":true`)
}

func TestListByRoomAndSurgeon(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp, err := client.Create(testutil.ValidReservation(), "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	second := testutil.NewReservationBuilder().
		WithRoom("64a000000000000000000009").
		WithShift(24 * time.Hour).
		Build()
	resp, err = client.Create(second, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	resp, err = client.GetByRoom(testutil.TestRoomID)
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	byRoom, err := client.DecodeReservations(resp)
	if err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(byRoom) != 1 {
		t.Errorf("expected 1 reservation in room, got %d", len(byRoom))
	}

	resp, err = client.GetBySurgeon(testutil.TestSurgeonID)
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	bySurgeon, err := client.DecodeReservations(resp)
	if err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(bySurgeon) != 2 {
		t.Errorf("expected 2 reservations for surgeon, got %d", len(bySurgeon))
	}
}
