package integration

import (
	"net/http"
	"os"
	"testing"

	"orbook/test/integration/testutil"
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

func TestStats_EmptyOutbox(t *testing.T) {
	mongo, _ := env.Setup(t)
	defer env.Cleanup(t, mongo)

	outbox := env.OutboxClient()

	resp, err := outbox.Stats()
	if err != nil {
		t.Fatalf("stats request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	stats, err := outbox.DecodeStats(resp)
	if err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}

	if stats.Total != 0 {
		t.Errorf("expected empty outbox, got total %d", stats.Total)
	}
}

func TestStats_CountsStagedEvents(t *testing.T) {
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp, err := client.Create(testutil.ValidReservation(), "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	outbox := env.OutboxClient()
	resp, err = outbox.Stats()
	if err != nil {
		t.Fatalf("stats request failed: %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	stats, err := outbox.DecodeStats(resp)
	if err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}

	if stats.Total < 1 {
		t.Errorf("expected at least 1 event in outbox, got %d", stats.Total)
	}
}

func TestGetFailed_EmptyList(t *testing.T) {
	mongo, _ := env.Setup(t)
	defer env.Cleanup(t, mongo)

	outbox := env.OutboxClient()

	resp, err := outbox.FailedEvents()
	if err != nil {
		t.Fatalf("failed-events request failed: %v", err)
	}

	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.AssertContains(t, resp, `"total_count":0`)
}

func TestRetry_UnknownEvent(t *testing.T) {
	mongo, _ := env.Setup(t)
	defer env.Cleanup(t, mongo)

	outbox := env.OutboxClient()

	resp, err := outbox.Retry("no-such-event")
	if err != nil {
		t.Fatalf("retry request failed: %v", err)
	}

	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
}

func TestProcess_Endpoint(t *testing.T) {
	mongo, _ := env.Setup(t)
	defer env.Cleanup(t, mongo)

	outbox := env.OutboxClient()

	resp, err := outbox.Process()
	if err != nil {
		t.Fatalf("process request failed: %v", err)
	}

	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.AssertContains(t, resp, "published")
}
