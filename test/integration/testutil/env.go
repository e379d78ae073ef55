package testutil

import (
	"fmt"
	"os"
	"testing"
	"time"

	"orbook/pkg/client"
)

const DefaultHealthCheckTimeout = 30 * time.Second

// TestEnv describes the externally running service under test. The suite
// expects the reservations service, Mongo, and the directory stub to be up,
// with STAFF_SERVICE_URL and ROOMS_SERVICE_URL pointing at the stub address.
type TestEnv struct {
	MongoURI     string
	DatabaseName string
	ServerURL    string
	StubAddr     string
}

func NewTestEnv() *TestEnv {
	mongoURI := getEnv("TEST_MONGO_URI", DefaultMongoURI)
	dbName := getEnv("TEST_DB_NAME", DefaultDatabaseName)
	serverPort := getEnv("TEST_SERVER_PORT", "8080")
	serverURL := getEnv("TEST_SERVER_URL", fmt.Sprintf("http://localhost:%s", serverPort))
	stubAddr := getEnv("TEST_STUB_ADDR", DefaultStubAddr)

	return &TestEnv{
		MongoURI:     mongoURI,
		DatabaseName: dbName,
		ServerURL:    serverURL,
		StubAddr:     stubAddr,
	}
}

func (e *TestEnv) Setup(t *testing.T) (*MongoHelper, *client.ReservationClient) {
	t.Helper()

	mongo := NewMongoHelper(t, e.MongoURI, e.DatabaseName)
	mongo.CleanDatabase(t)

	if err := client.NewHttpClient(e.ServerURL).WaitForHealthy(DefaultHealthCheckTimeout); err != nil {
		t.Fatalf("service is not healthy: %v", err)
	}

	return mongo, client.NewReservationClient(e.ServerURL)
}

func (e *TestEnv) OutboxClient() *client.OutboxClient {
	return client.NewOutboxClient(e.ServerURL)
}

func (e *TestEnv) Cleanup(t *testing.T, mongo *MongoHelper) {
	t.Helper()

	if mongo != nil {
		mongo.CleanDatabase(t)
		mongo.Close(t)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
