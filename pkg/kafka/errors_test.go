package kafka

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil error", nil, ErrorTypeUnknown},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrorTypeTransient},
		{"i/o timeout", errors.New("read tcp: i/o timeout"), ErrorTypeTransient},
		{"deadline exceeded", errors.New("context deadline exceeded"), ErrorTypeTransient},
		{"broken pipe", errors.New("write: broken pipe"), ErrorTypeTransient},
		{"schema mismatch", errors.New("unknown field in payload"), ErrorTypePermanent},
		{"explicit transient", NewTransientError("broker down", nil), ErrorTypeTransient},
		{"explicit permanent", NewPermanentError("bad envelope", nil), ErrorTypePermanent},
		{"explicit business", NewBusinessError("reservation rejected", nil), ErrorTypeBusiness},
		{"wrapped kafka error", fmt.Errorf("handler: %w", NewPermanentError("bad envelope", nil)), ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	transient := errors.New("connection refused")
	permanent := errors.New("invalid payload")

	if !ShouldRetry(transient, 0, 3) {
		t.Error("expected retry for transient error below max retries")
	}
	if ShouldRetry(transient, 3, 3) {
		t.Error("expected no retry once max retries reached")
	}
	if ShouldRetry(permanent, 0, 3) {
		t.Error("expected no retry for permanent error")
	}
	if ShouldRetry(nil, 0, 3) {
		t.Error("expected no retry for nil error")
	}
}

func TestKafkaError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewTransientError("publish failed", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestMessageBuilder_Build(t *testing.T) {
	msg := NewMessage().
		WithKey("64a0000000000000000000aa").
		WithValue(map[string]string{"status": "pending"}).
		WithEventType("reservation.created").
		WithAggregateID("64a0000000000000000000aa").
		WithSchemaVersion("1.0").
		WithSource("reservations").
		Build()

	if msg.Key != "64a0000000000000000000aa" {
		t.Errorf("expected key set, got %q", msg.Key)
	}
	if len(msg.Value) == 0 {
		t.Error("expected JSON-encoded value")
	}
	if msg.GetEventID() == "" {
		t.Error("expected generated event id")
	}
	if msg.GetEventType() != "reservation.created" {
		t.Errorf("expected event type header, got %q", msg.GetEventType())
	}
	if msg.Headers[HeaderTimestamp] == "" {
		t.Error("expected timestamp header")
	}
}

func TestMessage_RetryCount(t *testing.T) {
	msg := NewMessage().WithKey("k").WithRawValue([]byte("{}")).Build()

	if msg.GetRetryCount() != 0 {
		t.Errorf("expected retry count 0, got %d", msg.GetRetryCount())
	}

	msg.IncrementRetryCount()
	msg.IncrementRetryCount()

	if msg.GetRetryCount() != 2 {
		t.Errorf("expected retry count 2, got %d", msg.GetRetryCount())
	}
}

func TestMessage_RetryCountPastNine(t *testing.T) {
	msg := NewMessage().WithKey("k").WithRawValue([]byte("{}")).Build()

	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}

	if msg.GetRetryCount() != 12 {
		t.Errorf("expected retry count 12, got %d", msg.GetRetryCount())
	}
}
