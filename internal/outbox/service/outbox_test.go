package service

import (
	"context"
	"errors"
	"testing"
	"time"

	reservationserrors "orbook/internal/reservations/errors"
	"orbook/pkg/config"
	apperrors "orbook/pkg/errors"
	"orbook/pkg/kafka"
	"orbook/pkg/logger"
	"orbook/pkg/model"
)

type mockOutboxRepository struct {
	insertFunc        func(ctx context.Context, event *model.OutboxEvent) error
	claimNextFunc     func(ctx context.Context, now time.Time) (*model.OutboxEvent, error)
	resetForRetryFunc func(ctx context.Context, eventID string) (*model.OutboxEvent, error)
	statsFunc         func(ctx context.Context) (*model.OutboxStats, error)
	reclaimStuckFunc  func(ctx context.Context, olderThan time.Time) (int64, error)
	deleteOldFunc     func(ctx context.Context, cutoff time.Time) (int64, error)

	completed []string
	failed    map[string]string
	retries   []scheduledRetry
}

type scheduledRetry struct {
	id          string
	retryCount  int
	nextRetryAt time.Time
}

func (m *mockOutboxRepository) Insert(ctx context.Context, event *model.OutboxEvent) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, event)
	}
	event.ID = "64a0000000000000000000e1"
	return nil
}

func (m *mockOutboxRepository) ClaimNext(ctx context.Context, now time.Time) (*model.OutboxEvent, error) {
	if m.claimNextFunc != nil {
		return m.claimNextFunc(ctx, now)
	}
	return nil, nil
}

func (m *mockOutboxRepository) MarkCompleted(ctx context.Context, id string) error {
	m.completed = append(m.completed, id)
	return nil
}

func (m *mockOutboxRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	if m.failed == nil {
		m.failed = map[string]string{}
	}
	m.failed[id] = errMsg
	return nil
}

func (m *mockOutboxRepository) ScheduleRetry(ctx context.Context, id string, errMsg string, retryCount int, nextRetryAt time.Time) error {
	m.retries = append(m.retries, scheduledRetry{id: id, retryCount: retryCount, nextRetryAt: nextRetryAt})
	return nil
}

func (m *mockOutboxRepository) ResetForRetry(ctx context.Context, eventID string) (*model.OutboxEvent, error) {
	if m.resetForRetryFunc != nil {
		return m.resetForRetryFunc(ctx, eventID)
	}
	return nil, reservationserrors.ErrNotFound
}

func (m *mockOutboxRepository) FindFailed(ctx context.Context, limit int, offset int64) ([]*model.OutboxEvent, error) {
	return []*model.OutboxEvent{}, nil
}

func (m *mockOutboxRepository) CountFailed(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockOutboxRepository) Stats(ctx context.Context) (*model.OutboxStats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx)
	}
	return &model.OutboxStats{}, nil
}

func (m *mockOutboxRepository) ReclaimStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	if m.reclaimStuckFunc != nil {
		return m.reclaimStuckFunc(ctx, olderThan)
	}
	return 0, nil
}

func (m *mockOutboxRepository) DeleteCompletedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteOldFunc != nil {
		return m.deleteOldFunc(ctx, cutoff)
	}
	return 0, nil
}

type mockPublisher struct {
	publishFunc func(ctx context.Context, msg kafka.Message) error
	published   []kafka.Message
}

func (m *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	if m.publishFunc != nil {
		return m.publishFunc(ctx, msg)
	}
	m.published = append(m.published, msg)
	return nil
}

func newTestOutboxService(repo *mockOutboxRepository, publishers map[string]EventPublisher) OutboxService {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})

	cfg := &config.Config{
		Log:                     log,
		OutboxBatchSize:         10,
		OutboxMaxRetries:        3,
		OutboxProcessingTimeout: 5 * time.Minute,
		OutboxRetention:         7 * 24 * time.Hour,
	}

	return NewOutboxService(repo, publishers, cfg)
}

func pendingEvent(retryCount int) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:          "64a0000000000000000000e1",
		EventID:     "evt-1",
		EventType:   model.EventReservationCreated,
		AggregateID: "64a0000000000000000000aa",
		Payload:     map[string]any{"reservation_id": "64a0000000000000000000aa"},
		Status:      model.OutboxPending,
		RetryCount:  retryCount,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffDelay(tt.retryCount); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.retryCount, got, tt.want)
		}
	}
}

func TestProcessPending_PublishesAndCompletes(t *testing.T) {
	event := pendingEvent(0)
	claims := 0
	repo := &mockOutboxRepository{
		claimNextFunc: func(ctx context.Context, now time.Time) (*model.OutboxEvent, error) {
			claims++
			if claims == 1 {
				return event, nil
			}
			return nil, nil
		},
	}
	publisher := &mockPublisher{}
	svc := newTestOutboxService(repo, map[string]EventPublisher{
		model.EventReservationCreated: publisher,
	})

	published, err := svc.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if published != 1 {
		t.Errorf("expected 1 published, got %d", published)
	}
	if len(repo.completed) != 1 || repo.completed[0] != event.ID {
		t.Errorf("expected event marked completed, got %v", repo.completed)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 message published, got %d", len(publisher.published))
	}

	msg := publisher.published[0]
	if string(msg.Key) != event.AggregateID {
		t.Errorf("expected message keyed by aggregate id, got %s", msg.Key)
	}

	var envelope model.EventEnvelope
	if err := msg.DecodeValue(&envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if envelope.EventID != event.EventID {
		t.Errorf("expected event id %s, got %s", event.EventID, envelope.EventID)
	}
	if envelope.SchemaVersion != "1.0" {
		t.Errorf("expected schema version 1.0, got %s", envelope.SchemaVersion)
	}
}

func TestProcessPending_SchedulesRetryWithBackoff(t *testing.T) {
	event := pendingEvent(0)
	claims := 0
	repo := &mockOutboxRepository{
		claimNextFunc: func(ctx context.Context, now time.Time) (*model.OutboxEvent, error) {
			claims++
			if claims == 1 {
				return event, nil
			}
			return nil, nil
		},
	}
	publisher := &mockPublisher{
		publishFunc: func(ctx context.Context, msg kafka.Message) error {
			return errors.New("broker unreachable")
		},
	}
	svc := newTestOutboxService(repo, map[string]EventPublisher{
		model.EventReservationCreated: publisher,
	})

	before := time.Now().UTC()
	published, err := svc.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if published != 0 {
		t.Errorf("expected 0 published, got %d", published)
	}
	if len(repo.retries) != 1 {
		t.Fatalf("expected 1 scheduled retry, got %d", len(repo.retries))
	}

	retry := repo.retries[0]
	if retry.retryCount != 1 {
		t.Errorf("expected retry count 1, got %d", retry.retryCount)
	}
	// First retry backs off two seconds
	if retry.nextRetryAt.Before(before.Add(2 * time.Second)) {
		t.Errorf("expected next retry at least 2s out, got %v", retry.nextRetryAt.Sub(before))
	}
	if retry.nextRetryAt.After(before.Add(10 * time.Second)) {
		t.Errorf("next retry scheduled too far out: %v", retry.nextRetryAt.Sub(before))
	}
	if len(repo.failed) != 0 {
		t.Errorf("expected no events marked failed, got %v", repo.failed)
	}
}

func TestProcessPending_ExhaustedRetriesParkEvent(t *testing.T) {
	// Already failed twice, the next failure is terminal at maxRetries 3
	event := pendingEvent(2)
	claims := 0
	repo := &mockOutboxRepository{
		claimNextFunc: func(ctx context.Context, now time.Time) (*model.OutboxEvent, error) {
			claims++
			if claims == 1 {
				return event, nil
			}
			return nil, nil
		},
	}
	publisher := &mockPublisher{
		publishFunc: func(ctx context.Context, msg kafka.Message) error {
			return errors.New("broker unreachable")
		},
	}
	svc := newTestOutboxService(repo, map[string]EventPublisher{
		model.EventReservationCreated: publisher,
	})

	published, err := svc.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if published != 0 {
		t.Errorf("expected 0 published, got %d", published)
	}
	if len(repo.retries) != 0 {
		t.Errorf("expected no retry scheduled, got %v", repo.retries)
	}
	if _, ok := repo.failed[event.ID]; !ok {
		t.Errorf("expected event parked as failed, got %v", repo.failed)
	}
}

func TestProcessPending_NoPublisherForEventType(t *testing.T) {
	event := pendingEvent(2)
	event.EventType = "reservation.unknown"
	claims := 0
	repo := &mockOutboxRepository{
		claimNextFunc: func(ctx context.Context, now time.Time) (*model.OutboxEvent, error) {
			claims++
			if claims == 1 {
				return event, nil
			}
			return nil, nil
		},
	}
	svc := newTestOutboxService(repo, map[string]EventPublisher{})

	published, err := svc.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if published != 0 {
		t.Errorf("expected 0 published, got %d", published)
	}
	if _, ok := repo.failed[event.ID]; !ok {
		t.Errorf("expected event failed when no publisher configured, got %v", repo.failed)
	}
}

func TestProcessPending_StopsWhenQueueEmpty(t *testing.T) {
	repo := &mockOutboxRepository{}
	svc := newTestOutboxService(repo, map[string]EventPublisher{})

	published, err := svc.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if published != 0 {
		t.Errorf("expected 0 published, got %d", published)
	}
}

func TestStage_AssignsEventID(t *testing.T) {
	var inserted *model.OutboxEvent
	repo := &mockOutboxRepository{
		insertFunc: func(ctx context.Context, event *model.OutboxEvent) error {
			inserted = event
			return nil
		},
	}
	svc := newTestOutboxService(repo, nil)

	err := svc.Stage(context.Background(), model.EventReservationCreated, "64a0000000000000000000aa", map[string]any{"status": "pending"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inserted == nil {
		t.Fatal("expected event inserted")
	}
	if inserted.EventID == "" {
		t.Error("expected generated event id")
	}
	if inserted.EventType != model.EventReservationCreated {
		t.Errorf("expected event type %s, got %s", model.EventReservationCreated, inserted.EventType)
	}
	if inserted.AggregateType != model.AggregateReservation {
		t.Errorf("expected aggregate type %s, got %s", model.AggregateReservation, inserted.AggregateType)
	}
}

func TestRetryEvent_NotFound(t *testing.T) {
	repo := &mockOutboxRepository{}
	svc := newTestOutboxService(repo, nil)

	_, err := svc.RetryEvent(context.Background(), "missing-event")
	if err == nil {
		t.Fatal("expected not-found error, got nil")
	}
	if apperrors.AsAppError(err).Code != apperrors.CodeNotFound {
		t.Errorf("expected %s, got %s", apperrors.CodeNotFound, apperrors.AsAppError(err).Code)
	}
}

func TestRetryEvent_RearmsFailedEvent(t *testing.T) {
	repo := &mockOutboxRepository{
		resetForRetryFunc: func(ctx context.Context, eventID string) (*model.OutboxEvent, error) {
			event := pendingEvent(0)
			event.EventID = eventID
			return event, nil
		},
	}
	svc := newTestOutboxService(repo, nil)

	event, err := svc.RetryEvent(context.Background(), "evt-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.EventID != "evt-9" {
		t.Errorf("expected event evt-9, got %s", event.EventID)
	}
	if event.Status != model.OutboxPending {
		t.Errorf("expected pending status, got %s", event.Status)
	}
}

func TestRetryEvent_EmptyID(t *testing.T) {
	svc := newTestOutboxService(&mockOutboxRepository{}, nil)

	_, err := svc.RetryEvent(context.Background(), "")
	if err == nil {
		t.Fatal("expected invalid input error, got nil")
	}
	if apperrors.AsAppError(err).Code != apperrors.CodeInvalidInput {
		t.Errorf("expected %s, got %s", apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)
	}
}

func TestMaintain_ReclaimsAndPrunes(t *testing.T) {
	var reclaimCutoff, pruneCutoff time.Time
	repo := &mockOutboxRepository{
		reclaimStuckFunc: func(ctx context.Context, olderThan time.Time) (int64, error) {
			reclaimCutoff = olderThan
			return 2, nil
		},
		deleteOldFunc: func(ctx context.Context, cutoff time.Time) (int64, error) {
			pruneCutoff = cutoff
			return 5, nil
		},
	}
	svc := newTestOutboxService(repo, nil)

	if err := svc.Maintain(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now := time.Now().UTC()
	if d := now.Sub(reclaimCutoff); d < 4*time.Minute || d > 6*time.Minute {
		t.Errorf("expected reclaim cutoff about 5m back, got %v", d)
	}
	if d := now.Sub(pruneCutoff); d < 6*24*time.Hour || d > 8*24*time.Hour {
		t.Errorf("expected prune cutoff about 7d back, got %v", d)
	}
}
