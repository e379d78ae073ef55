package service

import (
	"context"
	"errors"
	"math"
	"time"

	reservationserrors "orbook/internal/reservations/errors"
	"orbook/internal/outbox/repository"
	"orbook/pkg/config"
	apperrors "orbook/pkg/errors"
	"orbook/pkg/kafka"
	"orbook/pkg/model"

	"github.com/google/uuid"
)

const schemaVersion = "1.0"

// EventPublisher publishes a staged event to the message bus. One publisher
// per event type, each bound to its own topic.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type OutboxService interface {
	Stage(ctx context.Context, eventType string, aggregateID string, payload map[string]any) error
	ProcessPending(ctx context.Context) (int, error)
	RetryEvent(ctx context.Context, eventID string) (*model.OutboxEvent, error)
	GetStats(ctx context.Context) (*model.OutboxStats, error)
	GetFailed(ctx context.Context, limit int, offset int64) ([]*model.OutboxEvent, int64, error)
	Maintain(ctx context.Context) error
}

type outboxService struct {
	repo       repository.OutboxRepository
	publishers map[string]EventPublisher
	cfg        *config.Config
}

func NewOutboxService(
	repo repository.OutboxRepository,
	publishers map[string]EventPublisher,
	cfg *config.Config,
) OutboxService {
	return &outboxService{
		repo:       repo,
		publishers: publishers,
		cfg:        cfg,
	}
}

// Stage inserts an event for later publication. Callers pass a
// SessionContext so the event commits with the state change it describes.
func (s *outboxService) Stage(ctx context.Context, eventType string, aggregateID string, payload map[string]any) error {
	event := &model.OutboxEvent{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: model.AggregateReservation,
		Payload:       payload,
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		return apperrors.Internal("Failed to stage outbox event", err)
	}

	s.cfg.Log.Debug("Outbox event staged",
		"event_id", event.EventID,
		"event_type", eventType,
		"aggregate_id", aggregateID,
	)
	return nil
}

// ProcessPending drains due pending events one claim at a time, so multiple
// publisher instances never publish the same event twice.
func (s *outboxService) ProcessPending(ctx context.Context) (int, error) {
	published := 0

	for i := 0; i < s.cfg.OutboxBatchSize; i++ {
		event, err := s.repo.ClaimNext(ctx, time.Now().UTC())
		if err != nil {
			return published, apperrors.Internal("Failed to claim outbox event", err)
		}
		if event == nil {
			break
		}

		if err := s.publish(ctx, event); err != nil {
			s.handlePublishFailure(ctx, event, err)
			continue
		}

		if err := s.repo.MarkCompleted(ctx, event.ID); err != nil {
			s.cfg.Log.Error("Failed to mark outbox event completed",
				"event_id", event.EventID,
				"error", err,
			)
			continue
		}
		published++
	}

	return published, nil
}

func (s *outboxService) publish(ctx context.Context, event *model.OutboxEvent) error {
	publisher, ok := s.publishers[event.EventType]
	if !ok {
		return apperrors.Internal("No publisher configured for event type: "+event.EventType, nil)
	}

	envelope := model.EventEnvelope{
		EventID:       event.EventID,
		EventType:     event.EventType,
		AggregateID:   event.AggregateID,
		Timestamp:     event.CreatedAt,
		Payload:       event.Payload,
		SchemaVersion: schemaVersion,
	}

	msg := kafka.NewMessage().
		WithKey(event.AggregateID).
		WithValue(envelope).
		WithEventID(event.EventID).
		WithEventType(event.EventType).
		WithAggregateID(event.AggregateID).
		WithSchemaVersion(schemaVersion).
		WithSource("reservations").
		Build()

	return publisher.Publish(ctx, msg)
}

// handlePublishFailure reschedules with exponential backoff, or parks the
// event as failed once retries are exhausted.
func (s *outboxService) handlePublishFailure(ctx context.Context, event *model.OutboxEvent, publishErr error) {
	retryCount := event.RetryCount + 1

	if retryCount >= s.cfg.OutboxMaxRetries {
		if err := s.repo.MarkFailed(ctx, event.ID, publishErr.Error()); err != nil {
			s.cfg.Log.Error("Failed to mark outbox event failed",
				"event_id", event.EventID,
				"error", err,
			)
			return
		}
		s.cfg.Log.Error("Outbox event failed permanently",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"retry_count", retryCount,
			"error", publishErr,
		)
		return
	}

	nextRetryAt := time.Now().UTC().Add(backoffDelay(retryCount))
	if err := s.repo.ScheduleRetry(ctx, event.ID, publishErr.Error(), retryCount, nextRetryAt); err != nil {
		s.cfg.Log.Error("Failed to schedule outbox retry",
			"event_id", event.EventID,
			"error", err,
		)
		return
	}

	s.cfg.Log.Warn("Outbox publish failed, retry scheduled",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"retry_count", retryCount,
		"next_retry_at", nextRetryAt,
		"error", publishErr,
	)
}

// backoffDelay returns 2^retryCount seconds: 2s, 4s, 8s, ...
func backoffDelay(retryCount int) time.Duration {
	return time.Duration(math.Pow(2, float64(retryCount))) * time.Second
}

func (s *outboxService) RetryEvent(ctx context.Context, eventID string) (*model.OutboxEvent, error) {
	if eventID == "" {
		return nil, apperrors.InvalidInput("Event ID cannot be empty")
	}

	event, err := s.repo.ResetForRetry(ctx, eventID)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Failed outbox event", eventID)
		}
		return nil, apperrors.Internal("Failed to retry outbox event", err)
	}

	s.cfg.Log.Info("Outbox event rearmed for retry", "event_id", eventID)
	return event, nil
}

func (s *outboxService) GetStats(ctx context.Context) (*model.OutboxStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve outbox stats", err)
	}
	return stats, nil
}

func (s *outboxService) GetFailed(ctx context.Context, limit int, offset int64) ([]*model.OutboxEvent, int64, error) {
	events, err := s.repo.FindFailed(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve failed outbox events", err)
	}

	count, err := s.repo.CountFailed(ctx)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count failed outbox events", err)
	}

	return events, count, nil
}

// Maintain reclaims events stuck in processing and prunes old completed
// events.
func (s *outboxService) Maintain(ctx context.Context) error {
	reclaimed, err := s.repo.ReclaimStuck(ctx, time.Now().UTC().Add(-s.cfg.OutboxProcessingTimeout))
	if err != nil {
		return apperrors.Internal("Failed to reclaim stuck outbox events", err)
	}
	if reclaimed > 0 {
		s.cfg.Log.Warn("Reclaimed stuck outbox events", "count", reclaimed)
	}

	deleted, err := s.repo.DeleteCompletedOlderThan(ctx, time.Now().UTC().Add(-s.cfg.OutboxRetention))
	if err != nil {
		return apperrors.Internal("Failed to prune completed outbox events", err)
	}
	if deleted > 0 {
		s.cfg.Log.Info("Pruned completed outbox events", "count", deleted)
	}

	return nil
}
