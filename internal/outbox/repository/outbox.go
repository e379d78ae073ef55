package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "orbook/internal/reservations/errors"
	"orbook/pkg/config"
	"orbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "Outbox_events"

type OutboxRepository interface {
	Insert(ctx context.Context, event *model.OutboxEvent) error
	ClaimNext(ctx context.Context, now time.Time) (*model.OutboxEvent, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	ScheduleRetry(ctx context.Context, id string, errMsg string, retryCount int, nextRetryAt time.Time) error
	ResetForRetry(ctx context.Context, eventID string) (*model.OutboxEvent, error)
	FindFailed(ctx context.Context, limit int, offset int64) ([]*model.OutboxEvent, error)
	CountFailed(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*model.OutboxStats, error)
	ReclaimStuck(ctx context.Context, olderThan time.Time) (int64, error)
	DeleteCompletedOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type mongoOutboxRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoOutboxRepository(cfg *config.Config) OutboxRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoOutboxRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoOutboxRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// Insert stages an event. Called with a SessionContext so the event commits
// in the same transaction as the state change it describes.
func (r *mongoOutboxRepository) Insert(ctx context.Context, event *model.OutboxEvent) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	event.Status = model.OutboxPending
	event.RetryCount = 0
	event.NextRetryAt = now
	event.CreatedAt = now
	event.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		event.ID = oid.Hex()
	}
	return nil
}

// ClaimNext atomically moves the oldest due pending event to processing.
// Returns nil when no event is due.
func (r *mongoOutboxRepository) ClaimNext(ctx context.Context, now time.Time) (*model.OutboxEvent, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"status":        model.OutboxPending,
		"next_retry_at": bson.M{"$lte": now},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     model.OutboxProcessing,
			"updated_at": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "next_retry_at", Value: 1}}).
		SetReturnDocument(options.After)

	var event model.OutboxEvent
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim outbox event: %w", err)
	}

	return &event, nil
}

func (r *mongoOutboxRepository) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return r.updateByID(ctx, id, bson.M{
		"$set": bson.M{
			"status":        model.OutboxCompleted,
			"processed_at":  now,
			"error_message": "",
			"updated_at":    now,
		},
	})
}

// MarkFailed parks the event in the terminal failed state. Only a manual
// retry moves it back to pending.
func (r *mongoOutboxRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.updateByID(ctx, id, bson.M{
		"$set": bson.M{
			"status":        model.OutboxFailed,
			"error_message": errMsg,
			"updated_at":    time.Now().UTC().Truncate(time.Millisecond),
		},
	})
}

func (r *mongoOutboxRepository) ScheduleRetry(ctx context.Context, id string, errMsg string, retryCount int, nextRetryAt time.Time) error {
	return r.updateByID(ctx, id, bson.M{
		"$set": bson.M{
			"status":        model.OutboxPending,
			"retry_count":   retryCount,
			"next_retry_at": nextRetryAt,
			"error_message": errMsg,
			"updated_at":    time.Now().UTC().Truncate(time.Millisecond),
		},
	})
}

func (r *mongoOutboxRepository) updateByID(ctx context.Context, id string, update bson.M) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update outbox event: %w", err)
	}

	if result.MatchedCount == 0 {
		return reservationserrors.ErrNotFound
	}

	return nil
}

// ResetForRetry rearms a failed event by its public event ID: back to
// pending, retry count zeroed, due immediately.
func (r *mongoOutboxRepository) ResetForRetry(ctx context.Context, eventID string) (*model.OutboxEvent, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	filter := bson.M{"event_id": eventID, "status": model.OutboxFailed}
	update := bson.M{
		"$set": bson.M{
			"status":        model.OutboxPending,
			"retry_count":   0,
			"next_retry_at": now,
			"error_message": "",
			"updated_at":    now,
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var event model.OutboxEvent
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to reset outbox event: %w", err)
	}

	return &event, nil
}

func (r *mongoOutboxRepository) FindFailed(ctx context.Context, limit int, offset int64) ([]*model.OutboxEvent, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"status": model.OutboxFailed}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find failed outbox events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*model.OutboxEvent
	if err = cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode failed outbox events: %w", err)
	}

	return events, nil
}

func (r *mongoOutboxRepository) CountFailed(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"status": model.OutboxFailed})
	if err != nil {
		return 0, fmt.Errorf("failed to count failed outbox events: %w", err)
	}
	return count, nil
}

func (r *mongoOutboxRepository) Stats(ctx context.Context) (*model.OutboxStats, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate outbox stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode outbox stats: %w", err)
	}

	stats := &model.OutboxStats{}
	for _, row := range rows {
		switch row.Status {
		case model.OutboxPending:
			stats.Pending = row.Count
		case model.OutboxProcessing:
			stats.Processing = row.Count
		case model.OutboxCompleted:
			stats.Completed = row.Count
		case model.OutboxFailed:
			stats.Failed = row.Count
		}
		stats.Total += row.Count
	}

	return stats, nil
}

// ReclaimStuck returns processing events older than the cutoff to pending.
// Covers publisher crashes between claim and completion.
func (r *mongoOutboxRepository) ReclaimStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"status":     model.OutboxProcessing,
		"updated_at": bson.M{"$lt": olderThan},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     model.OutboxPending,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stuck outbox events: %w", err)
	}

	return result.ModifiedCount, nil
}

func (r *mongoOutboxRepository) DeleteCompletedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"status":       model.OutboxCompleted,
		"processed_at": bson.M{"$lt": cutoff},
	}

	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete completed outbox events: %w", err)
	}

	return result.DeletedCount, nil
}
