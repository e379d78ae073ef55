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
	"go.mongodb.org/mongo-driver/mongo"
)

const IdempotencyCollectionName = "Idempotency_keys"

// IdempotencyRepository provides insert-if-absent admission for idempotency
// keys. The unique constraint lives on _id, so two concurrent inserts of the
// same key cannot both succeed.
type IdempotencyRepository interface {
	Insert(ctx context.Context, record *model.IdempotencyRecord) error
	FindByKey(ctx context.Context, key string) (*model.IdempotencyRecord, error)
	Resolve(ctx context.Context, key string, reservationID string) error
	Delete(ctx context.Context, key string) error
}

type mongoIdempotencyRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoIdempotencyRepository(cfg *config.Config) IdempotencyRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoIdempotencyRepository{
		cfg:        cfg,
		collection: db.Collection(IdempotencyCollectionName),
	}
}

// Insert claims the key. Returns ErrIdempotencyKeyExists when another
// request already holds it.
func (r *mongoIdempotencyRepository) Insert(ctx context.Context, record *model.IdempotencyRecord) error {
	record.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	_, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reservationserrors.ErrIdempotencyKeyExists
		}
		return fmt.Errorf("failed to insert idempotency record: %w", err)
	}

	return nil
}

func (r *mongoIdempotencyRepository) FindByKey(ctx context.Context, key string) (*model.IdempotencyRecord, error) {
	var record model.IdempotencyRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find idempotency record: %w", err)
	}

	return &record, nil
}

// Resolve binds the key to the created reservation. Runs inside the same
// transaction as the reservation insert so the binding commits atomically.
func (r *mongoIdempotencyRepository) Resolve(ctx context.Context, key string, reservationID string) error {
	update := bson.M{
		"$set": bson.M{
			"reservation_id": reservationID,
			"status":         model.IdempotencyCompleted,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": key}, update)
	if err != nil {
		return fmt.Errorf("failed to resolve idempotency record: %w", err)
	}

	if result.MatchedCount == 0 {
		return reservationserrors.ErrNotFound
	}

	return nil
}

func (r *mongoIdempotencyRepository) Delete(ctx context.Context, key string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("failed to delete idempotency record: %w", err)
	}
	return nil
}
