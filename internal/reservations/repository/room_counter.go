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
	"go.mongodb.org/mongo-driver/mongo/options"
)

const RoomCounterCollectionName = "Operating_room_counters"

// RoomCounterRepository maintains the per-room count of active reservations.
// Increments happen inside the reservation transaction so the counter never
// drifts from the ledger.
type RoomCounterRepository interface {
	Increment(ctx context.Context, roomID string, delta int64) error
	Get(ctx context.Context, roomID string) (*model.OperatingRoomCounter, error)
}

type mongoRoomCounterRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoRoomCounterRepository(cfg *config.Config) RoomCounterRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRoomCounterRepository{
		cfg:        cfg,
		collection: db.Collection(RoomCounterCollectionName),
	}
}

func (r *mongoRoomCounterRepository) Increment(ctx context.Context, roomID string, delta int64) error {
	filter := bson.M{"_id": roomID}
	update := bson.M{
		"$inc": bson.M{"current_reservations": delta},
		"$set": bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
	}

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to update room counter: %w", err)
	}

	return nil
}

func (r *mongoRoomCounterRepository) Get(ctx context.Context, roomID string) (*model.OperatingRoomCounter, error) {
	var counter model.OperatingRoomCounter
	err := r.collection.FindOne(ctx, bson.M{"_id": roomID}).Decode(&counter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find room counter: %w", err)
	}

	return &counter, nil
}
