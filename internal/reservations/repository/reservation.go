package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "orbook/internal/reservations/errors"
	"orbook/pkg/config"
	mongotx "orbook/pkg/db/mongo"
	"orbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reservations"
)

type mongoReservationRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error)
	FindByRoom(ctx context.Context, roomID string, limit int, offset int64) ([]*model.Reservation, error)
	FindBySurgeon(ctx context.Context, surgeonID string, limit int, offset int64) ([]*model.Reservation, error)
	Count(ctx context.Context) (int64, error)
	CountByRoom(ctx context.Context, roomID string) (int64, error)
	CountBySurgeon(ctx context.Context, surgeonID string) (int64, error)
	FindOverlapping(ctx context.Context, roomID string, startTime, endTime time.Time, excludeID string) ([]model.ReservationConflict, error)
	Update(ctx context.Context, id string, expectedVersion int64, reservation *model.Reservation) error
	TransitionStatus(ctx context.Context, id string, fromStatuses []string, toStatus string, extra bson.M) (*model.Reservation, error)
	FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Reservation, error)
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context unchanged
// with a no-op cancel function, as we cannot wrap SessionContext without breaking
// transaction semantics.
func (r *mongoReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	reservation.CreatedAt = now
	reservation.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, reservation)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		reservation.ID = oid.Hex()
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	var reservation model.Reservation
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

func (r *mongoReservationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
	return r.findByFilter(ctx, bson.M{}, limit, offset)
}

func (r *mongoReservationRepository) FindByRoom(ctx context.Context, roomID string, limit int, offset int64) ([]*model.Reservation, error) {
	return r.findByFilter(ctx, bson.M{"operating_room_id": roomID}, limit, offset)
}

func (r *mongoReservationRepository) FindBySurgeon(ctx context.Context, surgeonID string, limit int, offset int64) ([]*model.Reservation, error) {
	return r.findByFilter(ctx, bson.M{"surgeon_id": surgeonID}, limit, offset)
}

func (r *mongoReservationRepository) findByFilter(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

func (r *mongoReservationRepository) Count(ctx context.Context) (int64, error) {
	return r.countByFilter(ctx, bson.M{})
}

func (r *mongoReservationRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	return r.countByFilter(ctx, bson.M{"operating_room_id": roomID})
}

func (r *mongoReservationRepository) CountBySurgeon(ctx context.Context, surgeonID string) (int64, error) {
	return r.countByFilter(ctx, bson.M{"surgeon_id": surgeonID})
}

func (r *mongoReservationRepository) countByFilter(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

// FindOverlapping returns active reservations in the room whose half-open
// interval [start_time, end_time) intersects the requested range. A
// reservation ending exactly when another starts does not overlap.
func (r *mongoReservationRepository) FindOverlapping(ctx context.Context, roomID string, startTime, endTime time.Time, excludeID string) ([]model.ReservationConflict, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"operating_room_id": roomID,
		"status":            bson.M{"$in": model.ActiveStatuses},
		"start_time":        bson.M{"$lt": endTime},
		"end_time":          bson.M{"$gt": startTime},
	}

	if excludeID != "" {
		objectID, err := primitive.ObjectIDFromHex(excludeID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, excludeID)
		}
		filter["_id"] = bson.M{"$ne": objectID}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetProjection(bson.M{"_id": 1, "surgeon_id": 1, "start_time": 1, "end_time": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var conflicts []model.ReservationConflict
	if err = cursor.All(ctx, &conflicts); err != nil {
		return nil, fmt.Errorf("failed to decode overlapping reservations: %w", err)
	}

	return conflicts, nil
}

// Update replaces the mutable fields of a reservation, guarded by the
// expected version. MatchedCount of zero means the reservation is gone or
// was modified concurrently.
func (r *mongoReservationRepository) Update(ctx context.Context, id string, expectedVersion int64, reservation *model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "version": expectedVersion}
	update := bson.M{
		"$set": bson.M{
			"operating_room_id": reservation.OperatingRoomID,
			"surgeon_id":        reservation.SurgeonID,
			"start_time":        reservation.StartTime,
			"end_time":          reservation.EndTime,
			"status":            reservation.Status,
			"kind":              reservation.Kind,
			"description":       reservation.Description,
			"patient_name":      reservation.PatientName,
			"patient_id":        reservation.PatientID,
			"notes":             reservation.Notes,
			"updated_at":        time.Now().UTC().Truncate(time.Millisecond),
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}

	if result.MatchedCount == 0 {
		count, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
		if countErr == nil && count > 0 {
			return reservationserrors.ErrVersionMismatch
		}
		return reservationserrors.ErrNotFound
	}

	return nil
}

// TransitionStatus moves a reservation to toStatus only when its current
// status is one of fromStatuses, returning the post-transition document.
// No match with an existing document means the reservation is already
// terminal.
func (r *mongoReservationRepository) TransitionStatus(ctx context.Context, id string, fromStatuses []string, toStatus string, extra bson.M) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	set := bson.M{
		"status":     toStatus,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}
	for k, v := range extra {
		set[k] = v
	}

	filter := bson.M{"_id": objectID, "status": bson.M{"$in": fromStatuses}}
	update := bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var reservation model.Reservation
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			count, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
			if countErr == nil && count > 0 {
				return nil, reservationserrors.ErrAlreadyTerminal
			}
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to transition reservation status: %w", err)
	}

	return &reservation, nil
}

func (r *mongoReservationRepository) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":     model.StatusPending,
		"created_at": bson.M{"$lt": cutoff},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired pending reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode expired pending reservations: %w", err)
	}

	return reservations, nil
}

func (r *mongoReservationRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"status":     bson.M{"$in": model.TerminalStatuses},
		"updated_at": bson.M{"$lt": cutoff},
	}

	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to purge terminal reservations: %w", err)
	}

	return result.DeletedCount, nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
