package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	reservationserrors "orbook/internal/reservations/errors"
	"orbook/internal/reservations/repository"
	"orbook/internal/reservations/validator"
	"orbook/pkg/client"
	"orbook/pkg/config"
	apperrors "orbook/pkg/errors"
	"orbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// StaffAvailabilityChecker asks the staff directory whether a surgeon is
// free for a time range.
type StaffAvailabilityChecker interface {
	CheckAvailability(ctx context.Context, actorID, role string, startTime, endTime time.Time) (*client.StaffAvailability, error)
}

// RoomUsabilityChecker asks the room directory whether an operating room is
// active and not under maintenance.
type RoomUsabilityChecker interface {
	IsRoomUsable(ctx context.Context, roomID string) (bool, error)
}

// EventStager stages a domain event in the caller's transaction.
type EventStager interface {
	Stage(ctx context.Context, eventType string, aggregateID string, payload map[string]any) error
}

type ReservationService interface {
	Create(ctx context.Context, reservation *model.Reservation, idempotencyKey string) (*model.Reservation, error)
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error)
	GetByRoom(ctx context.Context, roomID string, limit int, offset int64) ([]*model.Reservation, int64, error)
	GetBySurgeon(ctx context.Context, surgeonID string, limit int, offset int64) ([]*model.Reservation, int64, error)
	Update(ctx context.Context, id string, updates *model.ReservationUpdate) (*model.Reservation, error)
	Cancel(ctx context.Context, id string, reason string, cancelledBy string) (*model.Reservation, error)
	CheckAvailability(ctx context.Context, roomID string, startTime, endTime time.Time, excludeID string) (*model.AvailabilityResult, error)
	ExpireOverdue(ctx context.Context) (int, error)
	PurgeOld(ctx context.Context) (int64, error)
}

type reservationService struct {
	repo        repository.ReservationRepository
	lockRepo    repository.ReservationLockRepository
	idemRepo    repository.IdempotencyRepository
	counterRepo repository.RoomCounterRepository
	outbox      EventStager
	staff       StaffAvailabilityChecker
	rooms       RoomUsabilityChecker
	validator   *validator.ReservationValidator
	cfg         *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.ReservationLockRepository,
	idemRepo repository.IdempotencyRepository,
	counterRepo repository.RoomCounterRepository,
	outbox EventStager,
	staff StaffAvailabilityChecker,
	rooms RoomUsabilityChecker,
	validator *validator.ReservationValidator,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:        repo,
		lockRepo:    lockRepo,
		idemRepo:    idemRepo,
		counterRepo: counterRepo,
		outbox:      outbox,
		staff:       staff,
		rooms:       rooms,
		validator:   validator,
		cfg:         cfg,
	}
}

func (s *reservationService) Create(ctx context.Context, reservation *model.Reservation, idempotencyKey string) (*model.Reservation, error) {
	s.applyDefaults(reservation)
	if err := s.validate(reservation); err != nil {
		return nil, err
	}

	// Idempotency admission: claim the key before any state changes so a
	// duplicate arriving mid-flight sees the claim, not a missing record.
	if idempotencyKey != "" {
		existing, err := s.admitIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		reservation.IdempotencyKey = idempotencyKey
	}

	if err := s.checkExternalGuards(ctx, reservation); err != nil {
		s.discardIdempotencyKey(ctx, idempotencyKey)
		return nil, err
	}

	// Advisory lock serializes creations per room so the overlap re-check
	// inside the transaction cannot race a concurrent insert.
	lockID, err := s.acquireSlotLock(ctx, reservation.OperatingRoomID)
	if err != nil {
		s.discardIdempotencyKey(ctx, idempotencyKey)
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseSlotLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release reservation lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyNoConflict(sessCtx, reservation.OperatingRoomID, reservation.StartTime, reservation.EndTime, ""); err != nil {
			return err
		}

		if err := s.repo.Create(sessCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}

		if err := s.counterRepo.Increment(sessCtx, reservation.OperatingRoomID, 1); err != nil {
			return apperrors.Internal("Failed to increment room counter", err)
		}

		if err := s.outbox.Stage(sessCtx, model.EventReservationCreated, reservation.ID, reservationPayload(reservation)); err != nil {
			return err
		}

		if idempotencyKey != "" {
			if err := s.idemRepo.Resolve(sessCtx, idempotencyKey, reservation.ID); err != nil {
				return apperrors.Internal("Failed to resolve idempotency key", err)
			}
		}

		return nil
	})
	if err != nil {
		s.discardIdempotencyKey(ctx, idempotencyKey)
		s.cfg.Log.Error("Failed to create reservation", "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"operating_room_id", reservation.OperatingRoomID,
		"surgeon_id", reservation.SurgeonID,
		"start_time", reservation.StartTime,
	)
	return reservation, nil
}

// admitIdempotencyKey claims the key. Returns the previously created
// reservation when the key is already resolved, a conflict error when a
// concurrent request holds it, nil/nil when the claim is fresh.
func (s *reservationService) admitIdempotencyKey(ctx context.Context, key string) (*model.Reservation, error) {
	record := &model.IdempotencyRecord{
		Key:       key,
		Status:    model.IdempotencyInProgress,
		ExpiresAt: time.Now().UTC().Add(s.cfg.IdempotencyTTL),
	}

	err := s.idemRepo.Insert(ctx, record)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, reservationserrors.ErrIdempotencyKeyExists) {
		return nil, apperrors.Internal("Failed to claim idempotency key", err)
	}

	existing, findErr := s.idemRepo.FindByKey(ctx, key)
	if findErr != nil {
		return nil, apperrors.Internal("Failed to look up idempotency key", findErr)
	}

	if existing.Status == model.IdempotencyInProgress {
		return nil, apperrors.Conflict("A request with this idempotency key is already in progress")
	}

	reservation, findErr := s.repo.FindByID(ctx, existing.ReservationID)
	if findErr != nil {
		return nil, apperrors.Internal("Failed to load reservation for idempotency key", findErr)
	}

	s.cfg.Log.Info("Idempotent replay served from existing reservation",
		"idempotency_key", key,
		"reservation_id", reservation.ID,
	)
	return reservation, nil
}

// discardIdempotencyKey drops a claimed key after a failed attempt so the
// caller can retry with the same key.
func (s *reservationService) discardIdempotencyKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idemRepo.Delete(ctx, key); err != nil {
		s.cfg.Log.Warn("Failed to discard idempotency key", "idempotency_key", key, "error", err)
	}
}

// checkExternalGuards verifies surgeon availability and room usability.
// Any dependency failure denies the reservation.
func (s *reservationService) checkExternalGuards(ctx context.Context, reservation *model.Reservation) error {
	availability, err := s.staff.CheckAvailability(ctx, reservation.SurgeonID, "surgeon", reservation.StartTime, reservation.EndTime)
	if err != nil {
		s.cfg.Log.Error("Staff availability check failed", "surgeon_id", reservation.SurgeonID, "error", err)
		return apperrors.Unavailable("Staff availability service")
	}
	if !availability.Available {
		return apperrors.Conflict("Surgeon is not available for the requested time range").WithDetails(map[string]any{
			"surgeon_id": reservation.SurgeonID,
			"reason":     availability.Reason,
		})
	}

	usable, err := s.rooms.IsRoomUsable(ctx, reservation.OperatingRoomID)
	if err != nil {
		s.cfg.Log.Error("Room usability check failed", "operating_room_id", reservation.OperatingRoomID, "error", err)
		return apperrors.Unavailable("Operating room service")
	}
	if !usable {
		return apperrors.Conflict("Operating room is not usable").WithDetails(map[string]any{
			"operating_room_id": reservation.OperatingRoomID,
		})
	}

	return nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateLookupError(err, id)
	}

	return reservation, nil
}

func (s *reservationService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error) {
	return s.list(ctx,
		func(ctx context.Context) ([]*model.Reservation, error) { return s.repo.FindAll(ctx, limit, offset) },
		func(ctx context.Context) (int64, error) { return s.repo.Count(ctx) },
	)
}

func (s *reservationService) GetByRoom(ctx context.Context, roomID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if roomID == "" {
		return nil, 0, apperrors.InvalidInput("Operating room ID cannot be empty")
	}
	return s.list(ctx,
		func(ctx context.Context) ([]*model.Reservation, error) {
			return s.repo.FindByRoom(ctx, roomID, limit, offset)
		},
		func(ctx context.Context) (int64, error) { return s.repo.CountByRoom(ctx, roomID) },
	)
}

func (s *reservationService) GetBySurgeon(ctx context.Context, surgeonID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if surgeonID == "" {
		return nil, 0, apperrors.InvalidInput("Surgeon ID cannot be empty")
	}
	return s.list(ctx,
		func(ctx context.Context) ([]*model.Reservation, error) {
			return s.repo.FindBySurgeon(ctx, surgeonID, limit, offset)
		},
		func(ctx context.Context) (int64, error) { return s.repo.CountBySurgeon(ctx, surgeonID) },
	)
}

func (s *reservationService) list(
	ctx context.Context,
	find func(ctx context.Context) ([]*model.Reservation, error),
	count func(ctx context.Context) (int64, error),
) ([]*model.Reservation, int64, error) {
	var total int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reservations", "error", errCount)
			errCount = apperrors.Internal("Failed to count reservations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reservations, errFind = find(ctx)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reservations", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reservations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reservations, total, nil
}

func (s *reservationService) Update(ctx context.Context, id string, updates *model.ReservationUpdate) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateLookupError(err, id)
	}

	if existing.IsTerminal() {
		return nil, apperrors.AlreadyTerminal(fmt.Sprintf("Reservation is already %s", existing.Status))
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Reservation update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeUpdates(existing, updates)

	slotChanged := !merged.StartTime.Equal(existing.StartTime) ||
		!merged.EndTime.Equal(existing.EndTime) ||
		merged.OperatingRoomID != existing.OperatingRoomID ||
		merged.SurgeonID != existing.SurgeonID

	// The time range is only re-checked when it moved, so a notes edit on
	// an in-progress reservation is not rejected for its past start time.
	if err := s.validateFields(merged); err != nil {
		return nil, err
	}
	if slotChanged {
		if err := s.validator.ValidateTimeRange(merged.StartTime, merged.EndTime); err != nil {
			s.cfg.Log.Warn("Reservation update validation failed", "id", id, "error", err)
			return nil, apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
		}
		if err := s.checkExternalGuards(ctx, merged); err != nil {
			return nil, err
		}
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if slotChanged {
			if err := s.verifyNoConflict(sessCtx, merged.OperatingRoomID, merged.StartTime, merged.EndTime, id); err != nil {
				return err
			}
		}

		if err := s.repo.Update(sessCtx, id, existing.Version, merged); err != nil {
			if errors.Is(err, reservationserrors.ErrVersionMismatch) {
				return apperrors.Conflict("Reservation was modified concurrently, retry with fresh data")
			}
			if errors.Is(err, reservationserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Reservation", id)
			}
			return apperrors.Internal("Failed to update reservation", err)
		}

		if merged.OperatingRoomID != existing.OperatingRoomID {
			if err := s.counterRepo.Increment(sessCtx, existing.OperatingRoomID, -1); err != nil {
				return apperrors.Internal("Failed to decrement room counter", err)
			}
			if err := s.counterRepo.Increment(sessCtx, merged.OperatingRoomID, 1); err != nil {
				return apperrors.Internal("Failed to increment room counter", err)
			}
		}

		merged.Version = existing.Version + 1
		payload := reservationPayload(merged)
		payload["previous_status"] = existing.Status
		return s.outbox.Stage(sessCtx, model.EventReservationUpdated, id, payload)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update reservation", "id", id, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Reservation updated successfully", "id", id, "version", merged.Version)
	return merged, nil
}

func (s *reservationService) Cancel(ctx context.Context, id string, reason string, cancelledBy string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateLookupError(err, id)
	}

	extra := bson.M{}
	if reason != "" {
		notes := strings.TrimSpace(existing.Notes)
		if notes != "" {
			notes += "\n"
		}
		extra["notes"] = notes + "Cancelled: " + reason
	}
	if cancelledBy != "" {
		extra["cancelled_by"] = cancelledBy
	}

	var cancelled *model.Reservation
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var txErr error
		cancelled, txErr = s.repo.TransitionStatus(sessCtx, id, model.ActiveStatuses, model.StatusCancelled, extra)
		if txErr != nil {
			if errors.Is(txErr, reservationserrors.ErrAlreadyTerminal) {
				return apperrors.AlreadyTerminal(fmt.Sprintf("Reservation is already %s", existing.Status))
			}
			if errors.Is(txErr, reservationserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Reservation", id)
			}
			return apperrors.Internal("Failed to cancel reservation", txErr)
		}

		if err := s.counterRepo.Increment(sessCtx, cancelled.OperatingRoomID, -1); err != nil {
			return apperrors.Internal("Failed to decrement room counter", err)
		}

		payload := reservationPayload(cancelled)
		payload["reason"] = reason
		payload["cancelled_by"] = cancelledBy
		return s.outbox.Stage(sessCtx, model.EventReservationCancelled, id, payload)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to cancel reservation", "id", id, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Reservation cancelled successfully", "id", id, "reason", reason)
	return cancelled, nil
}

// CheckAvailability reports whether the room is free for the range, with
// the conflicting reservations when it is not.
func (s *reservationService) CheckAvailability(ctx context.Context, roomID string, startTime, endTime time.Time, excludeID string) (*model.AvailabilityResult, error) {
	if roomID == "" {
		return nil, apperrors.InvalidInput("Operating room ID cannot be empty")
	}
	if err := s.validator.ValidateTimeRange(startTime, endTime); err != nil {
		return nil, apperrors.Validation("Invalid time range", map[string]any{"error": err.Error()})
	}

	conflicts, err := s.repo.FindOverlapping(ctx, roomID, startTime, endTime, excludeID)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid reservation ID format")
		}
		return nil, apperrors.Internal("Failed to check availability", err)
	}

	return &model.AvailabilityResult{
		Available: len(conflicts) == 0,
		Conflicts: conflicts,
	}, nil
}

// ExpireOverdue transitions pending reservations older than the
// confirmation window to expired, one transaction per reservation so a
// single failure does not block the batch.
func (s *reservationService) ExpireOverdue(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.UnconfirmedTimeout)

	overdue, err := s.repo.FindExpiredPending(ctx, cutoff, s.cfg.SweepBatchSize)
	if err != nil {
		return 0, apperrors.Internal("Failed to find overdue reservations", err)
	}

	expired := 0
	for _, reservation := range overdue {
		id := reservation.ID
		err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			result, txErr := s.repo.TransitionStatus(sessCtx, id, []string{model.StatusPending}, model.StatusExpired, nil)
			if txErr != nil {
				// Confirmed or cancelled since the sweep query, skip
				if errors.Is(txErr, reservationserrors.ErrAlreadyTerminal) || errors.Is(txErr, reservationserrors.ErrNotFound) {
					return nil
				}
				return apperrors.Internal("Failed to expire reservation", txErr)
			}

			if err := s.counterRepo.Increment(sessCtx, result.OperatingRoomID, -1); err != nil {
				return apperrors.Internal("Failed to decrement room counter", err)
			}

			return s.outbox.Stage(sessCtx, model.EventReservationExpired, id, reservationPayload(result))
		})
		if err != nil {
			s.cfg.Log.Error("Failed to expire reservation", "id", id, "error", err)
			continue
		}
		expired++
	}

	return expired, nil
}

func (s *reservationService) PurgeOld(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.ReservationRetention)
	deleted, err := s.repo.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		return 0, apperrors.Internal("Failed to purge old reservations", err)
	}
	return deleted, nil
}

// --- Helpers ---

func (s *reservationService) applyDefaults(r *model.Reservation) {
	if r.Status == "" {
		r.Status = model.StatusPending
	}
	if r.Kind == "" {
		r.Kind = model.KindSurgery
	}
	if r.Version == 0 {
		r.Version = 1
	}
}

func (s *reservationService) mergeUpdates(existing *model.Reservation, updates *model.ReservationUpdate) *model.Reservation {
	merged := *existing

	if updates.OperatingRoomID != "" {
		merged.OperatingRoomID = updates.OperatingRoomID
	}
	if updates.SurgeonID != "" {
		merged.SurgeonID = updates.SurgeonID
	}
	if updates.StartTime != nil {
		merged.StartTime = *updates.StartTime
	}
	if updates.EndTime != nil {
		merged.EndTime = *updates.EndTime
	}
	if updates.Status != "" {
		merged.Status = updates.Status
	}
	if updates.Kind != "" {
		merged.Kind = updates.Kind
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.PatientName != nil {
		merged.PatientName = *updates.PatientName
	}
	if updates.PatientID != nil {
		merged.PatientID = *updates.PatientID
	}
	if updates.Notes != nil {
		merged.Notes = *updates.Notes
	}

	return &merged
}

func (s *reservationService) validate(reservation *model.Reservation) error {
	if err := s.validator.Validate(reservation); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *reservationService) validateFields(reservation *model.Reservation) error {
	if err := s.validator.ValidateFields(reservation); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *reservationService) verifyNoConflict(ctx context.Context, roomID string, startTime, endTime time.Time, excludeID string) error {
	conflicts, err := s.repo.FindOverlapping(ctx, roomID, startTime, endTime, excludeID)
	if err != nil {
		return apperrors.Internal("Failed to check existing reservations", err)
	}

	if len(conflicts) > 0 {
		first := conflicts[0]
		return apperrors.Conflict(fmt.Sprintf(
			"Reservation time overlaps with existing reservation (%s - %s)",
			first.StartTime.Format(time.RFC3339),
			first.EndTime.Format(time.RFC3339),
		)).WithDetails(map[string]any{"conflicts": conflicts})
	}
	return nil
}

func (s *reservationService) translateLookupError(err error, id string) error {
	if errors.Is(err, reservationserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Reservation", id)
	}
	if errors.Is(err, reservationserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid reservation ID format")
	}
	return apperrors.Internal("Failed to retrieve reservation", err)
}

// acquireSlotLock creates an advisory lock to prevent concurrent reservation
// creation in the same room.
// Returns the lock ID if successful, or conflict error if lock already exists
func (s *reservationService) acquireSlotLock(ctx context.Context, roomID string) (string, error) {
	lockID := fmt.Sprintf("reservation_lock_%s", roomID)

	lock := &model.ReservationLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(10 * time.Second), // Auto-expire after 10 seconds
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This room is currently being reserved by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire reservation lock", err)
	}

	return lockID, nil
}

// releaseSlotLock removes the advisory lock
func (s *reservationService) releaseSlotLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}

func reservationPayload(r *model.Reservation) map[string]any {
	return map[string]any{
		"reservation_id":    r.ID,
		"operating_room_id": r.OperatingRoomID,
		"surgeon_id":        r.SurgeonID,
		"start_time":        r.StartTime.Format(time.RFC3339),
		"end_time":          r.EndTime.Format(time.RFC3339),
		"status":            r.Status,
		"kind":              r.Kind,
		"version":           r.Version,
	}
}
