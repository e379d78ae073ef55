package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	ErrTimeConflict = errors.New("reservation time conflicts with existing reservation")

	ErrInvalidTimeRange = errors.New("end time must be after start time")

	ErrStartInPast = errors.New("start time cannot be in the past")

	ErrAlreadyTerminal = errors.New("reservation is already in a terminal state")

	ErrVersionMismatch = errors.New("reservation was modified concurrently")

	ErrIdempotencyKeyExists = errors.New("idempotency key already exists")
)
