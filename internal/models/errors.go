package models

import "errors"

var (
	// ErrSlotUnavailable is returned when a requested slot fails the booking window
	// or capacity rules.
	ErrSlotUnavailable = errors.New("slot unavailable")
	// ErrInvalidState is returned when a lifecycle transition's guard is not met.
	ErrInvalidState = errors.New("invalid booking state")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	// ErrDuplicate is returned when a create request reuses an idempotency key that
	// the store already holds.
	ErrDuplicate = errors.New("duplicate request")
)
