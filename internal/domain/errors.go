package domain

import "errors"

var (
	// ErrPermission is returned when an anonymous or non-owner caller attempts
	// a gated mutation.
	ErrPermission = errors.New("permission denied")
	// ErrNotFound is returned when an operation references a missing item id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when a status-transition precondition is
	// violated; no write is performed.
	ErrInvalidState = errors.New("invalid status transition")
	// ErrValidation is returned when content fails validation or no item id
	// can be resolved for history.
	ErrValidation = errors.New("validation failed")
	// ErrStore wraps any underlying document-store failure.
	ErrStore = errors.New("document store error")
	// ErrConflict is returned by conditional updates whose precondition no
	// longer holds (a concurrent writer got there first).
	ErrConflict = errors.New("concurrent update conflict")
)
