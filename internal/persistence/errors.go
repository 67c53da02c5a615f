package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrConflict is returned when a conditional write finds the row in an unexpected state.
	ErrConflict = errors.New("persistence: conflict")
	// ErrConstraintViolation is returned for foreign key and check constraint failures.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
