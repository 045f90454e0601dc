package series

import "errors"

var (
	// ErrNotFound is returned when the series doesn't exist
	ErrNotFound = errors.New("series not found")

	// ErrNotActive is returned when mutating a cancelled series
	ErrNotActive = errors.New("series is not active")

	// ErrInvalidRule is returned when the recurrence rule cannot be parsed
	ErrInvalidRule = errors.New("invalid recurrence rule")

	ErrInternal = errors.New("internal error")
)
