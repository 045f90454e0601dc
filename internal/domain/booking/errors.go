package booking

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when the reservation doesn't exist
	ErrNotFound = errors.New("reservation not found")

	ErrInternal = errors.New("internal error")
)

// ValidationError carries the full list of rule violations for a booking
// request. The reasons are human-readable and meant to be shown verbatim.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "booking validation failed: " + strings.Join(e.Reasons, "; ")
}

// IsValidationError reports whether err is a validation failure and returns
// it if so.
func IsValidationError(err error) (*ValidationError, bool) {
	var target *ValidationError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
