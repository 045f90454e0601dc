package booking

import "time"

// CreateReservationRequest books the space for one interval.
type CreateReservationRequest struct {
	ReservedAt    time.Time `json:"reserved_at" validate:"required"`
	ReservedUntil time.Time `json:"reserved_until" validate:"required"`
	Notes         string    `json:"notes" validate:"max=500"`
	ProductionID  *string   `json:"production_id" validate:"omitempty,uuid"`
}

// UpdateReservationRequest moves an existing reservation. Notes are only
// touched when the field is present.
type UpdateReservationRequest struct {
	ReservedAt    time.Time `json:"reserved_at" validate:"required"`
	ReservedUntil time.Time `json:"reserved_until" validate:"required"`
	Notes         *string   `json:"notes" validate:"omitempty,max=500"`
}

// CancelReservationRequest cancels a reservation with an optional reason.
type CancelReservationRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

// QuoteRequest prices an interval without booking it.
type QuoteRequest struct {
	ReservedAt    time.Time `json:"reserved_at" validate:"required"`
	ReservedUntil time.Time `json:"reserved_until" validate:"required"`
}

// AvailabilityResponse lists the free slots of one day.
type AvailabilityResponse struct {
	Date string     `json:"date"`
	Gaps []Interval `json:"gaps"`
}
