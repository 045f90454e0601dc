package production

import "time"

// CreateProductionRequest registers a show date. In-house productions block
// the rehearsal space for their whole interval.
type CreateProductionRequest struct {
	Title           string    `json:"title" validate:"required,min=1,max=200"`
	Venue           string    `json:"venue" validate:"max=200"`
	IsExternalVenue bool      `json:"is_external_venue"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	EndsAt          time.Time `json:"ends_at" validate:"required"`
}
