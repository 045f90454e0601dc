package production

import (
	"time"

	"github.com/google/uuid"
)

// Production represents an externally-owned event that may occupy the
// rehearsal space. Productions hosted at an external venue never take part
// in conflict checks.
type Production struct {
	ID              uuid.UUID `db:"id" json:"id"`
	OwnerID         uuid.UUID `db:"owner_id" json:"owner_id"`
	Title           string    `db:"title" json:"title"`
	Venue           string    `db:"venue" json:"venue"`
	IsExternalVenue bool      `db:"is_external_venue" json:"is_external_venue"`
	StartsAt        time.Time `db:"starts_at" json:"starts_at"`
	EndsAt          time.Time `db:"ends_at" json:"ends_at"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// OccupiesSpace reports whether this production consumes the shared space.
func (p *Production) OccupiesSpace() bool {
	return !p.IsExternalVenue
}
