package booking

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents reservation status
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Reservation is one booking of the rehearsal space. Cancellation is a
// status change; reservations are never hard-deleted.
type Reservation struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	OwnerID       uuid.UUID       `db:"owner_id" json:"owner_id"`
	ReservedAt    time.Time       `db:"reserved_at" json:"reserved_at"`
	ReservedUntil time.Time       `db:"reserved_until" json:"reserved_until"`
	Status        Status          `db:"status" json:"status"`
	HoursUsed     float64         `db:"hours_used" json:"hours_used"`
	FreeHoursUsed float64         `db:"free_hours_used" json:"free_hours_used"`
	Cost          decimal.Decimal `db:"cost" json:"cost"`

	// Credit blocks actually debited per bucket, kept so a cancellation
	// refund or an update can give back exactly what was spent.
	FreeBlocksSpent  int `db:"free_blocks_spent" json:"-"`
	BonusBlocksSpent int `db:"bonus_blocks_spent" json:"-"`

	// Recurring series link; InstanceDate is the calendar date this
	// occurrence represents and is unique per series.
	SeriesID     *uuid.UUID   `db:"series_id" json:"series_id,omitempty"`
	InstanceDate sql.NullTime `db:"instance_date" json:"instance_date,omitempty"`

	// Optional external production context.
	ProductionID *uuid.UUID `db:"production_id" json:"production_id,omitempty"`

	Notes              sql.NullString `db:"notes" json:"notes,omitempty"`
	CancellationReason sql.NullString `db:"cancellation_reason" json:"cancellation_reason,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Interval returns the reserved time range.
func (r *Reservation) Interval() Interval {
	return Interval{Start: r.ReservedAt, End: r.ReservedUntil}
}

// BlocksSpent returns the total credit blocks debited for this reservation.
func (r *Reservation) BlocksSpent() int {
	return r.FreeBlocksSpent + r.BonusBlocksSpent
}

// IsCancelled reports whether the reservation no longer occupies the space.
func (r *Reservation) IsCancelled() bool {
	return r.Status == StatusCancelled
}
