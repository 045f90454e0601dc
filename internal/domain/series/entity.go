package series

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents series status
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// Series is a recurring booking pattern. Occurrences are materialized into
// ordinary reservations ahead of time, up to a rolling horizon.
type Series struct {
	ID      uuid.UUID `db:"id" json:"id"`
	OwnerID uuid.UUID `db:"owner_id" json:"owner_id"`

	// RRule is an RFC 5545 recurrence rule without DTSTART, for example
	// "FREQ=WEEKLY;BYDAY=TU". The anchor comes from StartDate and StartTime.
	RRule string `db:"rrule" json:"rrule"`

	// StartTime is the wall-clock start of each occurrence, "HH:MM".
	StartTime       string `db:"start_time" json:"start_time"`
	DurationMinutes int    `db:"duration_minutes" json:"duration_minutes"`

	StartDate time.Time    `db:"start_date" json:"start_date"`
	EndDate   sql.NullTime `db:"end_date" json:"end_date,omitempty"`

	Status Status `db:"status" json:"status"`

	// CreditEligible is the owner's entitlement at creation time. Every
	// materialized occurrence uses this snapshot, so a later entitlement
	// change never reprices instances the owner already counted on.
	CreditEligible bool `db:"credit_eligible" json:"credit_eligible"`

	Notes sql.NullString `db:"notes" json:"notes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the series still materializes occurrences.
func (s *Series) IsActive() bool {
	return s.Status == StatusActive
}

// Duration returns the occurrence length.
func (s *Series) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Anchor returns the first possible occurrence instant: the start date at
// the series wall-clock time, in the start date's location.
func (s *Series) Anchor() (time.Time, error) {
	hour, minute, err := parseWallClock(s.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := s.StartDate.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, s.StartDate.Location()), nil
}

func parseWallClock(s string) (int, int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid wall-clock time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid wall-clock time %q", s)
	}
	return hour, minute, nil
}
