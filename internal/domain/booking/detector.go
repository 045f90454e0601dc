package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bandroom/bandroom-api/internal/domain/production"
)

// Conflict kinds reported by the detector.
const (
	ConflictReservation = "reservation"
	ConflictProduction  = "production"
)

// Conflict describes one existing booking that collides with a candidate
// interval, with enough detail for a human-readable diagnosis.
type Conflict struct {
	Kind     string    `json:"kind"`
	ID       uuid.UUID `json:"id"`
	OwnerID  uuid.UUID `json:"owner_id"`
	Title    string    `json:"title,omitempty"`
	Interval Interval  `json:"interval"`
}

func (c Conflict) String() string {
	layout := "2006-01-02 15:04"
	return fmt.Sprintf("%s %s owned by %s (%s - %s)",
		c.Kind, c.ID, c.OwnerID,
		c.Interval.Start.Format(layout), c.Interval.End.Format(layout))
}

// ReservationSource yields non-cancelled reservations intersecting a range.
type ReservationSource interface {
	ListActiveBetween(ctx context.Context, from, to time.Time, exclude uuid.UUID) ([]Reservation, error)
}

// ProductionSource yields space-occupying productions intersecting a range.
type ProductionSource interface {
	ListOccupyingBetween(ctx context.Context, from, to time.Time, exclude uuid.UUID) ([]production.Production, error)
}

// Detector answers "does this interval collide with anything" for both
// booking paths. It reads without locking: the rare validate/write race is
// resolved by the next validation pass, not by a distributed lock.
type Detector struct {
	reservations ReservationSource
	productions  ProductionSource
}

// NewDetector creates a detector over the two occupancy sources.
func NewDetector(reservations ReservationSource, productions ProductionSource) *Detector {
	return &Detector{reservations: reservations, productions: productions}
}

// FindConflicts returns every non-cancelled reservation and space-occupying
// production overlapping the candidate interval. An empty result means the
// slot is free; the detector itself never produces a domain error.
func (d *Detector) FindConflicts(ctx context.Context, candidate Interval, excludeReservation, excludeProduction uuid.UUID) ([]Conflict, error) {
	conflicts := make([]Conflict, 0)

	reservations, err := d.reservations.ListActiveBetween(ctx, candidate.Start, candidate.End, excludeReservation)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	for _, r := range reservations {
		if candidate.Overlaps(r.Interval()) {
			conflicts = append(conflicts, Conflict{
				Kind:     ConflictReservation,
				ID:       r.ID,
				OwnerID:  r.OwnerID,
				Interval: r.Interval(),
			})
		}
	}

	productions, err := d.productions.ListOccupyingBetween(ctx, candidate.Start, candidate.End, excludeProduction)
	if err != nil {
		return nil, fmt.Errorf("list productions: %w", err)
	}
	for _, p := range productions {
		iv := Interval{Start: p.StartsAt, End: p.EndsAt}
		if candidate.Overlaps(iv) {
			conflicts = append(conflicts, Conflict{
				Kind:     ConflictProduction,
				ID:       p.ID,
				OwnerID:  p.OwnerID,
				Title:    p.Title,
				Interval: iv,
			})
		}
	}

	return conflicts, nil
}

// Gaps enumerates the maximal free sub-intervals of [dayStart, dayEnd) with
// at least minDuration of room, in chronological order. Used for slot
// discovery, never for conflict rejection.
func (d *Detector) Gaps(ctx context.Context, dayStart, dayEnd time.Time, minDuration time.Duration) ([]Interval, error) {
	bounds := Interval{Start: dayStart, End: dayEnd}

	occupied := make([]Interval, 0)

	reservations, err := d.reservations.ListActiveBetween(ctx, dayStart, dayEnd, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	for _, r := range reservations {
		occupied = append(occupied, r.Interval())
	}

	productions, err := d.productions.ListOccupyingBetween(ctx, dayStart, dayEnd, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("list productions: %w", err)
	}
	for _, p := range productions {
		occupied = append(occupied, Interval{Start: p.StartsAt, End: p.EndsAt})
	}

	return FreeGaps(bounds, occupied, minDuration), nil
}
