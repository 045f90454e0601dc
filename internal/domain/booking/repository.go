package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

const reservationColumns = `
	id, owner_id, reserved_at, reserved_until, status, hours_used,
	free_hours_used, cost, free_blocks_spent, bonus_blocks_spent, series_id,
	instance_date, production_id, notes, cancellation_reason, created_at,
	updated_at`

// Repository persists reservations.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying handle so the service can compose a
// reservation insert with a ledger debit in one transaction.
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// CreateTx inserts a reservation within the caller's transaction.
func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, res *Reservation) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reservations (
			id, owner_id, reserved_at, reserved_until, status, hours_used,
			free_hours_used, cost, free_blocks_spent, bonus_blocks_spent,
			series_id, instance_date, production_id, notes,
			cancellation_reason, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, res.ID, res.OwnerID, res.ReservedAt, res.ReservedUntil, res.Status,
		res.HoursUsed, res.FreeHoursUsed, res.Cost, res.FreeBlocksSpent,
		res.BonusBlocksSpent, res.SeriesID, res.InstanceDate, res.ProductionID,
		res.Notes, res.CancellationReason, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// UpdateTx rewrites the mutable fields within the caller's transaction.
func (r *Repository) UpdateTx(ctx context.Context, tx *sqlx.Tx, res *Reservation) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE reservations
		SET reserved_at = $2, reserved_until = $3, status = $4,
		    hours_used = $5, free_hours_used = $6, cost = $7,
		    free_blocks_spent = $8, bonus_blocks_spent = $9, notes = $10,
		    cancellation_reason = $11, updated_at = $12
		WHERE id = $1
	`, res.ID, res.ReservedAt, res.ReservedUntil, res.Status, res.HoursUsed,
		res.FreeHoursUsed, res.Cost, res.FreeBlocksSpent, res.BonusBlocksSpent,
		res.Notes, res.CancellationReason, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reservation rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID loads one reservation.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var res Reservation
	err := r.db.GetContext(ctx2, &res, `
		SELECT `+reservationColumns+` FROM reservations WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return &res, nil
}

// ListByOwner returns the owner's reservations, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Reservation, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	reservations := make([]Reservation, 0)
	err := r.db.SelectContext(ctx2, &reservations, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE owner_id = $1
		ORDER BY reserved_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, nil
}

// ListActiveBetween returns non-cancelled reservations whose interval
// intersects [from, to), excluding one id (zero UUID excludes nothing).
// Implements the detector's ReservationSource.
func (r *Repository) ListActiveBetween(ctx context.Context, from, to time.Time, exclude uuid.UUID) ([]Reservation, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	reservations := make([]Reservation, 0)
	err := r.db.SelectContext(ctx2, &reservations, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE status <> 'cancelled'
		  AND reserved_at < $2
		  AND reserved_until > $1
		  AND id <> $3
		ORDER BY reserved_at
	`, from, to, exclude)
	if err != nil {
		return nil, fmt.Errorf("list active reservations: %w", err)
	}
	return reservations, nil
}

// GetBySeriesAndDate returns the reservation materialized for a series on
// one instance date, cancelled placeholders included.
func (r *Repository) GetBySeriesAndDate(ctx context.Context, seriesID uuid.UUID, date time.Time) (*Reservation, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var res Reservation
	err := r.db.GetContext(ctx2, &res, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE series_id = $1 AND instance_date = $2
	`, seriesID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get series instance: %w", err)
	}
	return &res, nil
}

// ListInstanceDates returns every instance date already materialized for a
// series, cancelled placeholders included. This is the materializer's
// idempotency guard.
func (r *Repository) ListInstanceDates(ctx context.Context, seriesID uuid.UUID) ([]time.Time, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	dates := make([]time.Time, 0)
	err := r.db.SelectContext(ctx2, &dates, `
		SELECT instance_date FROM reservations
		WHERE series_id = $1 AND instance_date IS NOT NULL
		ORDER BY instance_date
	`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("list instance dates: %w", err)
	}
	return dates, nil
}

// ListFutureBySeries returns the non-cancelled instances of a series
// starting after the given instant, in chronological order. Past instances
// stay as history.
func (r *Repository) ListFutureBySeries(ctx context.Context, seriesID uuid.UUID, after time.Time) ([]Reservation, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	reservations := make([]Reservation, 0)
	err := r.db.SelectContext(ctx2, &reservations, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE series_id = $1
		  AND reserved_at > $2
		  AND status <> 'cancelled'
		ORDER BY reserved_at
	`, seriesID, after)
	if err != nil {
		return nil, fmt.Errorf("list future series instances: %w", err)
	}
	return reservations, nil
}
