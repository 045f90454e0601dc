package series

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

const seriesColumns = `
	id, owner_id, rrule, start_time, duration_minutes, start_date, end_date,
	status, credit_eligible, notes, created_at, updated_at`

// Repository persists recurring series.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new series.
func (r *Repository) Create(ctx context.Context, s *Series) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO recurring_series (
			id, owner_id, rrule, start_time, duration_minutes, start_date,
			end_date, status, credit_eligible, notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, s.ID, s.OwnerID, s.RRule, s.StartTime, s.DurationMinutes, s.StartDate,
		s.EndDate, s.Status, s.CreditEligible, s.Notes, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert series: %w", err)
	}
	return nil
}

// GetByID loads one series.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Series, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s Series
	err := r.db.GetContext(ctx2, &s, `
		SELECT `+seriesColumns+` FROM recurring_series WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get series: %w", err)
	}
	return &s, nil
}

// ListByOwner returns the owner's series, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Series, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	list := make([]Series, 0)
	err := r.db.SelectContext(ctx2, &list, `
		SELECT `+seriesColumns+`
		FROM recurring_series
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	return list, nil
}

// ListActive returns every active series, the sweep worker's population.
func (r *Repository) ListActive(ctx context.Context) ([]Series, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	list := make([]Series, 0)
	err := r.db.SelectContext(ctx2, &list, `
		SELECT `+seriesColumns+`
		FROM recurring_series
		WHERE status = 'active'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list active series: %w", err)
	}
	return list, nil
}

// UpdateStatus transitions the series status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE recurring_series
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("update series status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update series status rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateEndDate moves the series end date.
func (r *Repository) UpdateEndDate(ctx context.Context, id uuid.UUID, endDate sql.NullTime) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE recurring_series
		SET end_date = $2, updated_at = now()
		WHERE id = $1
	`, id, endDate)
	if err != nil {
		return fmt.Errorf("update series end date: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update series end date rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
