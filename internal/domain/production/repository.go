package production

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("production not found")

const queryTimeout = 3 * time.Second

// Repository provides read access to productions for conflict detection
// plus minimal write access so the schedule landscape can be managed.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, p *Production) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO productions (id, owner_id, title, venue, is_external_venue, starts_at, ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.OwnerID, p.Title, p.Venue, p.IsExternalVenue, p.StartsAt, p.EndsAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert production: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Production, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Production
	err := r.db.GetContext(ctx2, &p, `
		SELECT id, owner_id, title, venue, is_external_venue, starts_at, ends_at, created_at
		FROM productions WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get production: %w", err)
	}
	return &p, nil
}

// ListByOwner returns the owner's productions, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Production, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	productions := make([]Production, 0)
	err := r.db.SelectContext(ctx2, &productions, `
		SELECT id, owner_id, title, venue, is_external_venue, starts_at, ends_at, created_at
		FROM productions
		WHERE owner_id = $1
		ORDER BY starts_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list productions: %w", err)
	}
	return productions, nil
}

// ListOccupyingBetween returns productions that consume the shared space and
// whose interval intersects [from, to). The half-open comparison matches the
// reservation overlap predicate.
func (r *Repository) ListOccupyingBetween(ctx context.Context, from, to time.Time, exclude uuid.UUID) ([]Production, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	productions := make([]Production, 0)
	err := r.db.SelectContext(ctx2, &productions, `
		SELECT id, owner_id, title, venue, is_external_venue, starts_at, ends_at, created_at
		FROM productions
		WHERE is_external_venue = false
		  AND starts_at < $2
		  AND ends_at > $1
		  AND id <> $3
		ORDER BY starts_at
	`, from, to, exclude)
	if err != nil {
		return nil, fmt.Errorf("list occupying productions: %w", err)
	}
	return productions, nil
}
