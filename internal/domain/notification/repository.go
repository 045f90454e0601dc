package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository persists notifications.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, n *Notification) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO notifications (id, owner_id, kind, title, body, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.OwnerID, n.Kind, n.Title, n.Body, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByOwner returns the owner's notifications, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, owner_id, kind, title, body, is_read, created_at
		FROM notifications
		WHERE owner_id = $1`
	if unreadOnly {
		query += ` AND is_read = false`
	}
	query += `
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	notifications := make([]Notification, 0)
	err := r.db.SelectContext(ctx2, &notifications, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// CountUnread returns the owner's unread notification count.
func (r *Repository) CountUnread(ctx context.Context, ownerID uuid.UUID) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	err := r.db.GetContext(ctx2, &count, `
		SELECT COUNT(*) FROM notifications WHERE owner_id = $1 AND is_read = false
	`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one of the owner's notifications read.
func (r *Repository) MarkRead(ctx context.Context, ownerID, id uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE notifications SET is_read = true
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every one of the owner's notifications read.
func (r *Repository) MarkAllRead(ctx context.Context, ownerID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE notifications SET is_read = true
		WHERE owner_id = $1 AND is_read = false
	`, ownerID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}
