package notification

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification.
type Kind string

const (
	KindReservationCreated   Kind = "reservation_created"
	KindReservationCancelled Kind = "reservation_cancelled"
	KindSeriesMaterialized   Kind = "series_materialized"
	KindCreditGranted        Kind = "credit_granted"
	KindPromoRedeemed        Kind = "promo_redeemed"
)

// Notification is an in-app message for one owner.
type Notification struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OwnerID   uuid.UUID `db:"owner_id" json:"owner_id"`
	Kind      Kind      `db:"kind" json:"kind"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
