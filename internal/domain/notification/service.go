package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Service writes and reads in-app notifications. It satisfies the Notifier
// interfaces of the booking, credit and series services. Delivery is
// best-effort: a failed insert is logged, never propagated, so bookkeeping
// noise can't fail a booking.
type Service struct {
	repo *Repository
}

// NewService creates a new notification service.
func NewService(db *sqlx.DB) *Service {
	return &Service{repo: NewRepository(db)}
}

// List returns the owner's notifications, newest first.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, error) {
	return s.repo.ListByOwner(ctx, ownerID, unreadOnly, limit, offset)
}

// CountUnread returns the owner's unread count.
func (s *Service) CountUnread(ctx context.Context, ownerID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, ownerID)
}

// MarkRead marks one notification read.
func (s *Service) MarkRead(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, ownerID, id)
}

// MarkAllRead marks every notification read.
func (s *Service) MarkAllRead(ctx context.Context, ownerID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, ownerID)
}

// NotifyReservationCreated implements booking.Notifier.
func (s *Service) NotifyReservationCreated(ctx context.Context, ownerID, reservationID uuid.UUID, start, end time.Time) {
	layout := "Mon 2 Jan 15:04"
	s.deliver(ctx, ownerID, KindReservationCreated,
		"Reservation confirmed",
		fmt.Sprintf("The space is yours %s to %s.", start.Format(layout), end.Format("15:04")))
}

// NotifyReservationCancelled implements booking.Notifier.
func (s *Service) NotifyReservationCancelled(ctx context.Context, ownerID, reservationID uuid.UUID, reason string) {
	body := "Your reservation was cancelled."
	if reason != "" {
		body = fmt.Sprintf("Your reservation was cancelled: %s.", reason)
	}
	s.deliver(ctx, ownerID, KindReservationCancelled, "Reservation cancelled", body)
}

// NotifySeriesMaterialized implements series.Notifier.
func (s *Service) NotifySeriesMaterialized(ctx context.Context, ownerID, seriesID uuid.UUID, created, placeholders int) {
	body := fmt.Sprintf("%d recurring slot(s) were booked.", created)
	if placeholders > 0 {
		body = fmt.Sprintf("%d recurring slot(s) were booked, %d could not be placed due to scheduling conflicts.", created, placeholders)
	}
	s.deliver(ctx, ownerID, KindSeriesMaterialized, "Recurring slots booked", body)
}

// NotifyCreditGranted implements credit.Notifier.
func (s *Service) NotifyCreditGranted(ctx context.Context, ownerID uuid.UUID, creditType string, amount, balanceAfter int) {
	s.deliver(ctx, ownerID, KindCreditGranted,
		"Credits added",
		fmt.Sprintf("%d %s block(s) added, balance is now %d.", amount, creditType, balanceAfter))
}

// NotifyPromoRedeemed implements credit.Notifier.
func (s *Service) NotifyPromoRedeemed(ctx context.Context, ownerID uuid.UUID, code string, amount int) {
	s.deliver(ctx, ownerID, KindPromoRedeemed,
		"Promo code redeemed",
		fmt.Sprintf("Code %s granted %d block(s).", code, amount))
}

func (s *Service) deliver(ctx context.Context, ownerID uuid.UUID, kind Kind, title, body string) {
	n := &Notification{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		log.Warn().Err(err).
			Str("owner_id", ownerID.String()).
			Str("kind", string(kind)).
			Msg("Notification not delivered")
	}
}
