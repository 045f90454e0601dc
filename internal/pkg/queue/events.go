// Package queue publishes domain facts to RabbitMQ for downstream
// notification and analytics consumers. Publishing is best-effort: failures
// are logged and never interrupt the request that produced the fact.
package queue

import "time"

// Queue names, one durable queue per fact kind.
const (
	QueueReservationCreated   = "reservation.created"
	QueueReservationCancelled = "reservation.cancelled"
	QueueSeriesMaterialized   = "series.materialized"
	QueueCreditGranted        = "credit.granted"
	QueueCreditSpent          = "credit.spent"
	QueuePromoRedeemed        = "promo.redeemed"
)

// ReservationEvent is published when a reservation is created or cancelled.
type ReservationEvent struct {
	ReservationID string    `json:"reservation_id"`
	OwnerID       string    `json:"owner_id"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	Status        string    `json:"status"`
	HoursUsed     float64   `json:"hours_used"`
	FreeHoursUsed float64   `json:"free_hours_used"`
	Cost          string    `json:"cost"`
	SeriesID      string    `json:"series_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

// SeriesMaterializedEvent is published after a materialization run.
type SeriesMaterializedEvent struct {
	SeriesID     string   `json:"series_id"`
	OwnerID      string   `json:"owner_id"`
	Created      int      `json:"created"`
	Placeholders int      `json:"placeholders"`
	Skipped      int      `json:"skipped"`
	Dates        []string `json:"dates,omitempty"`
	OccurredAt   string   `json:"occurred_at"`
}

// CreditEvent is published on every ledger grant or spend.
type CreditEvent struct {
	OwnerID      string `json:"owner_id"`
	CreditType   string `json:"credit_type"`
	Amount       int    `json:"amount"`
	BalanceAfter int    `json:"balance_after"`
	Source       string `json:"source"`
	SourceID     string `json:"source_id,omitempty"`
}

// PromoRedeemedEvent is published on a successful promo redemption.
type PromoRedeemedEvent struct {
	OwnerID    string `json:"owner_id"`
	Code       string `json:"code"`
	CreditType string `json:"credit_type"`
	Amount     int    `json:"amount"`
}
