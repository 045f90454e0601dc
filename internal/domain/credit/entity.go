package credit

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Type identifies a credit bucket. Each type has its own balance row per
// owner and its own monthly allocation policy.
type Type string

const (
	// TypeFreeHours is the monthly free-hours allowance. No rollover: the
	// monthly allocation replaces whatever is left.
	TypeFreeHours Type = "free_hours"

	// TypeBonusHours accumulates (promo grants, goodwill credits) up to a
	// configured cap.
	TypeBonusHours Type = "bonus_hours"
)

// Source identifies what produced a ledger entry.
type Source string

const (
	SourceMonthlyReset       Source = "monthly_reset"
	SourceMonthlyAllocation  Source = "monthly_allocation"
	SourcePromoCode          Source = "promo_code"
	SourceReservationSpend   Source = "reservation_spend"
	SourceReservationAdjust  Source = "reservation_adjustment"
	SourceCancellationRefund Source = "cancellation_refund"
	SourceAdminGrant         Source = "admin_grant"
	SourceExpiry             Source = "expiry"
)

// Balance is the per-(owner, type) credit balance row. Balances are stored
// in blocks, the smallest billable unit. LastAllocatedPeriod (YYYY-MM) makes
// monthly allocation idempotent without an external marker.
type Balance struct {
	OwnerID             uuid.UUID      `db:"owner_id"`
	CreditType          Type           `db:"credit_type"`
	Balance             int            `db:"balance"`
	MaxBalance          sql.NullInt64  `db:"max_balance"`
	ExpiresAt           sql.NullTime   `db:"expires_at"`
	LastAllocatedPeriod sql.NullString `db:"last_allocated_period"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

// Transaction is an append-only ledger row. The running sum of Amount values
// for an (owner, type), in creation order, always equals BalanceAfter.
type Transaction struct {
	ID           uuid.UUID `db:"id" json:"id"`
	OwnerID      uuid.UUID `db:"owner_id" json:"owner_id"`
	CreditType   Type      `db:"credit_type" json:"credit_type"`
	Amount       int       `db:"amount" json:"amount"`
	BalanceAfter int       `db:"balance_after" json:"balance_after"`
	Source       Source    `db:"source" json:"source"`
	SourceID     *string   `db:"source_id" json:"source_id,omitempty"`
	Description  string    `db:"description" json:"description"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PromoCode grants a fixed credit amount, optionally capped in total uses
// and bounded in time.
type PromoCode struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	Code         string        `db:"code" json:"code"`
	CreditAmount int           `db:"credit_amount" json:"credit_amount"`
	CreditType   Type          `db:"credit_type" json:"credit_type"`
	MaxUses      sql.NullInt64 `db:"max_uses" json:"max_uses,omitempty"`
	UsesCount    int           `db:"uses_count" json:"uses_count"`
	IsActive     bool          `db:"is_active" json:"is_active"`
	ExpiresAt    sql.NullTime  `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// Redeemable reports whether the promo can still be redeemed at all.
// Per-owner uniqueness is enforced separately.
func (p *PromoCode) Redeemable(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.ExpiresAt.Valid && !p.ExpiresAt.Time.After(now) {
		return false
	}
	return true
}

// UsesExhausted reports whether the use cap, if any, has been reached.
func (p *PromoCode) UsesExhausted() bool {
	return p.MaxUses.Valid && int64(p.UsesCount) >= p.MaxUses.Int64
}

// Redemption records one owner redeeming one promo. Unique per (promo,
// owner); the database constraint is the final backstop against races.
type Redemption struct {
	ID          uuid.UUID `db:"id"`
	PromoCodeID uuid.UUID `db:"promo_code_id"`
	OwnerID     uuid.UUID `db:"owner_id"`
	CreatedAt   time.Time `db:"created_at"`
}

// Pagination controls simple list pagination.
type Pagination struct {
	Limit  int
	Offset int
}
