package credit

import "time"

// BalanceResponse reports one credit bucket's state.
type BalanceResponse struct {
	CreditType Type    `json:"credit_type"`
	Blocks     int     `json:"blocks"`
	Hours      float64 `json:"hours"`
}

// RedeemPromoRequest redeems a promo code for the authenticated owner.
type RedeemPromoRequest struct {
	Code string `json:"code" validate:"required,min=3,max=64"`
}

// GrantRequest is the admin credit grant payload.
type GrantRequest struct {
	OwnerID     string     `json:"owner_id" validate:"required,uuid"`
	Amount      int        `json:"amount" validate:"required,gte=1"`
	CreditType  string     `json:"credit_type" validate:"required,credit_type"`
	Description string     `json:"description" validate:"max=255"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// CreatePromoRequest registers a new promo code.
type CreatePromoRequest struct {
	Code         string     `json:"code" validate:"required,min=3,max=64"`
	CreditAmount int        `json:"credit_amount" validate:"required,gte=1"`
	CreditType   string     `json:"credit_type" validate:"required,credit_type"`
	MaxUses      *int       `json:"max_uses" validate:"omitempty,gte=1"`
	ExpiresAt    *time.Time `json:"expires_at"`
}
