package credit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount is returned when an amount is negative (grants) or
	// not positive (spends)
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrUnknownCreditType is returned when no policy is configured for the
	// requested credit type
	ErrUnknownCreditType = errors.New("unknown credit type")

	// ErrPromoNotFound is returned when no active, non-expired promo exists
	// for the code
	ErrPromoNotFound = errors.New("promo code not found")

	// ErrPromoAlreadyRedeemed is returned when the owner already redeemed
	// this promo
	ErrPromoAlreadyRedeemed = errors.New("promo code already redeemed")

	// ErrPromoMaxUsesReached is returned when the promo's use cap is
	// exhausted
	ErrPromoMaxUsesReached = errors.New("promo code max uses reached")

	ErrInternal = errors.New("internal error")
)

// InsufficientCreditsError reports a spend beyond the available balance.
// The balance is never driven negative.
type InsufficientCreditsError struct {
	Have int
	Need int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: have %d blocks, need %d", e.Have, e.Need)
}

// IsInsufficientCredits reports whether err is an insufficient-credits
// failure.
func IsInsufficientCredits(err error) bool {
	var target *InsufficientCreditsError
	return errors.As(err, &target)
}
