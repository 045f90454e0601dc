package credit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the credit ledger router.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/balance", h.GetBalance)
		r.Get("/transactions", h.ListTransactions)
		r.Post("/promo", h.RedeemPromo)

		// Grants and promo registration are operator endpoints; upstream
		// routing is expected to gate them.
		r.Post("/grant", h.Grant)
		r.Post("/promo-codes", h.CreatePromo)
	})

	return r
}
