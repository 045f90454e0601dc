package booking

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the reservation router. cacheMiddleware, when non-nil,
// wraps the availability endpoint only; every other route reads or writes
// live state.
func (h *Handler) Routes(authMiddleware, cacheMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if cacheMiddleware != nil {
			r.Use(cacheMiddleware)
		}
		r.Get("/availability", h.Availability)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.Create)
		r.Post("/quote", h.Quote)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Post("/{id}/cancel", h.Cancel)
	})

	return r
}
