package series

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the recurring series router.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/skip", h.SkipInstance)
		r.Post("/{id}/cancel", h.Cancel)
		r.Put("/{id}/end-date", h.Extend)
	})

	return r
}
