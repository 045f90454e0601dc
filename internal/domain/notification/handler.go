package notification

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bandroom/bandroom-api/internal/middleware"
	"github.com/bandroom/bandroom-api/internal/pkg/response"
)

// Handler handles notification HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a new notification handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /notifications
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := h.service.List(r.Context(), ownerID, unreadOnly, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, notifications)
}

// UnreadCount handles GET /notifications/unread-count
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	count, err := h.service.CountUnread(r.Context(), ownerID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]int{"unread": count})
}

// MarkRead handles POST /notifications/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid notification id")
		return
	}

	if err := h.service.MarkRead(r.Context(), ownerID, id); err != nil {
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}

// MarkAllRead handles POST /notifications/read-all
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	if err := h.service.MarkAllRead(r.Context(), ownerID); err != nil {
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}
