package series

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bandroom/bandroom-api/internal/domain/booking"
	"github.com/bandroom/bandroom-api/internal/middleware"
	"github.com/bandroom/bandroom-api/internal/pkg/response"
	"github.com/bandroom/bandroom-api/internal/pkg/validator"
)

// Handler handles recurring series HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a new series handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /series
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	var req CreateSeriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	ser, result, err := h.service.Create(r.Context(), ownerID,
		req.RRule, req.StartTime, req.DurationMinutes,
		req.StartDate, req.EndDate, req.Notes,
		middleware.IsEntitled(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Created(w, CreateSeriesResponse{Series: ser, Result: result})
}

// List handles GET /series
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	list, err := h.service.List(r.Context(), ownerID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, list)
}

// Get handles GET /series/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid series id")
		return
	}

	ser, err := h.service.Get(r.Context(), ownerID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, ser)
}

// SkipInstance handles POST /series/{id}/skip
func (h *Handler) SkipInstance(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid series id")
		return
	}

	var req SkipInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	instance, err := h.service.SkipInstance(r.Context(), ownerID, id, req.Date, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, instance)
}

// Cancel handles POST /series/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid series id")
		return
	}

	var req CancelSeriesRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ser, cancelled, err := h.service.Cancel(r.Context(), ownerID, id, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, CancelSeriesResponse{Series: ser, InstancesCancelled: cancelled})
}

// Extend handles PUT /series/{id}/end-date
func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid series id")
		return
	}

	var req ExtendSeriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	ser, result, err := h.service.Extend(r.Context(), ownerID, id, req.EndDate)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, CreateSeriesResponse{Series: ser, Result: result})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if ve, ok := booking.IsValidationError(err); ok {
		response.ValidationFailed(w, ve.Reasons)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "Series not found")
	case errors.Is(err, ErrNotActive):
		response.Conflict(w, "Series is not active")
	case errors.Is(err, ErrInvalidRule):
		response.BadRequest(w, "Invalid recurrence rule")
	default:
		response.InternalError(w)
	}
}
