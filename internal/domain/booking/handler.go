package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bandroom/bandroom-api/internal/domain/credit"
	"github.com/bandroom/bandroom-api/internal/middleware"
	"github.com/bandroom/bandroom-api/internal/pkg/response"
	"github.com/bandroom/bandroom-api/internal/pkg/validator"
)

const dateLayout = "2006-01-02"

// Handler handles reservation HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a new booking handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /reservations
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	var req CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	var productionID *uuid.UUID
	if req.ProductionID != nil {
		id, err := uuid.Parse(*req.ProductionID)
		if err != nil {
			response.BadRequest(w, "Invalid production_id")
			return
		}
		productionID = &id
	}

	res, err := h.service.Create(r.Context(),
		ownerID,
		Interval{Start: req.ReservedAt, End: req.ReservedUntil},
		req.Notes,
		productionID,
		middleware.IsEntitled(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Created(w, res)
}

// Quote handles POST /reservations/quote
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	candidate := Interval{Start: req.ReservedAt, End: req.ReservedUntil}
	if err := h.service.Validate(r.Context(), candidate, uuid.Nil); err != nil {
		h.writeError(w, err)
		return
	}

	quote, err := h.service.PrepareQuote(r.Context(), ownerID, candidate, middleware.IsEntitled(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, quote)
}

// List handles GET /reservations
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	reservations, err := h.service.List(r.Context(), ownerID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, reservations)
}

// Get handles GET /reservations/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid reservation id")
		return
	}

	res, err := h.service.Get(r.Context(), ownerID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, res)
}

// Update handles PUT /reservations/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid reservation id")
		return
	}

	var req UpdateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	res, err := h.service.Update(r.Context(),
		ownerID, id,
		Interval{Start: req.ReservedAt, End: req.ReservedUntil},
		req.Notes,
		middleware.IsEntitled(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, res)
}

// Cancel handles POST /reservations/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid reservation id")
		return
	}

	// Body is optional; an empty cancel is a cancel without a reason.
	var req CancelReservationRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	res, err := h.service.Cancel(r.Context(), ownerID, id, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, res)
}

// Availability handles GET /reservations/availability?date=YYYY-MM-DD&min_minutes=N
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	dateParam := r.URL.Query().Get("date")
	if dateParam == "" {
		response.BadRequest(w, "date query parameter is required")
		return
	}
	day, err := time.ParseInLocation(dateLayout, dateParam, time.Local)
	if err != nil {
		response.BadRequest(w, "date must be formatted as YYYY-MM-DD")
		return
	}

	minMinutes, _ := strconv.Atoi(r.URL.Query().Get("min_minutes"))

	gaps, err := h.service.Availability(r.Context(), day, time.Duration(minMinutes)*time.Minute)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, AvailabilityResponse{Date: dateParam, Gaps: gaps})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if ve, ok := IsValidationError(err); ok {
		response.ValidationFailed(w, ve.Reasons)
		return
	}
	if credit.IsInsufficientCredits(err) {
		var ice *credit.InsufficientCreditsError
		errors.As(err, &ice)
		response.Conflict(w, ice.Error())
		return
	}
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "Reservation not found")
		return
	}
	response.InternalError(w)
}
