package production

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bandroom/bandroom-api/internal/middleware"
	"github.com/bandroom/bandroom-api/internal/pkg/response"
	"github.com/bandroom/bandroom-api/internal/pkg/validator"
)

// Handler handles production HTTP requests. Productions are simple enough
// that the handler sits directly on the repository.
type Handler struct {
	repo *Repository
}

// NewHandler creates a new production handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Create handles POST /productions
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	var req CreateProductionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		response.BadRequest(w, "ends_at must be after starts_at")
		return
	}

	p := &Production{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		Title:           req.Title,
		Venue:           req.Venue,
		IsExternalVenue: req.IsExternalVenue,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		CreatedAt:       time.Now(),
	}

	if err := h.repo.Create(r.Context(), p); err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, p)
}

// Get handles GET /productions/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid production id")
		return
	}

	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "Production not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, p)
}

// List handles GET /productions
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	productions, err := h.repo.ListByOwner(r.Context(), ownerID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, productions)
}
