package credit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/bandroom/bandroom-api/internal/middleware"
	"github.com/bandroom/bandroom-api/internal/pkg/response"
	"github.com/bandroom/bandroom-api/internal/pkg/validator"
)

// Handler handles credit ledger HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a new credit handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetBalance handles GET /credits/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	balances := make([]BalanceResponse, 0, 2)
	for _, creditType := range []Type{TypeFreeHours, TypeBonusHours} {
		blocks, err := h.service.GetBalance(r.Context(), ownerID, creditType)
		if err != nil {
			response.InternalError(w)
			return
		}
		balances = append(balances, BalanceResponse{
			CreditType: creditType,
			Blocks:     blocks,
			Hours:      h.service.BlocksToHours(blocks),
		})
	}

	response.OK(w, balances)
}

// ListTransactions handles GET /credits/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	transactions, err := h.service.ListTransactions(r.Context(), ownerID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, transactions)
}

// RedeemPromo handles POST /credits/promo
func (h *Handler) RedeemPromo(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "Owner not authenticated")
		return
	}

	var req RedeemPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	txn, err := h.service.RedeemPromo(r.Context(), ownerID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrPromoNotFound):
			response.NotFound(w, "Promo code not found")
		case errors.Is(err, ErrPromoAlreadyRedeemed):
			response.Conflict(w, "Promo code already redeemed")
		case errors.Is(err, ErrPromoMaxUsesReached):
			response.Conflict(w, "Promo code max uses reached")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, txn)
}

// Grant handles POST /credits/grant (admin).
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		response.BadRequest(w, "Invalid owner_id")
		return
	}

	txn, err := h.service.Grant(r.Context(), ownerID, req.Amount, SourceAdminGrant, Type(req.CreditType), nil, req.Description, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) || errors.Is(err, ErrUnknownCreditType) {
			response.BadRequest(w, err.Error())
			return
		}
		response.InternalError(w)
		return
	}

	response.Created(w, txn)
}

// CreatePromo handles POST /credits/promo-codes (admin).
func (h *Handler) CreatePromo(w http.ResponseWriter, r *http.Request) {
	var req CreatePromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	promo, err := h.service.CreatePromo(r.Context(), req.Code, req.CreditAmount, Type(req.CreditType), req.MaxUses, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) || errors.Is(err, ErrUnknownCreditType) {
			response.BadRequest(w, err.Error())
			return
		}
		response.InternalError(w)
		return
	}

	response.Created(w, promo)
}
