package transfer

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/gameportal/portal-api/internal/domain/wallet"
	"github.com/gameportal/portal-api/internal/middleware"
	"github.com/gameportal/portal-api/internal/pkg/gamedb"
	"github.com/gameportal/portal-api/internal/pkg/response"
	"github.com/gameportal/portal-api/internal/pkg/validator"
)

// Handler for the transfer API
type Handler struct {
	service *Service
}

// NewHandler creates transfer handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// TransferRequest for moving value between wallet and game character
type TransferRequest struct {
	Account   string `json:"account" validate:"required,game_name"`
	Character string `json:"character" validate:"required,game_name"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Kind      string `json:"kind" validate:"balance_kind"`
}

// ToCharacter handles POST /transfers/to-character
func (h *Handler) ToCharacter(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.service.ToCharacter)
}

// FromCharacter handles POST /transfers/from-character
func (h *Handler) FromCharacter(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.service.FromCharacter)
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, req Request) (*Result, error)) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req TransferRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	kind := wallet.KindNormal
	if req.Kind == string(wallet.KindBonus) {
		kind = wallet.KindBonus
	}

	res, err := run(r.Context(), Request{
		UserID:    userID,
		Account:   req.Account,
		Character: req.Character,
		Amount:    req.Amount,
		Kind:      kind,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, res)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAmountOutOfRange), errors.Is(err, ErrBonusDisabled):
		response.BadRequest(w, err.Error())
	case errors.Is(err, wallet.ErrInsufficientFunds), errors.Is(err, gamedb.ErrInsufficientItems):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrCharacterNotOwned):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrCharacterNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrCharacterOnline):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrInProgress), errors.Is(err, ErrDuplicate):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrGameUnavailable):
		response.Error(w, http.StatusServiceUnavailable, "GAME_UNAVAILABLE", err.Error())
	default:
		response.InternalError(w)
	}
}
