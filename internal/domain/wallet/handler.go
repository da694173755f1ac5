package wallet

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/gameportal/portal-api/internal/middleware"
	"github.com/gameportal/portal-api/internal/pkg/response"
)

// Handler for the wallet API
type Handler struct {
	service *Service
}

// NewHandler creates wallet handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get handles GET /wallet
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wallet, err := h.service.Get(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, wallet)
}

// Entries handles GET /wallet/entries
func (h *Handler) Entries(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.service.Entries(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, entries)
}
