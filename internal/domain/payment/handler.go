package payment

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gameportal/portal-api/internal/middleware"
	"github.com/gameportal/portal-api/internal/pkg/response"
	"github.com/gameportal/portal-api/internal/pkg/validator"
)

// maxWebhookBody bounds inbound delivery payloads.
const maxWebhookBody = 1 << 20

// Handler for payment orders and provider webhooks
type Handler struct {
	service *Service
}

// NewHandler creates payment handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateOrderRequest for opening a purchase
type CreateOrderRequest struct {
	Provider string `json:"provider" validate:"required,oneof=mercadopago stripe"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
}

// CreateOrder handles POST /payments/orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req CreateOrderRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), userID, Provider(req.Provider), req.Amount)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.Created(w, order)
}

// ListOrders handles GET /payments/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, offset := pagination(r)
	orders, err := h.service.ListOrders(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, orders)
}

// GetOrder handles GET /payments/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		response.InternalError(w)
		return
	}
	if order == nil || order.UserID != userID {
		response.NotFound(w, "order not found")
		return
	}
	response.OK(w, order)
}

// ConfirmOrder handles POST /payments/orders/{id}/confirm (admin only)
func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	err = h.service.ConfirmManually(r.Context(), orderID, userID.String())
	switch {
	case err == nil:
		response.OK(w, map[string]string{"status": string(OrderConfirmed)})
	case errors.Is(err, ErrOrderNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrAlreadyConcluded):
		response.Conflict(w, err.Error())
	default:
		response.InternalError(w)
	}
}

// MercadoPagoWebhook handles POST /webhooks/mercadopago. Verification
// failures are client errors: a 5xx would make the provider retry a
// delivery that can never succeed.
func (h *Handler) MercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}

	err = h.service.HandleMercadoPago(r.Context(), MercadoPagoDelivery{
		SignatureHeader: r.Header.Get("x-signature"),
		RequestID:       r.Header.Get("x-request-id"),
		DataID:          r.URL.Query().Get("data.id"),
		Body:            body,
		SourceIP:        clientIP(r),
		UserAgent:       r.UserAgent(),
	})
	writeWebhookResult(w, err)
}

// StripeWebhook handles POST /webhooks/stripe
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}

	err = h.service.HandleStripe(r.Context(), StripeDelivery{
		SignatureHeader: r.Header.Get("Stripe-Signature"),
		Body:            body,
		SourceIP:        clientIP(r),
		UserAgent:       r.UserAgent(),
	})
	writeWebhookResult(w, err)
}

func writeWebhookResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		response.OK(w, map[string]string{"status": "ok"})
	case errors.Is(err, ErrVerification):
		response.BadRequest(w, "verification failed")
	default:
		response.InternalError(w)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && n > 0 {
		offset = n
	}
	return limit, offset
}
