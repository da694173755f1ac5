package payment

import (
	"github.com/go-chi/chi/v5"

	"github.com/gameportal/portal-api/internal/middleware"
)

// Routes returns payment order router. Auth is applied by the caller.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/orders", h.CreateOrder)
	r.Get("/orders", h.ListOrders)
	r.Get("/orders/{id}", h.GetOrder)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole("admin"))
		r.Post("/orders/{id}/confirm", h.ConfirmOrder)
	})

	return r
}

// WebhookRoutes returns the unauthenticated provider callback router.
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/mercadopago", h.MercadoPagoWebhook)
	r.Post("/stripe", h.StripeWebhook)

	return r
}
