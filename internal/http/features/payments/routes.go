package payments

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers payment routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/invoices/{id}/payment-link", h.CreateLink)
	r.Delete("/v1/invoices/{id}/payment-link", h.DisableLink)
	r.Post("/v1/payments/account", h.ConnectAccount)
	r.Post("/v1/payments/account/refresh", h.RefreshAccount)
}
