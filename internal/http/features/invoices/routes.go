package invoices

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers invoice routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/invoices", h.List)
	r.Post("/v1/invoices", h.Create)
	r.Get("/v1/invoices/{id}", h.Get)
	r.Patch("/v1/invoices/{id}", h.Update)
	r.Post("/v1/invoices/{id}/send", h.Send)
	r.Post("/v1/invoices/{id}/paid", h.Paid)
	r.Post("/v1/invoices/{id}/void", h.Void)
}
