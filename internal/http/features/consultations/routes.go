package consultations

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers consultation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/consultations", h.List)
	r.Post("/v1/consultations", h.Create)
	r.Get("/v1/consultations/{id}", h.Get)
	r.Patch("/v1/consultations/{id}", h.Update)
	r.Post("/v1/consultations/{id}/status", h.UpdateStatus)
	r.Delete("/v1/consultations/{id}", h.Delete)
}
