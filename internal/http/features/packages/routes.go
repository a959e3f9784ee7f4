package packages

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers package routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/packages", h.List)
	r.Post("/v1/packages", h.Create)
	r.Get("/v1/packages/{id}", h.Get)
	r.Patch("/v1/packages/{id}", h.Update)
	r.Post("/v1/packages/{id}/active", h.SetActive)
	r.Delete("/v1/packages/{id}", h.Delete)
}
