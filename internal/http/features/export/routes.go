package export

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers export routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/agency/export", h.Agency)
	r.Get("/v1/me/export", h.User)
}
