package deletion

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers the tenant-scoped deletion routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/agency/deletion", h.Status)
	r.Post("/v1/agency/deletion", h.Schedule)
	r.Delete("/v1/agency/deletion", h.Cancel)
}

// RegisterInternalRoutes registers the scheduler-triggered sweep. The caller
// guards r with the cron secret.
func (h *Handler) RegisterInternalRoutes(r chi.Router) {
	r.Post("/internal/deletion/sweep", h.Sweep)
}
