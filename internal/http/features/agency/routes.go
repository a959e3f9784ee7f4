package agency

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers agency routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/agency", h.Get)
	r.Patch("/v1/agency", h.Update)
	r.Get("/v1/agency/members", h.ListMembers)
	r.Patch("/v1/agency/members/{id}/role", h.ChangeRole)
	r.Post("/v1/agency/members/{id}/suspend", h.Suspend)
	r.Get("/v1/agency/activity", h.Activity)
}

// RegisterRoutes registers the internal provisioning route. The caller guards
// r with the cron secret.
func (h *ProvisionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/internal/agencies", h.Provision)
}
