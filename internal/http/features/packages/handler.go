package packages

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/internal/http/features/common"
	"github.com/tendant/agencyhub/internal/httputil"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/catalog"
	"github.com/tendant/agencyhub/pkg/domain"
)

// Service is the package catalog the handler calls.
type Service interface {
	List(ctx context.Context, c access.Caller, activeOnly bool) ([]*domain.ServicePackage, error)
	Get(ctx context.Context, c access.Caller, id uuid.UUID) (*domain.ServicePackage, error)
	Create(ctx context.Context, c access.Caller, in catalog.CreateInput) (*domain.ServicePackage, error)
	Update(ctx context.Context, c access.Caller, id uuid.UUID, in catalog.UpdateInput) (*domain.ServicePackage, error)
	SetActive(ctx context.Context, c access.Caller, id uuid.UUID, active bool) (*domain.ServicePackage, error)
	Delete(ctx context.Context, c access.Caller, id uuid.UUID) error
}

// Handler handles service package endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler creates a new packages handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// PackageResponse represents a service package.
type PackageResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ActiveRequest toggles whether a package is offered.
type ActiveRequest struct {
	Active bool `json:"active"`
}

func toResponse(p *domain.ServicePackage) PackageResponse {
	return PackageResponse{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Currency:    p.Currency,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// List returns the agency's packages.
// GET /v1/packages?active=true
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, h.logger, domain.Invalid("active", "must be true or false"))
			return
		}
		activeOnly = v
	}
	items, err := h.service.List(r.Context(), c, activeOnly)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	out := make([]PackageResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toResponse(item))
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"packages": out})
}

// Get returns one package.
// GET /v1/packages/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathID(w, r, h.logger, "id")
	if !ok {
		return
	}
	item, err := h.service.Get(r.Context(), c, id)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(item))
}

// Create adds a package to the catalog.
// POST /v1/packages
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	var in catalog.CreateInput
	if !common.Decode(w, r, h.logger, &in) {
		return
	}
	item, err := h.service.Create(r.Context(), c, in)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, toResponse(item))
}

// Update changes a package.
// PATCH /v1/packages/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathID(w, r, h.logger, "id")
	if !ok {
		return
	}
	var in catalog.UpdateInput
	if !common.Decode(w, r, h.logger, &in) {
		return
	}
	item, err := h.service.Update(r.Context(), c, id, in)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(item))
}

// SetActive activates or retires a package.
// POST /v1/packages/{id}/active
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathID(w, r, h.logger, "id")
	if !ok {
		return
	}
	var req ActiveRequest
	if !common.Decode(w, r, h.logger, &req) {
		return
	}
	item, err := h.service.SetActive(r.Context(), c, id, req.Active)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(item))
}

// Delete removes a package.
// DELETE /v1/packages/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathID(w, r, h.logger, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), c, id); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
