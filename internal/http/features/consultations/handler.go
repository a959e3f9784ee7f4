package consultations

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/internal/http/features/common"
	"github.com/tendant/agencyhub/internal/httputil"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/consultation"
	"github.com/tendant/agencyhub/pkg/domain"
)

// Service is the consultation service the handler calls.
type Service interface {
	List(ctx context.Context, c access.Caller, status *domain.ConsultationStatus) ([]*domain.Consultation, error)
	Get(ctx context.Context, c access.Caller, id uuid.UUID) (*domain.Consultation, error)
	Create(ctx context.Context, c access.Caller, in consultation.CreateInput) (*domain.Consultation, error)
	Update(ctx context.Context, c access.Caller, id uuid.UUID, in consultation.UpdateInput) (*domain.Consultation, error)
	UpdateStatus(ctx context.Context, c access.Caller, id uuid.UUID, in consultation.StatusInput) (*domain.Consultation, error)
	Delete(ctx context.Context, c access.Caller, id uuid.UUID) error
}

// Handler handles consultation endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler creates a new consultations handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// ConsultationResponse represents a consultation.
type ConsultationResponse struct {
	ID          uuid.UUID  `json:"id"`
	ClientName  string     `json:"client_name"`
	ClientEmail string     `json:"client_email"`
	ClientPhone *string    `json:"client_phone,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	PackageID   *uuid.UUID `json:"package_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toResponse(c *domain.Consultation) ConsultationResponse {
	return ConsultationResponse{
		ID:          c.ID,
		ClientName:  c.ClientName,
		ClientEmail: c.ClientEmail,
		ClientPhone: c.ClientPhone,
		Notes:       c.Notes,
		Status:      string(c.Status),
		ScheduledAt: c.ScheduledAt,
		PackageID:   c.PackageID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// List returns the agency's consultations, optionally filtered by status.
// GET /v1/consultations?status=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	var status *domain.ConsultationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.ConsultationStatus(raw)
		status = &s
	}
	items, err := h.service.List(r.Context(), c, status)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	out := make([]ConsultationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toResponse(item))
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"consultations": out})
}

// Get returns one consultation.
// GET /v1/consultations/{id}
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

// Create records a new consultation.
// POST /v1/consultations
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	var in consultation.CreateInput
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

// Update changes a consultation.
// PATCH /v1/consultations/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathID(w, r, h.logger, "id")
	if !ok {
		return
	}
	var in consultation.UpdateInput
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

// UpdateStatus moves a consultation to another status.
// POST /v1/consultations/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathID(w, r, h.logger, "id")
	if !ok {
		return
	}
	var in consultation.StatusInput
	if !common.Decode(w, r, h.logger, &in) {
		return
	}
	item, err := h.service.UpdateStatus(r.Context(), c, id, in)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(item))
}

// Delete removes a consultation.
// DELETE /v1/consultations/{id}
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
