package invoices

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/internal/http/features/common"
	"github.com/tendant/agencyhub/internal/httputil"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/domain"
	"github.com/tendant/agencyhub/pkg/invoicing"
)

// Service is the invoicing service the handler calls.
type Service interface {
	List(ctx context.Context, c access.Caller, statuses []domain.InvoiceStatus) ([]*domain.Invoice, error)
	Get(ctx context.Context, c access.Caller, id uuid.UUID) (*domain.Invoice, error)
	Create(ctx context.Context, c access.Caller, in invoicing.CreateInput) (*domain.Invoice, error)
	Update(ctx context.Context, c access.Caller, id uuid.UUID, in invoicing.UpdateInput) (*domain.Invoice, error)
	MarkSent(ctx context.Context, c access.Caller, id uuid.UUID) (*domain.Invoice, error)
	MarkPaid(ctx context.Context, c access.Caller, id uuid.UUID) (*domain.Invoice, error)
	Void(ctx context.Context, c access.Caller, id uuid.UUID) (*domain.Invoice, error)
}

// Handler handles invoice endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler creates a new invoices handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// InvoiceResponse represents an invoice.
type InvoiceResponse struct {
	ID             uuid.UUID  `json:"id"`
	Number         string     `json:"number"`
	ConsultationID *uuid.UUID `json:"consultation_id,omitempty"`
	ClientName     string     `json:"client_name"`
	ClientEmail    string     `json:"client_email"`
	AmountCents    int64      `json:"amount_cents"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	PaymentLinkURL *string    `json:"payment_link_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toResponse(inv *domain.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:             inv.ID,
		Number:         inv.Number,
		ConsultationID: inv.ConsultationID,
		ClientName:     inv.ClientName,
		ClientEmail:    inv.ClientEmail,
		AmountCents:    inv.AmountCents,
		Currency:       inv.Currency,
		Status:         string(inv.Status),
		DueDate:        inv.DueDate,
		PaymentLinkURL: inv.PaymentLinkURL,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

// List returns the agency's invoices.
// GET /v1/invoices?status=sent,overdue
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	var statuses []domain.InvoiceStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, domain.InvoiceStatus(s))
			}
		}
	}
	items, err := h.service.List(r.Context(), c, statuses)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	out := make([]InvoiceResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toResponse(item))
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"invoices": out})
}

// Get returns one invoice.
// GET /v1/invoices/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathID(w, r, h.logger, "id")
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), c, id)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(inv))
}

// Create drafts a new invoice.
// POST /v1/invoices
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	var in invoicing.CreateInput
	if !common.Decode(w, r, h.logger, &in) {
		return
	}
	inv, err := h.service.Create(r.Context(), c, in)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, toResponse(inv))
}

// Update changes an open invoice.
// PATCH /v1/invoices/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathID(w, r, h.logger, "id")
	if !ok {
		return
	}
	var in invoicing.UpdateInput
	if !common.Decode(w, r, h.logger, &in) {
		return
	}
	inv, err := h.service.Update(r.Context(), c, id, in)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(inv))
}

type transition func(ctx context.Context, c access.Caller, id uuid.UUID) (*domain.Invoice, error)

func (h *Handler) transition(do transition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := common.Caller(w, r)
		if !ok {
			return
		}
		id, ok := common.PathID(w, r, h.logger, "id")
		if !ok {
			return
		}
		inv, err := do(r.Context(), c, id)
		if err != nil {
			httputil.WriteError(w, h.logger, err)
			return
		}
		httputil.JSON(w, http.StatusOK, toResponse(inv))
	}
}

// Send marks a draft invoice as sent.
// POST /v1/invoices/{id}/send
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	h.transition(h.service.MarkSent)(w, r)
}

// Paid marks an invoice as paid.
// POST /v1/invoices/{id}/paid
func (h *Handler) Paid(w http.ResponseWriter, r *http.Request) {
	h.transition(h.service.MarkPaid)(w, r)
}

// Void voids an invoice.
// POST /v1/invoices/{id}/void
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	h.transition(h.service.Void)(w, r)
}
