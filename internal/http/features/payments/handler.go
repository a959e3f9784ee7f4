package payments

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/internal/http/features/common"
	"github.com/tendant/agencyhub/internal/httputil"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/domain"
	paymentsvc "github.com/tendant/agencyhub/pkg/payments"
)

// Service is the payment adapter the handler calls.
type Service interface {
	CreateLink(ctx context.Context, c access.Caller, invoiceID uuid.UUID) (string, error)
	DisableLink(ctx context.Context, c access.Caller, invoiceID uuid.UUID) error
	ConnectAccount(ctx context.Context, c access.Caller) (*paymentsvc.Onboarding, error)
	RefreshStatus(ctx context.Context, c access.Caller) (domain.PaymentAccountStatus, error)
}

// Handler handles payment link and payment account endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler creates a new payments handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// LinkResponse carries the hosted payment page of an invoice.
type LinkResponse struct {
	URL string `json:"url"`
}

// AccountResponse reports the payment account status.
type AccountResponse struct {
	Status          string `json:"status"`
	PaymentsEnabled bool   `json:"payments_enabled"`
	OnboardingURL   string `json:"onboarding_url,omitempty"`
}

func toAccountResponse(status domain.PaymentAccountStatus) AccountResponse {
	return AccountResponse{
		Status:          string(status),
		PaymentsEnabled: status == domain.PaymentAccountActive,
	}
}

// CreateLink returns the payment link of an invoice, creating it on first use.
// POST /v1/invoices/{id}/payment-link
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathID(w, r, h.logger, "id")
	if !ok {
		return
	}
	url, err := h.service.CreateLink(r.Context(), c, id)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, LinkResponse{URL: url})
}

// DisableLink deactivates the payment link of an invoice.
// DELETE /v1/invoices/{id}/payment-link
func (h *Handler) DisableLink(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathID(w, r, h.logger, "id")
	if !ok {
		return
	}
	if err := h.service.DisableLink(r.Context(), c, id); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConnectAccount creates the agency's payment account on first use and
// returns the onboarding link while the provider still needs information.
// The account is always created server-side; request bodies are ignored.
// POST /v1/payments/account
func (h *Handler) ConnectAccount(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	onboarding, err := h.service.ConnectAccount(r.Context(), c)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	resp := toAccountResponse(onboarding.Status)
	resp.OnboardingURL = onboarding.URL
	httputil.JSON(w, http.StatusOK, resp)
}

// RefreshAccount re-reads the account status from the provider.
// POST /v1/payments/account/refresh
func (h *Handler) RefreshAccount(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	status, err := h.service.RefreshStatus(r.Context(), c)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toAccountResponse(status))
}
