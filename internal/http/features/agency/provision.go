package agency

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/internal/http/features/common"
	"github.com/tendant/agencyhub/internal/httputil"
	agencysvc "github.com/tendant/agencyhub/pkg/agency"
	"github.com/tendant/agencyhub/pkg/domain"
)

// Provisioner creates agencies for the host's signup flow.
type Provisioner interface {
	Provision(ctx context.Context, ownerID uuid.UUID, in agencysvc.ProvisionInput) (*domain.Agency, *domain.Membership, error)
}

// ProvisionHandler serves the internal agency creation endpoint.
type ProvisionHandler struct {
	logger      *slog.Logger
	provisioner Provisioner
}

// NewProvisionHandler creates a new provisioning handler.
func NewProvisionHandler(logger *slog.Logger, provisioner Provisioner) *ProvisionHandler {
	return &ProvisionHandler{logger: logger, provisioner: provisioner}
}

// ProvisionRequest names the new agency and its owner.
type ProvisionRequest struct {
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	Name        string    `json:"name"`
}

// ProvisionResponse is the new agency and the owner's membership.
type ProvisionResponse struct {
	Agency     AgencyResponse `json:"agency"`
	Membership MemberResponse `json:"membership"`
}

// Provision creates an agency with its first owner.
// POST /internal/agencies
func (h *ProvisionHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req ProvisionRequest
	if !common.Decode(w, r, h.logger, &req) {
		return
	}
	if req.OwnerUserID == uuid.Nil {
		httputil.WriteError(w, h.logger, domain.Invalid("owner_user_id", "is required"))
		return
	}

	agency, membership, err := h.provisioner.Provision(r.Context(), req.OwnerUserID, agencysvc.ProvisionInput{Name: req.Name})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, ProvisionResponse{
		Agency:     toAgencyResponse(agency),
		Membership: toMemberResponse(membership),
	})
}
