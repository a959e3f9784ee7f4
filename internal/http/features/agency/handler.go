package agency

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/internal/http/features/common"
	"github.com/tendant/agencyhub/internal/httputil"
	"github.com/tendant/agencyhub/pkg/access"
	agencysvc "github.com/tendant/agencyhub/pkg/agency"
	"github.com/tendant/agencyhub/pkg/domain"
)

// Service is the agency service the handler calls.
type Service interface {
	Get(ctx context.Context, c access.Caller) (*domain.Agency, error)
	Update(ctx context.Context, c access.Caller, in agencysvc.UpdateInput) (*domain.Agency, error)
	ListMembers(ctx context.Context, c access.Caller) ([]*domain.Member, error)
	ChangeMemberRole(ctx context.Context, c access.Caller, membershipID uuid.UUID, in agencysvc.RoleInput) (*domain.Membership, error)
	SuspendMember(ctx context.Context, c access.Caller, membershipID uuid.UUID) (*domain.Membership, error)
	ListActivity(ctx context.Context, c access.Caller, limit int) ([]*domain.ActivityEntry, error)
}

// Handler handles agency profile, member and activity endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler creates a new agency handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// AgencyResponse represents an agency.
type AgencyResponse struct {
	ID                   uuid.UUID  `json:"id"`
	Name                 string     `json:"name"`
	Slug                 string     `json:"slug"`
	Status               string     `json:"status"`
	PaymentAccountStatus string     `json:"payment_account_status"`
	PaymentsEnabled      bool       `json:"payments_enabled"`
	DeletionScheduledFor *time.Time `json:"deletion_scheduled_for,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// MemberResponse represents a membership.
type MemberResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Name      *string   `json:"name,omitempty"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityResponse represents an activity log entry.
type ActivityResponse struct {
	ID         uuid.UUID       `json:"id"`
	UserID     *uuid.UUID      `json:"user_id,omitempty"`
	ActorEmail *string         `json:"actor_email,omitempty"`
	ActorName  *string         `json:"actor_name,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   *uuid.UUID      `json:"entity_id,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func toAgencyResponse(a *domain.Agency) AgencyResponse {
	return AgencyResponse{
		ID:                   a.ID,
		Name:                 a.Name,
		Slug:                 a.Slug,
		Status:               string(a.Status),
		PaymentAccountStatus: string(a.StripeAccountStatus),
		PaymentsEnabled:      a.PaymentsEnabled(),
		DeletionScheduledFor: a.DeletionScheduledFor,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func toMemberResponse(m *domain.Membership) MemberResponse {
	return MemberResponse{
		ID:        m.ID,
		UserID:    m.UserID,
		Role:      string(m.Role),
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt,
	}
}

// Get returns the caller's agency.
// GET /v1/agency
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), c)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toAgencyResponse(a))
}

// Update renames the caller's agency.
// PATCH /v1/agency
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	var in agencysvc.UpdateInput
	if !common.Decode(w, r, h.logger, &in) {
		return
	}
	a, err := h.service.Update(r.Context(), c, in)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toAgencyResponse(a))
}

// ListMembers returns the agency's members.
// GET /v1/agency/members
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	members, err := h.service.ListMembers(r.Context(), c)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	out := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		resp := toMemberResponse(&m.Membership)
		resp.Email, resp.Name = m.Email, m.Name
		out = append(out, resp)
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"members": out})
}

// ChangeRole changes a member's role.
// PATCH /v1/agency/members/{id}/role
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathID(w, r, h.logger, "id")
	if !ok {
		return
	}
	var in agencysvc.RoleInput
	if !common.Decode(w, r, h.logger, &in) {
		return
	}
	m, err := h.service.ChangeMemberRole(r.Context(), c, id, in)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toMemberResponse(m))
}

// Suspend suspends a member.
// POST /v1/agency/members/{id}/suspend
func (h *Handler) Suspend(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	id, ok := common.PathID(w, r, h.logger, "id")
	if !ok {
		return
	}
	m, err := h.service.SuspendMember(r.Context(), c, id)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toMemberResponse(m))
}

// Activity returns the newest activity entries of the agency.
// GET /v1/agency/activity?limit=
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	limit, ok := common.QueryInt(w, r, h.logger, "limit")
	if !ok {
		return
	}
	entries, err := h.service.ListActivity(r.Context(), c, limit)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	out := make([]ActivityResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ActivityResponse{
			ID:         e.ID,
			UserID:     e.UserID,
			ActorEmail: e.ActorEmail,
			ActorName:  e.ActorName,
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Metadata:   e.Metadata,
			CreatedAt:  e.CreatedAt,
		})
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"activity": out})
}
