package agency

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/activity"
	"github.com/tendant/agencyhub/pkg/domain"
	"github.com/tendant/agencyhub/pkg/slug"
	"github.com/tendant/agencyhub/pkg/validation"
)

// ProvisionStore creates agencies. CreateWithOwner fails with
// domain.ErrSlugTaken when the slug is in use and then stores nothing.
type ProvisionStore interface {
	CreateWithOwner(ctx context.Context, agency *domain.Agency, owner *domain.Membership) error
}

// Users looks up the owner of a new agency.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	SetLastActiveAgency(ctx context.Context, userID, agencyID uuid.UUID) error
}

// ProvisionInput names a new agency.
type ProvisionInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// Provisioner creates agencies for users of the host application.
type Provisioner struct {
	store    ProvisionStore
	users    Users
	activity *activity.Log
	logger   *slog.Logger
	now      func() time.Time
}

// NewProvisioner creates a provisioner.
func NewProvisioner(store ProvisionStore, users Users, log *activity.Log, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		store:    store,
		users:    users,
		activity: log,
		logger:   logger,
		now:      time.Now,
	}
}

// Provision creates an agency owned by ownerID and returns it with the owner
// membership. The slug is derived from the name with a numeric suffix on
// collision.
func (p *Provisioner) Provision(ctx context.Context, ownerID uuid.UUID, in ProvisionInput) (*domain.Agency, *domain.Membership, error) {
	in.Name = validation.Line(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, nil, err
	}

	owner, err := p.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	now := p.now().UTC()
	agency := &domain.Agency{
		ID:                  uuid.New(),
		Name:                in.Name,
		Status:              domain.AgencyStatusActive,
		StripeAccountStatus: domain.PaymentAccountNone,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	membership := &domain.Membership{
		ID:        uuid.New(),
		AgencyID:  agency.ID,
		UserID:    owner.ID,
		Role:      domain.RoleOwner,
		Status:    domain.MembershipStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	agency.Slug, err = slug.Insert(ctx, slug.Make(in.Name), func(ctx context.Context, candidate string) error {
		agency.Slug = candidate
		return p.store.CreateWithOwner(ctx, agency, membership)
	})
	if err != nil {
		return nil, nil, err
	}

	if err := p.users.SetLastActiveAgency(ctx, owner.ID, agency.ID); err != nil {
		p.logger.Warn("failed to record last active agency", "user_id", owner.ID, "agency_id", agency.ID, "error", err)
	}

	caller := access.Caller{
		UserID:       owner.ID,
		AgencyID:     agency.ID,
		MembershipID: membership.ID,
		Role:         domain.RoleOwner,
		Email:        owner.Email,
	}
	p.activity.Record(ctx, caller, domain.ActionAgencyCreated, "agency", &agency.ID, map[string]any{
		"name": agency.Name,
		"slug": agency.Slug,
	})

	p.logger.Info("agency provisioned", "agency_id", agency.ID, "slug", agency.Slug, "owner_id", owner.ID)
	return agency, membership, nil
}
