// Package catalog manages the service packages an agency sells.
package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/activity"
	"github.com/tendant/agencyhub/pkg/dispatch"
	"github.com/tendant/agencyhub/pkg/domain"
	"github.com/tendant/agencyhub/pkg/slug"
	"github.com/tendant/agencyhub/pkg/validation"
)

// Store persists packages. Create and Update fail with domain.ErrSlugTaken
// when the slug is already used in the agency.
type Store interface {
	List(ctx context.Context, agencyID uuid.UUID, activeOnly bool) ([]*domain.ServicePackage, error)
	GetByID(ctx context.Context, agencyID, id uuid.UUID) (*domain.ServicePackage, error)
	Create(ctx context.Context, p *domain.ServicePackage) error
	Update(ctx context.Context, p *domain.ServicePackage) error
	Delete(ctx context.Context, agencyID, id uuid.UUID) error
}

// CreateInput is the payload for a new package.
type CreateInput struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	PriceCents  int64   `json:"price_cents" validate:"gte=0"`
	Currency    string  `json:"currency" validate:"required,currency"`
	Active      *bool   `json:"active"`
}

// UpdateInput changes the non-nil fields of a package.
type UpdateInput struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	PriceCents  *int64  `json:"price_cents" validate:"omitempty,gte=0"`
	Currency    *string `json:"currency" validate:"omitempty,currency"`
}

func (in CreateInput) normalized() CreateInput {
	in.Name = validation.Line(in.Name)
	in.Description = validation.TextPtr(in.Description)
	return in
}

func (in UpdateInput) normalized() UpdateInput {
	in.Name = validation.LinePtr(in.Name)
	in.Description = validation.TextPtr(in.Description)
	return in
}

type listArgs struct {
	AgencyID   uuid.UUID
	ActiveOnly bool
}

type recordArgs struct {
	AgencyID uuid.UUID
	ID       uuid.UUID
}

// Service implements package operations.
type Service struct {
	store    Store
	policy   *access.Policy
	activity *activity.Log
	logger   *slog.Logger
	now      func() time.Time

	list dispatch.Query[listArgs, []*domain.ServicePackage]
	get  dispatch.Query[recordArgs, *domain.ServicePackage]
}

// NewService creates a catalog service.
func NewService(store Store, policy *access.Policy, log *activity.Log, logger *slog.Logger) *Service {
	s := &Service{
		store:    store,
		policy:   policy,
		activity: log,
		logger:   logger,
		now:      time.Now,
	}
	s.list = dispatch.Query[listArgs, []*domain.ServicePackage]{
		Name:  "packages.list",
		Reads: []dispatch.Entity{dispatch.EntityPackage},
		Fetch: func(ctx context.Context, a listArgs) ([]*domain.ServicePackage, error) {
			return s.store.List(ctx, a.AgencyID, a.ActiveOnly)
		},
	}
	s.get = dispatch.Query[recordArgs, *domain.ServicePackage]{
		Name:  "packages.get",
		Reads: []dispatch.Entity{dispatch.EntityPackage},
		Fetch: func(ctx context.Context, a recordArgs) (*domain.ServicePackage, error) {
			return s.store.GetByID(ctx, a.AgencyID, a.ID)
		},
	}
	return s
}

// List returns the agency's packages.
func (s *Service) List(ctx context.Context, c access.Caller, activeOnly bool) ([]*domain.ServicePackage, error) {
	if err := s.policy.Require(c, access.ActionPackagesRead); err != nil {
		return nil, err
	}
	return dispatch.Read(ctx, dispatch.FromContext(ctx), c.AgencyID, s.list, listArgs{AgencyID: c.AgencyID, ActiveOnly: activeOnly})
}

// Get returns one package.
func (s *Service) Get(ctx context.Context, c access.Caller, id uuid.UUID) (*domain.ServicePackage, error) {
	if err := s.policy.Require(c, access.ActionPackagesRead); err != nil {
		return nil, err
	}
	return dispatch.Read(ctx, dispatch.FromContext(ctx), c.AgencyID, s.get, recordArgs{AgencyID: c.AgencyID, ID: id})
}

// Create adds a package with a slug unique within the agency.
func (s *Service) Create(ctx context.Context, c access.Caller, in CreateInput) (*domain.ServicePackage, error) {
	if err := s.policy.Require(c, access.ActionPackagesWrite); err != nil {
		return nil, err
	}
	in = in.normalized()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	pkg := &domain.ServicePackage{
		ID:          uuid.New(),
		AgencyID:    c.AgencyID,
		Name:        in.Name,
		Description: in.Description,
		PriceCents:  in.PriceCents,
		Currency:    in.Currency,
		Active:      in.Active == nil || *in.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	cmd := dispatch.Command[*domain.ServicePackage, *domain.ServicePackage]{
		Name:   "packages.create",
		Writes: []dispatch.Entity{dispatch.EntityPackage},
		Run: func(ctx context.Context, p *domain.ServicePackage) (*domain.ServicePackage, error) {
			_, err := slug.Insert(ctx, slug.Make(p.Name), func(ctx context.Context, candidate string) error {
				p.Slug = candidate
				return s.store.Create(ctx, p)
			})
			return p, err
		},
	}
	if _, err := dispatch.Exec(ctx, dispatch.FromContext(ctx), c.AgencyID, cmd, pkg); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, c, domain.ActionPackageCreated, "package", &pkg.ID, map[string]any{"slug": pkg.Slug})
	return pkg, nil
}

// Update changes the provided fields. A new name gives the package a new slug.
func (s *Service) Update(ctx context.Context, c access.Caller, id uuid.UUID, in UpdateInput) (*domain.ServicePackage, error) {
	if err := s.policy.Require(c, access.ActionPackagesWrite); err != nil {
		return nil, err
	}
	in = in.normalized()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	pkg, err := s.store.GetByID(ctx, c.AgencyID, id)
	if err != nil {
		return nil, err
	}
	renamed := in.Name != nil && *in.Name != pkg.Name
	if in.Name != nil {
		pkg.Name = *in.Name
	}
	if in.Description != nil {
		pkg.Description = in.Description
	}
	if in.PriceCents != nil {
		pkg.PriceCents = *in.PriceCents
	}
	if in.Currency != nil {
		pkg.Currency = *in.Currency
	}

	if err := s.save(ctx, c, pkg, renamed); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, c, domain.ActionPackageUpdated, "package", &pkg.ID, nil)
	return pkg, nil
}

// SetActive shows or hides a package from new consultations.
func (s *Service) SetActive(ctx context.Context, c access.Caller, id uuid.UUID, active bool) (*domain.ServicePackage, error) {
	if err := s.policy.Require(c, access.ActionPackagesWrite); err != nil {
		return nil, err
	}

	pkg, err := s.store.GetByID(ctx, c.AgencyID, id)
	if err != nil {
		return nil, err
	}
	if pkg.Active == active {
		return pkg, nil
	}
	pkg.Active = active

	if err := s.save(ctx, c, pkg, false); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, c, domain.ActionPackageUpdated, "package", &pkg.ID, map[string]any{"active": active})
	return pkg, nil
}

// Delete removes a package.
func (s *Service) Delete(ctx context.Context, c access.Caller, id uuid.UUID) error {
	if err := s.policy.Require(c, access.ActionPackagesWrite); err != nil {
		return err
	}

	cmd := dispatch.Command[recordArgs, struct{}]{
		Name:   "packages.delete",
		Writes: []dispatch.Entity{dispatch.EntityPackage},
		Run: func(ctx context.Context, a recordArgs) (struct{}, error) {
			return struct{}{}, s.store.Delete(ctx, a.AgencyID, a.ID)
		},
	}
	if _, err := dispatch.Exec(ctx, dispatch.FromContext(ctx), c.AgencyID, cmd, recordArgs{AgencyID: c.AgencyID, ID: id}); err != nil {
		return err
	}
	s.activity.Record(ctx, c, domain.ActionPackageDeleted, "package", &id, nil)
	return nil
}

func (s *Service) save(ctx context.Context, c access.Caller, pkg *domain.ServicePackage, reslug bool) error {
	cmd := dispatch.Command[*domain.ServicePackage, struct{}]{
		Name:   "packages.update",
		Writes: []dispatch.Entity{dispatch.EntityPackage},
		Run: func(ctx context.Context, p *domain.ServicePackage) (struct{}, error) {
			if !reslug {
				return struct{}{}, s.store.Update(ctx, p)
			}
			_, err := slug.Insert(ctx, slug.Make(p.Name), func(ctx context.Context, candidate string) error {
				p.Slug = candidate
				return s.store.Update(ctx, p)
			})
			return struct{}{}, err
		},
	}
	if _, err := dispatch.Exec(ctx, dispatch.FromContext(ctx), c.AgencyID, cmd, pkg); err != nil {
		return err
	}
	pkg.UpdatedAt = s.now().UTC()
	return nil
}
