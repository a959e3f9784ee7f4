// Package agency manages the caller's agency profile, its members and its
// activity log.
package agency

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/activity"
	"github.com/tendant/agencyhub/pkg/dispatch"
	"github.com/tendant/agencyhub/pkg/domain"
	"github.com/tendant/agencyhub/pkg/slug"
	"github.com/tendant/agencyhub/pkg/validation"
)

const (
	DefaultActivityLimit = 50
	MaxActivityLimit     = 500
)

// Agencies is the agency storage the service needs.
type Agencies interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Agency, error)
	// UpdateProfile fails with domain.ErrSlugTaken when slug is in use.
	UpdateProfile(ctx context.Context, id uuid.UUID, name, slug string) error
}

// Members is the membership storage the service needs.
type Members interface {
	ListMembers(ctx context.Context, agencyID uuid.UUID) ([]*domain.Member, error)
	GetByID(ctx context.Context, agencyID, id uuid.UUID) (*domain.Membership, error)
	CountActiveOwners(ctx context.Context, agencyID uuid.UUID) (int, error)
	UpdateRole(ctx context.Context, agencyID, id uuid.UUID, role domain.Role) error
	UpdateStatus(ctx context.Context, agencyID, id uuid.UUID, status domain.MembershipStatus) error
}

// ActivityReader lists activity entries.
type ActivityReader interface {
	ListByAgency(ctx context.Context, agencyID uuid.UUID, limit int) ([]*domain.ActivityEntry, error)
}

// UpdateInput renames the agency.
type UpdateInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// RoleInput changes a member's role.
type RoleInput struct {
	Role domain.Role `json:"role" validate:"required,oneof=owner admin member"`
}

type agencyArgs struct {
	AgencyID uuid.UUID
}

type activityArgs struct {
	AgencyID uuid.UUID
	Limit    int
}

// Service implements agency operations.
type Service struct {
	agencies Agencies
	members  Members
	reader   ActivityReader
	policy   *access.Policy
	activity *activity.Log
	logger   *slog.Logger

	get         dispatch.Query[agencyArgs, *domain.Agency]
	listMembers dispatch.Query[agencyArgs, []*domain.Member]
	listLog     dispatch.Query[activityArgs, []*domain.ActivityEntry]
}

// NewService creates an agency service.
func NewService(agencies Agencies, members Members, reader ActivityReader, policy *access.Policy, log *activity.Log, logger *slog.Logger) *Service {
	s := &Service{
		agencies: agencies,
		members:  members,
		reader:   reader,
		policy:   policy,
		activity: log,
		logger:   logger,
	}
	s.get = dispatch.Query[agencyArgs, *domain.Agency]{
		Name:  "agency.get",
		Reads: []dispatch.Entity{dispatch.EntityAgency},
		Fetch: func(ctx context.Context, a agencyArgs) (*domain.Agency, error) {
			return s.agencies.GetByID(ctx, a.AgencyID)
		},
	}
	s.listMembers = dispatch.Query[agencyArgs, []*domain.Member]{
		Name:  "agency.members",
		Reads: []dispatch.Entity{dispatch.EntityMembership},
		Fetch: func(ctx context.Context, a agencyArgs) ([]*domain.Member, error) {
			return s.members.ListMembers(ctx, a.AgencyID)
		},
	}
	s.listLog = dispatch.Query[activityArgs, []*domain.ActivityEntry]{
		Name:  "agency.activity",
		Reads: []dispatch.Entity{dispatch.EntityActivity},
		Fetch: func(ctx context.Context, a activityArgs) ([]*domain.ActivityEntry, error) {
			return s.reader.ListByAgency(ctx, a.AgencyID, a.Limit)
		},
	}
	return s
}

// Get returns the caller's agency.
func (s *Service) Get(ctx context.Context, c access.Caller) (*domain.Agency, error) {
	if err := s.policy.Require(c, access.ActionAgencyRead); err != nil {
		return nil, err
	}
	return dispatch.Read(ctx, dispatch.FromContext(ctx), c.AgencyID, s.get, agencyArgs{AgencyID: c.AgencyID})
}

// Update renames the agency and derives a new unique slug from the name.
func (s *Service) Update(ctx context.Context, c access.Caller, in UpdateInput) (*domain.Agency, error) {
	if err := s.policy.Require(c, access.ActionAgencyUpdate); err != nil {
		return nil, err
	}
	in.Name = validation.Line(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	agency, err := s.agencies.GetByID(ctx, c.AgencyID)
	if err != nil {
		return nil, err
	}
	if agency.Name == in.Name {
		return agency, nil
	}
	previous := agency.Name

	cmd := dispatch.Command[*domain.Agency, struct{}]{
		Name:   "agency.update",
		Writes: []dispatch.Entity{dispatch.EntityAgency},
		Run: func(ctx context.Context, a *domain.Agency) (struct{}, error) {
			base := slug.Make(in.Name)
			if slug.Make(a.Name) == base {
				// same base name: keep the current, possibly suffixed, slug
				base = a.Slug
			}
			newSlug, err := slug.Insert(ctx, base, func(ctx context.Context, candidate string) error {
				return s.agencies.UpdateProfile(ctx, a.ID, in.Name, candidate)
			})
			if err != nil {
				return struct{}{}, err
			}
			a.Name, a.Slug = in.Name, newSlug
			return struct{}{}, nil
		},
	}
	if _, err := dispatch.Exec(ctx, dispatch.FromContext(ctx), c.AgencyID, cmd, agency); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, c, domain.ActionAgencyUpdated, "agency", &agency.ID, map[string]any{
		"previous_name": previous,
		"name":          agency.Name,
		"slug":          agency.Slug,
	})
	return agency, nil
}

// ListMembers returns the agency's members with their user details.
func (s *Service) ListMembers(ctx context.Context, c access.Caller) ([]*domain.Member, error) {
	if err := s.policy.Require(c, access.ActionMembersRead); err != nil {
		return nil, err
	}
	return dispatch.Read(ctx, dispatch.FromContext(ctx), c.AgencyID, s.listMembers, agencyArgs{AgencyID: c.AgencyID})
}

// ChangeMemberRole sets a member's role. Only owners grant or revoke the
// owner role, and the last active owner cannot be demoted.
func (s *Service) ChangeMemberRole(ctx context.Context, c access.Caller, membershipID uuid.UUID, in RoleInput) (*domain.Membership, error) {
	if err := s.policy.Require(c, access.ActionMembersManage); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	m, err := s.members.GetByID(ctx, c.AgencyID, membershipID)
	if err != nil {
		return nil, err
	}
	if m.Role == in.Role {
		return m, nil
	}
	if (m.Role == domain.RoleOwner || in.Role == domain.RoleOwner) && c.Role != domain.RoleOwner {
		return nil, domain.ErrPermissionDenied
	}
	if m.Role == domain.RoleOwner && m.IsActive() {
		if err := s.keepAnOwner(ctx, c.AgencyID); err != nil {
			return nil, err
		}
	}

	from := m.Role
	if err := s.writeMembership(ctx, c, m.ID, func(ctx context.Context) error {
		return s.members.UpdateRole(ctx, c.AgencyID, m.ID, in.Role)
	}); err != nil {
		return nil, err
	}
	m.Role = in.Role

	s.activity.Record(ctx, c, domain.ActionMemberRoleChanged, "membership", &m.ID, map[string]any{
		"from": from,
		"to":   in.Role,
	})
	return m, nil
}

// SuspendMember suspends a member's access to the agency.
func (s *Service) SuspendMember(ctx context.Context, c access.Caller, membershipID uuid.UUID) (*domain.Membership, error) {
	if err := s.policy.Require(c, access.ActionMembersManage); err != nil {
		return nil, err
	}
	if membershipID == c.MembershipID {
		return nil, domain.Invalid("id", "cannot suspend your own membership")
	}

	m, err := s.members.GetByID(ctx, c.AgencyID, membershipID)
	if err != nil {
		return nil, err
	}
	if m.Status == domain.MembershipStatusSuspended {
		return m, nil
	}
	if m.Role == domain.RoleOwner && c.Role != domain.RoleOwner {
		return nil, domain.ErrPermissionDenied
	}
	if m.Role == domain.RoleOwner && m.IsActive() {
		if err := s.keepAnOwner(ctx, c.AgencyID); err != nil {
			return nil, err
		}
	}

	if err := s.writeMembership(ctx, c, m.ID, func(ctx context.Context) error {
		return s.members.UpdateStatus(ctx, c.AgencyID, m.ID, domain.MembershipStatusSuspended)
	}); err != nil {
		return nil, err
	}
	m.Status = domain.MembershipStatusSuspended

	s.activity.Record(ctx, c, domain.ActionMemberSuspended, "membership", &m.ID, nil)
	return m, nil
}

// ListActivity returns the newest activity entries of the agency.
func (s *Service) ListActivity(ctx context.Context, c access.Caller, limit int) ([]*domain.ActivityEntry, error) {
	if err := s.policy.Require(c, access.ActionActivityRead); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultActivityLimit
	case limit > MaxActivityLimit:
		limit = MaxActivityLimit
	}
	return dispatch.Read(ctx, dispatch.FromContext(ctx), c.AgencyID, s.listLog, activityArgs{AgencyID: c.AgencyID, Limit: limit})
}

func (s *Service) keepAnOwner(ctx context.Context, agencyID uuid.UUID) error {
	owners, err := s.members.CountActiveOwners(ctx, agencyID)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return domain.ErrLastOwner
	}
	return nil
}

func (s *Service) writeMembership(ctx context.Context, c access.Caller, id uuid.UUID, write func(context.Context) error) error {
	cmd := dispatch.Command[uuid.UUID, struct{}]{
		Name:   "agency.membership",
		Writes: []dispatch.Entity{dispatch.EntityMembership},
		Run: func(ctx context.Context, _ uuid.UUID) (struct{}, error) {
			return struct{}{}, write(ctx)
		},
	}
	_, err := dispatch.Exec(ctx, dispatch.FromContext(ctx), c.AgencyID, cmd, id)
	return err
}
