// Package export builds the GDPR data export documents for an agency and for
// a user. Key names are stable; new fields are only ever added, and
// exportVersion changes when the shape does.
package export

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/activity"
	"github.com/tendant/agencyhub/pkg/domain"
)

// Version is the export document schema version.
const Version = "1.0"

type Agencies interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Agency, error)
}

type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type Members interface {
	ListMembers(ctx context.Context, agencyID uuid.UUID) ([]*domain.Member, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.AgencyMembership, error)
}

type Content interface {
	ListTemplates(ctx context.Context, agencyID uuid.UUID) ([]*domain.Template, error)
	ListDrafts(ctx context.Context, agencyID uuid.UUID) ([]*domain.Draft, error)
	ListDraftVersions(ctx context.Context, agencyID uuid.UUID) ([]*domain.DraftVersion, error)
}

type Consultations interface {
	List(ctx context.Context, agencyID uuid.UUID, status *domain.ConsultationStatus) ([]*domain.Consultation, error)
}

type Activity interface {
	ListByAgency(ctx context.Context, agencyID uuid.UUID, limit int) ([]*domain.ActivityEntry, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ActivityEntry, error)
}

// Sources are the stores an export reads from.
type Sources struct {
	Agencies      Agencies
	Users         Users
	Members       Members
	Content       Content
	Consultations Consultations
	Activity      Activity
}

// AgencyExport is the export document of an agency.
type AgencyExport struct {
	ExportedAt    time.Time       `json:"exportedAt"`
	ExportVersion string          `json:"exportVersion"`
	Agency        Agency          `json:"agency"`
	Members       []Member        `json:"members"`
	Templates     []Template      `json:"templates"`
	Consultations []Consultation  `json:"consultations"`
	Drafts        []Draft         `json:"drafts"`
	Versions      []DraftVersion  `json:"versions"`
	ActivityLog   []ActivityEntry `json:"activityLog"`
}

// UserExport is the export document of a user.
type UserExport struct {
	ExportedAt    time.Time       `json:"exportedAt"`
	ExportVersion string          `json:"exportVersion"`
	User          User            `json:"user"`
	Memberships   []Membership    `json:"memberships"`
	ActivityLog   []ActivityEntry `json:"activityLog"`
}

type Agency struct {
	ID                   uuid.UUID  `json:"id"`
	Name                 string     `json:"name"`
	Slug                 string     `json:"slug"`
	Status               string     `json:"status"`
	DeletionScheduledFor *time.Time `json:"deletionScheduledFor"`
	CreatedAt            time.Time  `json:"createdAt"`
}

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Member struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type Membership struct {
	ID         uuid.UUID `json:"id"`
	AgencyID   uuid.UUID `json:"agencyId"`
	AgencyName string    `json:"agencyName"`
	AgencySlug string    `json:"agencySlug"`
	Role       string    `json:"role"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Template struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Consultation struct {
	ID          uuid.UUID  `json:"id"`
	ClientName  string     `json:"clientName"`
	ClientEmail string     `json:"clientEmail"`
	ClientPhone *string    `json:"clientPhone"`
	Notes       *string    `json:"notes"`
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	PackageID   *uuid.UUID `json:"packageId"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Draft struct {
	ID         uuid.UUID  `json:"id"`
	TemplateID *uuid.UUID `json:"templateId"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	CreatedBy  *uuid.UUID `json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type DraftVersion struct {
	ID        uuid.UUID  `json:"id"`
	DraftID   uuid.UUID  `json:"draftId"`
	Version   int        `json:"version"`
	Body      string     `json:"body"`
	CreatedBy *uuid.UUID `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
}

type ActivityEntry struct {
	ID         uuid.UUID       `json:"id"`
	AgencyID   uuid.UUID       `json:"agencyId"`
	UserID     *uuid.UUID      `json:"userId"`
	ActorEmail *string         `json:"actorEmail"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   *uuid.UUID      `json:"entityId"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Service builds export documents.
type Service struct {
	src      Sources
	policy   *access.Policy
	activity *activity.Log
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates an export service.
func NewService(src Sources, policy *access.Policy, log *activity.Log, logger *slog.Logger) *Service {
	return &Service{
		src:      src,
		policy:   policy,
		activity: log,
		logger:   logger,
		now:      time.Now,
	}
}

// ExportAgency returns every record the caller's agency owns.
func (s *Service) ExportAgency(ctx context.Context, c access.Caller) (*AgencyExport, error) {
	if err := s.policy.Require(c, access.ActionAgencyExport); err != nil {
		return nil, err
	}

	agency, err := s.src.Agencies.GetByID(ctx, c.AgencyID)
	if err != nil {
		return nil, err
	}
	members, err := s.src.Members.ListMembers(ctx, c.AgencyID)
	if err != nil {
		return nil, err
	}
	templates, err := s.src.Content.ListTemplates(ctx, c.AgencyID)
	if err != nil {
		return nil, err
	}
	consultations, err := s.src.Consultations.List(ctx, c.AgencyID, nil)
	if err != nil {
		return nil, err
	}
	drafts, err := s.src.Content.ListDrafts(ctx, c.AgencyID)
	if err != nil {
		return nil, err
	}
	versions, err := s.src.Content.ListDraftVersions(ctx, c.AgencyID)
	if err != nil {
		return nil, err
	}
	entries, err := s.src.Activity.ListByAgency(ctx, c.AgencyID, 0)
	if err != nil {
		return nil, err
	}

	doc := &AgencyExport{
		ExportedAt:    s.now().UTC(),
		ExportVersion: Version,
		Agency: Agency{
			ID:                   agency.ID,
			Name:                 agency.Name,
			Slug:                 agency.Slug,
			Status:               string(agency.Status),
			DeletionScheduledFor: agency.DeletionScheduledFor,
			CreatedAt:            agency.CreatedAt,
		},
		Members:       make([]Member, 0, len(members)),
		Templates:     make([]Template, 0, len(templates)),
		Consultations: make([]Consultation, 0, len(consultations)),
		Drafts:        make([]Draft, 0, len(drafts)),
		Versions:      make([]DraftVersion, 0, len(versions)),
		ActivityLog:   toActivity(entries),
	}
	for _, m := range members {
		doc.Members = append(doc.Members, Member{
			ID:        m.ID,
			UserID:    m.UserID,
			Email:     m.Email,
			Name:      m.Name,
			Role:      string(m.Role),
			Status:    string(m.Status),
			CreatedAt: m.CreatedAt,
		})
	}
	for _, t := range templates {
		doc.Templates = append(doc.Templates, Template{
			ID:        t.ID,
			Name:      t.Name,
			Body:      t.Body,
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		})
	}
	for _, c := range consultations {
		doc.Consultations = append(doc.Consultations, Consultation{
			ID:          c.ID,
			ClientName:  c.ClientName,
			ClientEmail: c.ClientEmail,
			ClientPhone: c.ClientPhone,
			Notes:       c.Notes,
			Status:      string(c.Status),
			ScheduledAt: c.ScheduledAt,
			PackageID:   c.PackageID,
			CreatedAt:   c.CreatedAt,
		})
	}
	for _, d := range drafts {
		doc.Drafts = append(doc.Drafts, Draft{
			ID:         d.ID,
			TemplateID: d.TemplateID,
			Title:      d.Title,
			Body:       d.Body,
			CreatedBy:  d.CreatedBy,
			CreatedAt:  d.CreatedAt,
			UpdatedAt:  d.UpdatedAt,
		})
	}
	for _, v := range versions {
		doc.Versions = append(doc.Versions, DraftVersion{
			ID:        v.ID,
			DraftID:   v.DraftID,
			Version:   v.Version,
			Body:      v.Body,
			CreatedBy: v.CreatedBy,
			CreatedAt: v.CreatedAt,
		})
	}

	s.logger.Info("agency exported", "agency_id", c.AgencyID, "requested_by", c.UserID)
	s.activity.Record(ctx, c, domain.ActionAgencyExported, "agency", &c.AgencyID, nil)
	return doc, nil
}

// ExportUser returns the caller's own account data across agencies.
func (s *Service) ExportUser(ctx context.Context, c access.Caller) (*UserExport, error) {
	user, err := s.src.Users.GetByID(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	memberships, err := s.src.Members.ListByUser(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	entries, err := s.src.Activity.ListByUser(ctx, c.UserID)
	if err != nil {
		return nil, err
	}

	doc := &UserExport{
		ExportedAt:    s.now().UTC(),
		ExportVersion: Version,
		User: User{
			ID:        user.ID,
			Email:     user.Email,
			Name:      user.Name,
			CreatedAt: user.CreatedAt,
		},
		Memberships: make([]Membership, 0, len(memberships)),
		ActivityLog: toActivity(entries),
	}
	for _, m := range memberships {
		doc.Memberships = append(doc.Memberships, Membership{
			ID:         m.ID,
			AgencyID:   m.AgencyID,
			AgencyName: m.AgencyName,
			AgencySlug: m.AgencySlug,
			Role:       string(m.Role),
			Status:     string(m.Status),
			CreatedAt:  m.CreatedAt,
		})
	}

	s.logger.Info("user exported", "user_id", c.UserID)
	return doc, nil
}

func toActivity(entries []*domain.ActivityEntry) []ActivityEntry {
	out := make([]ActivityEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ActivityEntry{
			ID:         e.ID,
			AgencyID:   e.AgencyID,
			UserID:     e.UserID,
			ActorEmail: e.ActorEmail,
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Metadata:   e.Metadata,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}
