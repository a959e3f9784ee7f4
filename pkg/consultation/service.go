// Package consultation manages an agency's client consultations.
package consultation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/activity"
	"github.com/tendant/agencyhub/pkg/dispatch"
	"github.com/tendant/agencyhub/pkg/domain"
	"github.com/tendant/agencyhub/pkg/validation"
)

// Store persists consultations. Every method is scoped to an agency.
type Store interface {
	List(ctx context.Context, agencyID uuid.UUID, status *domain.ConsultationStatus) ([]*domain.Consultation, error)
	GetByID(ctx context.Context, agencyID, id uuid.UUID) (*domain.Consultation, error)
	Create(ctx context.Context, c *domain.Consultation) error
	Update(ctx context.Context, c *domain.Consultation) error
	Delete(ctx context.Context, agencyID, id uuid.UUID) error
}

// Packages looks up packages a consultation may reference.
type Packages interface {
	GetByID(ctx context.Context, agencyID, id uuid.UUID) (*domain.ServicePackage, error)
}

// CreateInput is the payload for a new consultation.
type CreateInput struct {
	ClientName  string     `json:"client_name" validate:"required,max=200"`
	ClientEmail string     `json:"client_email" validate:"required,email,max=320"`
	ClientPhone *string    `json:"client_phone" validate:"omitempty,max=50"`
	Notes       *string    `json:"notes" validate:"omitempty,max=5000"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	PackageID   *uuid.UUID `json:"package_id"`
}

// UpdateInput changes the non-nil fields of a consultation.
type UpdateInput struct {
	ClientName  *string    `json:"client_name" validate:"omitempty,min=1,max=200"`
	ClientEmail *string    `json:"client_email" validate:"omitempty,email,max=320"`
	ClientPhone *string    `json:"client_phone" validate:"omitempty,max=50"`
	Notes       *string    `json:"notes" validate:"omitempty,max=5000"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	PackageID   *uuid.UUID `json:"package_id"`
}

func (in CreateInput) normalized() CreateInput {
	in.ClientName = validation.Line(in.ClientName)
	in.ClientEmail = validation.Email(in.ClientEmail)
	in.ClientPhone = validation.LinePtr(in.ClientPhone)
	in.Notes = validation.TextPtr(in.Notes)
	return in
}

func (in UpdateInput) normalized() UpdateInput {
	in.ClientName = validation.LinePtr(in.ClientName)
	in.ClientEmail = validation.EmailPtr(in.ClientEmail)
	in.ClientPhone = validation.LinePtr(in.ClientPhone)
	in.Notes = validation.TextPtr(in.Notes)
	return in
}

// StatusInput moves a consultation to another status.
type StatusInput struct {
	Status domain.ConsultationStatus `json:"status" validate:"required,oneof=new scheduled completed cancelled"`
}

type listArgs struct {
	AgencyID uuid.UUID
	Status   *domain.ConsultationStatus
}

type recordArgs struct {
	AgencyID uuid.UUID
	ID       uuid.UUID
}

// Service implements consultation operations.
type Service struct {
	store    Store
	packages Packages
	policy   *access.Policy
	activity *activity.Log
	logger   *slog.Logger
	now      func() time.Time

	list dispatch.Query[listArgs, []*domain.Consultation]
	get  dispatch.Query[recordArgs, *domain.Consultation]
}

// NewService creates a consultation service.
func NewService(store Store, packages Packages, policy *access.Policy, log *activity.Log, logger *slog.Logger) *Service {
	s := &Service{
		store:    store,
		packages: packages,
		policy:   policy,
		activity: log,
		logger:   logger,
		now:      time.Now,
	}
	s.list = dispatch.Query[listArgs, []*domain.Consultation]{
		Name:  "consultations.list",
		Reads: []dispatch.Entity{dispatch.EntityConsultation},
		Fetch: func(ctx context.Context, a listArgs) ([]*domain.Consultation, error) {
			return s.store.List(ctx, a.AgencyID, a.Status)
		},
	}
	s.get = dispatch.Query[recordArgs, *domain.Consultation]{
		Name:  "consultations.get",
		Reads: []dispatch.Entity{dispatch.EntityConsultation},
		Fetch: func(ctx context.Context, a recordArgs) (*domain.Consultation, error) {
			return s.store.GetByID(ctx, a.AgencyID, a.ID)
		},
	}
	return s
}

// List returns the caller's consultations, optionally filtered by status.
func (s *Service) List(ctx context.Context, c access.Caller, status *domain.ConsultationStatus) ([]*domain.Consultation, error) {
	if err := s.policy.Require(c, access.ActionConsultationsRead); err != nil {
		return nil, err
	}
	if status != nil {
		if err := validation.Struct(StatusInput{Status: *status}); err != nil {
			return nil, err
		}
	}
	return dispatch.Read(ctx, dispatch.FromContext(ctx), c.AgencyID, s.list, listArgs{AgencyID: c.AgencyID, Status: status})
}

// Get returns one consultation of the caller's agency.
func (s *Service) Get(ctx context.Context, c access.Caller, id uuid.UUID) (*domain.Consultation, error) {
	if err := s.policy.Require(c, access.ActionConsultationsRead); err != nil {
		return nil, err
	}
	return dispatch.Read(ctx, dispatch.FromContext(ctx), c.AgencyID, s.get, recordArgs{AgencyID: c.AgencyID, ID: id})
}

// Create books a new consultation.
func (s *Service) Create(ctx context.Context, c access.Caller, in CreateInput) (*domain.Consultation, error) {
	if err := s.policy.Require(c, access.ActionConsultationsWrite); err != nil {
		return nil, err
	}
	in = in.normalized()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.checkPackage(ctx, c.AgencyID, in.PackageID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	status := domain.ConsultationStatusNew
	if in.ScheduledAt != nil {
		status = domain.ConsultationStatusScheduled
	}
	createdBy := c.UserID
	consultation := &domain.Consultation{
		ID:          uuid.New(),
		AgencyID:    c.AgencyID,
		ClientName:  in.ClientName,
		ClientEmail: in.ClientEmail,
		ClientPhone: in.ClientPhone,
		Notes:       in.Notes,
		Status:      status,
		ScheduledAt: in.ScheduledAt,
		PackageID:   in.PackageID,
		CreatedBy:   &createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	cmd := dispatch.Command[*domain.Consultation, *domain.Consultation]{
		Name:   "consultations.create",
		Writes: []dispatch.Entity{dispatch.EntityConsultation},
		Run: func(ctx context.Context, rec *domain.Consultation) (*domain.Consultation, error) {
			return rec, s.store.Create(ctx, rec)
		},
	}
	if _, err := dispatch.Exec(ctx, dispatch.FromContext(ctx), c.AgencyID, cmd, consultation); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, c, domain.ActionConsultationCreated, "consultation", &consultation.ID, nil)
	return consultation, nil
}

// Update changes the provided fields of a consultation.
func (s *Service) Update(ctx context.Context, c access.Caller, id uuid.UUID, in UpdateInput) (*domain.Consultation, error) {
	if err := s.policy.Require(c, access.ActionConsultationsWrite); err != nil {
		return nil, err
	}
	in = in.normalized()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.checkPackage(ctx, c.AgencyID, in.PackageID); err != nil {
		return nil, err
	}

	consultation, err := s.store.GetByID(ctx, c.AgencyID, id)
	if err != nil {
		return nil, err
	}
	if in.ClientName != nil {
		consultation.ClientName = *in.ClientName
	}
	if in.ClientEmail != nil {
		consultation.ClientEmail = *in.ClientEmail
	}
	if in.ClientPhone != nil {
		consultation.ClientPhone = in.ClientPhone
	}
	if in.Notes != nil {
		consultation.Notes = in.Notes
	}
	if in.ScheduledAt != nil {
		consultation.ScheduledAt = in.ScheduledAt
		if consultation.Status == domain.ConsultationStatusNew {
			consultation.Status = domain.ConsultationStatusScheduled
		}
	}
	if in.PackageID != nil {
		consultation.PackageID = in.PackageID
	}

	if err := s.save(ctx, c, consultation); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, c, domain.ActionConsultationUpdated, "consultation", &consultation.ID, nil)
	return consultation, nil
}

// UpdateStatus moves a consultation to another status.
func (s *Service) UpdateStatus(ctx context.Context, c access.Caller, id uuid.UUID, in StatusInput) (*domain.Consultation, error) {
	if err := s.policy.Require(c, access.ActionConsultationsWrite); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	consultation, err := s.store.GetByID(ctx, c.AgencyID, id)
	if err != nil {
		return nil, err
	}
	from := consultation.Status
	consultation.Status = in.Status

	if err := s.save(ctx, c, consultation); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, c, domain.ActionConsultationUpdated, "consultation", &consultation.ID, map[string]any{
		"from": from,
		"to":   in.Status,
	})
	return consultation, nil
}

// Delete removes a consultation.
func (s *Service) Delete(ctx context.Context, c access.Caller, id uuid.UUID) error {
	if err := s.policy.Require(c, access.ActionConsultationsWrite); err != nil {
		return err
	}

	cmd := dispatch.Command[recordArgs, struct{}]{
		Name:   "consultations.delete",
		Writes: []dispatch.Entity{dispatch.EntityConsultation},
		Run: func(ctx context.Context, a recordArgs) (struct{}, error) {
			return struct{}{}, s.store.Delete(ctx, a.AgencyID, a.ID)
		},
	}
	if _, err := dispatch.Exec(ctx, dispatch.FromContext(ctx), c.AgencyID, cmd, recordArgs{AgencyID: c.AgencyID, ID: id}); err != nil {
		return err
	}
	s.activity.Record(ctx, c, domain.ActionConsultationDeleted, "consultation", &id, nil)
	return nil
}

func (s *Service) save(ctx context.Context, c access.Caller, consultation *domain.Consultation) error {
	cmd := dispatch.Command[*domain.Consultation, struct{}]{
		Name:   "consultations.update",
		Writes: []dispatch.Entity{dispatch.EntityConsultation},
		Run: func(ctx context.Context, rec *domain.Consultation) (struct{}, error) {
			return struct{}{}, s.store.Update(ctx, rec)
		},
	}
	_, err := dispatch.Exec(ctx, dispatch.FromContext(ctx), c.AgencyID, cmd, consultation)
	if err == nil {
		consultation.UpdatedAt = s.now().UTC()
	}
	return err
}

// checkPackage rejects references to packages outside the agency.
func (s *Service) checkPackage(ctx context.Context, agencyID uuid.UUID, id *uuid.UUID) error {
	if id == nil || s.packages == nil {
		return nil
	}
	if _, err := s.packages.GetByID(ctx, agencyID, *id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invalid("package_id", "unknown package")
		}
		return err
	}
	return nil
}
