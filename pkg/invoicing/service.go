// Package invoicing manages invoices and their status lifecycle.
package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/activity"
	"github.com/tendant/agencyhub/pkg/dispatch"
	"github.com/tendant/agencyhub/pkg/domain"
	"github.com/tendant/agencyhub/pkg/validation"
)

// Store persists invoices. Create assigns the invoice number.
type Store interface {
	List(ctx context.Context, agencyID uuid.UUID, statuses []domain.InvoiceStatus) ([]*domain.Invoice, error)
	GetByID(ctx context.Context, agencyID, id uuid.UUID) (*domain.Invoice, error)
	Create(ctx context.Context, inv *domain.Invoice) error
	Update(ctx context.Context, inv *domain.Invoice) error
	// UpdateStatus moves the invoice from one status to another. It fails
	// with domain.ErrConcurrentUpdate when the invoice is no longer in from.
	UpdateStatus(ctx context.Context, agencyID, id uuid.UUID, from, to domain.InvoiceStatus) error
}

// Consultations looks up the consultation an invoice bills.
type Consultations interface {
	GetByID(ctx context.Context, agencyID, id uuid.UUID) (*domain.Consultation, error)
}

// Links retires the payment link of an invoice.
type Links interface {
	DisableForInvoice(ctx context.Context, c access.Caller, invoiceID uuid.UUID) error
}

// CreateInput is the payload for a new invoice. Client fields default to the
// consultation's client when a consultation is given.
type CreateInput struct {
	ConsultationID *uuid.UUID `json:"consultation_id"`
	ClientName     string     `json:"client_name" validate:"required_without=ConsultationID,max=200"`
	ClientEmail    string     `json:"client_email" validate:"required_without=ConsultationID,omitempty,email,max=320"`
	AmountCents    int64      `json:"amount_cents" validate:"gt=0"`
	Currency       string     `json:"currency" validate:"required,currency"`
	DueDate        *time.Time `json:"due_date"`
}

// UpdateInput changes the non-nil fields of an open invoice.
type UpdateInput struct {
	ClientName  *string    `json:"client_name" validate:"omitempty,min=1,max=200"`
	ClientEmail *string    `json:"client_email" validate:"omitempty,email,max=320"`
	AmountCents *int64     `json:"amount_cents" validate:"omitempty,gt=0"`
	Currency    *string    `json:"currency" validate:"omitempty,currency"`
	DueDate     *time.Time `json:"due_date"`
}

func (in CreateInput) normalized() CreateInput {
	in.ClientName = validation.Line(in.ClientName)
	in.ClientEmail = validation.Email(in.ClientEmail)
	return in
}

func (in UpdateInput) normalized() UpdateInput {
	in.ClientName = validation.LinePtr(in.ClientName)
	in.ClientEmail = validation.EmailPtr(in.ClientEmail)
	return in
}

type listArgs struct {
	AgencyID uuid.UUID
	Statuses []domain.InvoiceStatus
}

type recordArgs struct {
	AgencyID uuid.UUID
	ID       uuid.UUID
}

type statusArgs struct {
	AgencyID uuid.UUID
	ID       uuid.UUID
	From     domain.InvoiceStatus
	To       domain.InvoiceStatus
}

var validStatuses = map[domain.InvoiceStatus]bool{
	domain.InvoiceStatusDraft:   true,
	domain.InvoiceStatusSent:    true,
	domain.InvoiceStatusViewed:  true,
	domain.InvoiceStatusPaid:    true,
	domain.InvoiceStatusOverdue: true,
	domain.InvoiceStatusVoid:    true,
}

// Service implements invoice operations.
type Service struct {
	store         Store
	consultations Consultations
	links         Links
	policy        *access.Policy
	activity      *activity.Log
	logger        *slog.Logger
	now           func() time.Time

	list dispatch.Query[listArgs, []*domain.Invoice]
	get  dispatch.Query[recordArgs, *domain.Invoice]
}

// NewService creates an invoicing service. links may be nil when no payment
// provider is configured.
func NewService(store Store, consultations Consultations, links Links, policy *access.Policy, log *activity.Log, logger *slog.Logger) *Service {
	s := &Service{
		store:         store,
		consultations: consultations,
		links:         links,
		policy:        policy,
		activity:      log,
		logger:        logger,
		now:           time.Now,
	}
	s.list = dispatch.Query[listArgs, []*domain.Invoice]{
		Name:  "invoices.list",
		Reads: []dispatch.Entity{dispatch.EntityInvoice},
		Fetch: func(ctx context.Context, a listArgs) ([]*domain.Invoice, error) {
			return s.store.List(ctx, a.AgencyID, a.Statuses)
		},
	}
	s.get = dispatch.Query[recordArgs, *domain.Invoice]{
		Name:  "invoices.get",
		Reads: []dispatch.Entity{dispatch.EntityInvoice},
		Fetch: func(ctx context.Context, a recordArgs) (*domain.Invoice, error) {
			return s.store.GetByID(ctx, a.AgencyID, a.ID)
		},
	}
	return s
}

// List returns the agency's invoices with one of statuses, or all of them.
func (s *Service) List(ctx context.Context, c access.Caller, statuses []domain.InvoiceStatus) ([]*domain.Invoice, error) {
	if err := s.policy.Require(c, access.ActionInvoicesRead); err != nil {
		return nil, err
	}
	for _, st := range statuses {
		if !validStatuses[st] {
			return nil, domain.Invalid("status", fmt.Sprintf("unknown invoice status %q", st))
		}
	}
	return dispatch.Read(ctx, dispatch.FromContext(ctx), c.AgencyID, s.list, listArgs{AgencyID: c.AgencyID, Statuses: statuses})
}

// Get returns one invoice.
func (s *Service) Get(ctx context.Context, c access.Caller, id uuid.UUID) (*domain.Invoice, error) {
	if err := s.policy.Require(c, access.ActionInvoicesRead); err != nil {
		return nil, err
	}
	return dispatch.Read(ctx, dispatch.FromContext(ctx), c.AgencyID, s.get, recordArgs{AgencyID: c.AgencyID, ID: id})
}

// Create adds a draft invoice numbered INV-<yyyymm>-<seq>.
func (s *Service) Create(ctx context.Context, c access.Caller, in CreateInput) (*domain.Invoice, error) {
	if err := s.policy.Require(c, access.ActionInvoicesWrite); err != nil {
		return nil, err
	}
	in = in.normalized()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	if in.ConsultationID != nil {
		consultation, err := s.consultations.GetByID(ctx, c.AgencyID, *in.ConsultationID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.Invalid("consultation_id", "unknown consultation")
			}
			return nil, err
		}
		if in.ClientName == "" {
			in.ClientName = consultation.ClientName
		}
		if in.ClientEmail == "" {
			in.ClientEmail = consultation.ClientEmail
		}
	}

	now := s.now().UTC()
	inv := &domain.Invoice{
		ID:             uuid.New(),
		AgencyID:       c.AgencyID,
		ConsultationID: in.ConsultationID,
		ClientName:     in.ClientName,
		ClientEmail:    in.ClientEmail,
		AmountCents:    in.AmountCents,
		Currency:       in.Currency,
		Status:         domain.InvoiceStatusDraft,
		DueDate:        in.DueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	cmd := dispatch.Command[*domain.Invoice, *domain.Invoice]{
		Name:   "invoices.create",
		Writes: []dispatch.Entity{dispatch.EntityInvoice},
		Run: func(ctx context.Context, rec *domain.Invoice) (*domain.Invoice, error) {
			return rec, s.store.Create(ctx, rec)
		},
	}
	if _, err := dispatch.Exec(ctx, dispatch.FromContext(ctx), c.AgencyID, cmd, inv); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, c, domain.ActionInvoiceCreated, "invoice", &inv.ID, map[string]any{"number": inv.Number})
	return inv, nil
}

// Update changes an open invoice. Changing the amount or currency of an
// invoice with a payment link disables that link first.
func (s *Service) Update(ctx context.Context, c access.Caller, id uuid.UUID, in UpdateInput) (*domain.Invoice, error) {
	if err := s.policy.Require(c, access.ActionInvoicesWrite); err != nil {
		return nil, err
	}
	in = in.normalized()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	inv, err := s.store.GetByID(ctx, c.AgencyID, id)
	if err != nil {
		return nil, err
	}
	if inv.Closed() {
		return nil, domain.ErrInvoiceNotEditable
	}

	repriced := (in.AmountCents != nil && *in.AmountCents != inv.AmountCents) ||
		(in.Currency != nil && *in.Currency != inv.Currency)
	if repriced && inv.HasPaymentLink() {
		if err := s.disableLink(ctx, c, inv); err != nil {
			return nil, err
		}
	}

	if in.ClientName != nil {
		inv.ClientName = *in.ClientName
	}
	if in.ClientEmail != nil {
		inv.ClientEmail = *in.ClientEmail
	}
	if in.AmountCents != nil {
		inv.AmountCents = *in.AmountCents
	}
	if in.Currency != nil {
		inv.Currency = *in.Currency
	}
	if in.DueDate != nil {
		inv.DueDate = in.DueDate
	}

	cmd := dispatch.Command[*domain.Invoice, struct{}]{
		Name:   "invoices.update",
		Writes: []dispatch.Entity{dispatch.EntityInvoice},
		Run: func(ctx context.Context, rec *domain.Invoice) (struct{}, error) {
			return struct{}{}, s.store.Update(ctx, rec)
		},
	}
	if _, err := dispatch.Exec(ctx, dispatch.FromContext(ctx), c.AgencyID, cmd, inv); err != nil {
		return nil, err
	}
	inv.UpdatedAt = s.now().UTC()

	s.activity.Record(ctx, c, domain.ActionInvoiceUpdated, "invoice", &inv.ID, map[string]any{"repriced": repriced})
	return inv, nil
}

// MarkSent moves a draft invoice to sent. Sending a sent invoice again is a no-op.
func (s *Service) MarkSent(ctx context.Context, c access.Caller, id uuid.UUID) (*domain.Invoice, error) {
	return s.transition(ctx, c, id, domain.InvoiceStatusSent, func(inv *domain.Invoice) error {
		switch inv.Status {
		case domain.InvoiceStatusDraft:
			return nil
		case domain.InvoiceStatusSent, domain.InvoiceStatusViewed, domain.InvoiceStatusOverdue:
			return errNoChange
		}
		return domain.ErrInvoiceNotEditable
	})
}

// MarkPaid records payment of a sent, viewed or overdue invoice and retires
// its payment link.
func (s *Service) MarkPaid(ctx context.Context, c access.Caller, id uuid.UUID) (*domain.Invoice, error) {
	return s.transition(ctx, c, id, domain.InvoiceStatusPaid, func(inv *domain.Invoice) error {
		switch {
		case inv.Status == domain.InvoiceStatusPaid:
			return errNoChange
		case inv.Payable():
			return nil
		case inv.Status == domain.InvoiceStatusDraft:
			return domain.ErrInvoiceNotPayable
		}
		return domain.ErrInvoiceNotEditable
	})
}

// Void cancels an unpaid invoice and retires its payment link.
func (s *Service) Void(ctx context.Context, c access.Caller, id uuid.UUID) (*domain.Invoice, error) {
	return s.transition(ctx, c, id, domain.InvoiceStatusVoid, func(inv *domain.Invoice) error {
		switch inv.Status {
		case domain.InvoiceStatusVoid:
			return errNoChange
		case domain.InvoiceStatusPaid:
			return domain.ErrInvoiceNotEditable
		}
		return nil
	})
}

var errNoChange = errors.New("no change")

func (s *Service) transition(ctx context.Context, c access.Caller, id uuid.UUID, to domain.InvoiceStatus, allowed func(*domain.Invoice) error) (*domain.Invoice, error) {
	if err := s.policy.Require(c, access.ActionInvoicesWrite); err != nil {
		return nil, err
	}

	inv, err := s.store.GetByID(ctx, c.AgencyID, id)
	if err != nil {
		return nil, err
	}
	if err := allowed(inv); err != nil {
		if errors.Is(err, errNoChange) {
			return inv, nil
		}
		return nil, err
	}

	if (to == domain.InvoiceStatusPaid || to == domain.InvoiceStatusVoid) && inv.HasPaymentLink() {
		if err := s.disableLink(ctx, c, inv); err != nil {
			return nil, err
		}
	}

	cmd := dispatch.Command[statusArgs, struct{}]{
		Name:   "invoices.status",
		Writes: []dispatch.Entity{dispatch.EntityInvoice},
		Run: func(ctx context.Context, a statusArgs) (struct{}, error) {
			return struct{}{}, s.store.UpdateStatus(ctx, a.AgencyID, a.ID, a.From, a.To)
		},
	}
	args := statusArgs{AgencyID: c.AgencyID, ID: inv.ID, From: inv.Status, To: to}
	if _, err := dispatch.Exec(ctx, dispatch.FromContext(ctx), c.AgencyID, cmd, args); err != nil {
		return nil, err
	}

	from := inv.Status
	inv.Status = to
	inv.UpdatedAt = s.now().UTC()
	s.activity.Record(ctx, c, domain.ActionInvoiceStatusChanged, "invoice", &inv.ID, map[string]any{
		"from": from,
		"to":   to,
	})
	return inv, nil
}

func (s *Service) disableLink(ctx context.Context, c access.Caller, inv *domain.Invoice) error {
	if s.links == nil {
		s.logger.Warn("invoice has a payment link but no payment provider is configured", "invoice_id", inv.ID)
		return nil
	}
	if err := s.links.DisableForInvoice(ctx, c, inv.ID); err != nil {
		return err
	}
	inv.PaymentLinkID, inv.PaymentLinkURL = nil, nil
	return nil
}
