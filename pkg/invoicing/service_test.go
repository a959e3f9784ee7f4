package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/dispatch"
	"github.com/tendant/agencyhub/pkg/domain"
)

type fakeStore struct {
	rows map[uuid.UUID]domain.Invoice
	seq  int
	// beforeStatus runs ahead of every status write.
	beforeStatus func(id uuid.UUID)
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[uuid.UUID]domain.Invoice)}
}

func (f *fakeStore) List(_ context.Context, agencyID uuid.UUID, statuses []domain.InvoiceStatus) ([]*domain.Invoice, error) {
	var out []*domain.Invoice
	for _, inv := range f.rows {
		if inv.AgencyID != agencyID {
			continue
		}
		match := len(statuses) == 0
		for _, st := range statuses {
			match = match || inv.Status == st
		}
		if match {
			inv := inv
			out = append(out, &inv)
		}
	}
	return out, nil
}

func (f *fakeStore) GetByID(_ context.Context, agencyID, id uuid.UUID) (*domain.Invoice, error) {
	inv, ok := f.rows[id]
	if !ok || inv.AgencyID != agencyID {
		return nil, domain.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (f *fakeStore) Create(_ context.Context, inv *domain.Invoice) error {
	f.seq++
	inv.Number = fmt.Sprintf("INV-%s-%04d", inv.CreatedAt.Format("200601"), f.seq)
	f.rows[inv.ID] = *inv
	return nil
}

func (f *fakeStore) Update(_ context.Context, inv *domain.Invoice) error {
	existing, ok := f.rows[inv.ID]
	if !ok || existing.AgencyID != inv.AgencyID {
		return domain.ErrInvoiceNotFound
	}
	// status and link columns are not written by Update
	inv.Status = existing.Status
	inv.PaymentLinkID, inv.PaymentLinkURL = existing.PaymentLinkID, existing.PaymentLinkURL
	f.rows[inv.ID] = *inv
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, agencyID, id uuid.UUID, from, to domain.InvoiceStatus) error {
	if f.beforeStatus != nil {
		f.beforeStatus(id)
	}
	inv, ok := f.rows[id]
	if !ok || inv.AgencyID != agencyID || inv.Status != from {
		return domain.ErrConcurrentUpdate
	}
	inv.Status = to
	f.rows[id] = inv
	return nil
}

func (f *fakeStore) attachLink(id uuid.UUID) {
	inv := f.rows[id]
	linkID, url := "plink_1", "https://pay.example/plink_1"
	inv.PaymentLinkID, inv.PaymentLinkURL = &linkID, &url
	f.rows[id] = inv
}

type fakeConsultations map[uuid.UUID]domain.Consultation

func (f fakeConsultations) GetByID(_ context.Context, agencyID, id uuid.UUID) (*domain.Consultation, error) {
	c, ok := f[id]
	if !ok || c.AgencyID != agencyID {
		return nil, domain.ErrConsultationNotFound
	}
	return &c, nil
}

type fakeLinks struct {
	store    *fakeStore
	disabled []uuid.UUID
	err      error
}

func (f *fakeLinks) DisableForInvoice(_ context.Context, c access.Caller, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.disabled = append(f.disabled, id)
	inv := f.store.rows[id]
	inv.PaymentLinkID, inv.PaymentLinkURL = nil, nil
	f.store.rows[id] = inv
	return nil
}

type fixture struct {
	svc    *Service
	store  *fakeStore
	links  *fakeLinks
	caller access.Caller
	ctx    context.Context
}

func newFixture() *fixture {
	store := newFakeStore()
	links := &fakeLinks{store: store}
	f := &fixture{
		store:  store,
		links:  links,
		caller: access.Caller{UserID: uuid.New(), AgencyID: uuid.New(), Role: domain.RoleAdmin},
		ctx:    dispatch.WithCache(context.Background(), dispatch.New(dispatch.NewMemoryStore(), slog.Default())),
	}
	f.svc = NewService(store, fakeConsultations{}, links, access.DefaultPolicy(), nil, slog.Default())
	f.svc.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) create(t *testing.T) *domain.Invoice {
	t.Helper()
	inv, err := f.svc.Create(f.ctx, f.caller, CreateInput{
		ClientName:  "Jane Doe",
		ClientEmail: "jane@example.com",
		AmountCents: 50000,
		Currency:    "usd",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return inv
}

func TestCreate_DraftWithNumber(t *testing.T) {
	f := newFixture()
	inv := f.create(t)

	if inv.Status != domain.InvoiceStatusDraft {
		t.Errorf("Status = %q, want draft", inv.Status)
	}
	if inv.Number != "INV-202403-0001" {
		t.Errorf("Number = %q, want INV-202403-0001", inv.Number)
	}
}

func TestCreate_FromConsultation(t *testing.T) {
	f := newFixture()
	consultation := domain.Consultation{
		ID:          uuid.New(),
		AgencyID:    f.caller.AgencyID,
		ClientName:  "Sam Client",
		ClientEmail: "sam@example.com",
	}
	f.svc.consultations = fakeConsultations{consultation.ID: consultation}

	inv, err := f.svc.Create(f.ctx, f.caller, CreateInput{
		ConsultationID: &consultation.ID,
		AmountCents:    1000,
		Currency:       "eur",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if inv.ClientName != "Sam Client" || inv.ClientEmail != "sam@example.com" {
		t.Errorf("client = %q <%s>, want consultation's client", inv.ClientName, inv.ClientEmail)
	}

	other := uuid.New()
	_, err = f.svc.Create(f.ctx, f.caller, CreateInput{ConsultationID: &other, AmountCents: 1000, Currency: "eur"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Create() with unknown consultation error = %v, want validation error", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name string
		in   CreateInput
	}{
		{"no client", CreateInput{AmountCents: 100, Currency: "usd"}},
		{"zero amount", CreateInput{ClientName: "A", ClientEmail: "a@example.com", Currency: "usd"}},
		{"bad email", CreateInput{ClientName: "A", ClientEmail: "nope", AmountCents: 100, Currency: "usd"}},
		{"bad currency", CreateInput{ClientName: "A", ClientEmail: "a@example.com", AmountCents: 100, Currency: "dollars"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(f.ctx, f.caller, tt.in); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Create() error = %v, want validation error", err)
			}
		})
	}
}

func TestStatusLifecycle(t *testing.T) {
	f := newFixture()
	inv := f.create(t)

	if _, err := f.svc.MarkPaid(f.ctx, f.caller, inv.ID); !errors.Is(err, domain.ErrInvoiceNotPayable) {
		t.Errorf("MarkPaid(draft) error = %v, want ErrInvoiceNotPayable", err)
	}

	sent, err := f.svc.MarkSent(f.ctx, f.caller, inv.ID)
	if err != nil {
		t.Fatalf("MarkSent() error = %v", err)
	}
	if sent.Status != domain.InvoiceStatusSent {
		t.Errorf("Status = %q, want sent", sent.Status)
	}

	// a cached read sees the new status
	got, err := f.svc.Get(f.ctx, f.caller, inv.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != domain.InvoiceStatusSent {
		t.Errorf("Get() status = %q, want sent", got.Status)
	}

	f.store.attachLink(inv.ID)
	paid, err := f.svc.MarkPaid(f.ctx, f.caller, inv.ID)
	if err != nil {
		t.Fatalf("MarkPaid() error = %v", err)
	}
	if paid.Status != domain.InvoiceStatusPaid {
		t.Errorf("Status = %q, want paid", paid.Status)
	}
	if len(f.links.disabled) != 1 {
		t.Errorf("links disabled = %d, want 1", len(f.links.disabled))
	}

	if _, err := f.svc.Void(f.ctx, f.caller, inv.ID); !errors.Is(err, domain.ErrInvoiceNotEditable) {
		t.Errorf("Void(paid) error = %v, want ErrInvoiceNotEditable", err)
	}
	amount := int64(1)
	if _, err := f.svc.Update(f.ctx, f.caller, inv.ID, UpdateInput{AmountCents: &amount}); !errors.Is(err, domain.ErrInvoiceNotEditable) {
		t.Errorf("Update(paid) error = %v, want ErrInvoiceNotEditable", err)
	}
}

func TestVoid_DisablesLink(t *testing.T) {
	f := newFixture()
	inv := f.create(t)
	if _, err := f.svc.MarkSent(f.ctx, f.caller, inv.ID); err != nil {
		t.Fatalf("MarkSent() error = %v", err)
	}
	f.store.attachLink(inv.ID)

	voided, err := f.svc.Void(f.ctx, f.caller, inv.ID)
	if err != nil {
		t.Fatalf("Void() error = %v", err)
	}
	if voided.Status != domain.InvoiceStatusVoid || voided.HasPaymentLink() {
		t.Errorf("Void() = %q link=%v, want void without link", voided.Status, voided.HasPaymentLink())
	}
}

func TestVoid_ProviderFailureKeepsStatus(t *testing.T) {
	f := newFixture()
	inv := f.create(t)
	if _, err := f.svc.MarkSent(f.ctx, f.caller, inv.ID); err != nil {
		t.Fatalf("MarkSent() error = %v", err)
	}
	f.store.attachLink(inv.ID)
	f.links.err = domain.ErrExternalProvider

	if _, err := f.svc.Void(f.ctx, f.caller, inv.ID); !errors.Is(err, domain.ErrExternalProvider) {
		t.Fatalf("Void() error = %v, want ErrExternalProvider", err)
	}
	if got := f.store.rows[inv.ID].Status; got != domain.InvoiceStatusSent {
		t.Errorf("status = %q, want sent", got)
	}
}

func TestVoid_ConcurrentPaymentWins(t *testing.T) {
	f := newFixture()
	inv := f.create(t)
	if _, err := f.svc.MarkSent(f.ctx, f.caller, inv.ID); err != nil {
		t.Fatalf("MarkSent() error = %v", err)
	}
	// the invoice is paid between Void reading it and writing the new status
	f.store.beforeStatus = func(id uuid.UUID) {
		paid := f.store.rows[id]
		paid.Status = domain.InvoiceStatusPaid
		f.store.rows[id] = paid
	}

	if _, err := f.svc.Void(f.ctx, f.caller, inv.ID); !errors.Is(err, domain.ErrConcurrentUpdate) {
		t.Fatalf("Void() error = %v, want ErrConcurrentUpdate", err)
	}
	if got := f.store.rows[inv.ID].Status; got != domain.InvoiceStatusPaid {
		t.Errorf("status = %q, want paid", got)
	}
}

func TestUpdate_RepriceDisablesLink(t *testing.T) {
	f := newFixture()
	inv := f.create(t)
	if _, err := f.svc.MarkSent(f.ctx, f.caller, inv.ID); err != nil {
		t.Fatalf("MarkSent() error = %v", err)
	}
	f.store.attachLink(inv.ID)

	name := "Jane D."
	if _, err := f.svc.Update(f.ctx, f.caller, inv.ID, UpdateInput{ClientName: &name}); err != nil {
		t.Fatalf("Update(name) error = %v", err)
	}
	if len(f.links.disabled) != 0 {
		t.Fatalf("link disabled on a name change")
	}

	amount := int64(60000)
	updated, err := f.svc.Update(f.ctx, f.caller, inv.ID, UpdateInput{AmountCents: &amount})
	if err != nil {
		t.Fatalf("Update(amount) error = %v", err)
	}
	if len(f.links.disabled) != 1 {
		t.Errorf("links disabled = %d, want 1", len(f.links.disabled))
	}
	if updated.AmountCents != amount || updated.HasPaymentLink() {
		t.Errorf("Update() = %d link=%v, want %d without link", updated.AmountCents, updated.HasPaymentLink(), amount)
	}
}

func TestList_FilterAndNoStaleRead(t *testing.T) {
	f := newFixture()
	first := f.create(t)
	f.create(t)

	drafts, err := f.svc.List(f.ctx, f.caller, []domain.InvoiceStatus{domain.InvoiceStatusDraft})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("List(draft) = %d, want 2", len(drafts))
	}

	if _, err := f.svc.MarkSent(f.ctx, f.caller, first.ID); err != nil {
		t.Fatalf("MarkSent() error = %v", err)
	}

	drafts, err = f.svc.List(f.ctx, f.caller, []domain.InvoiceStatus{domain.InvoiceStatusDraft})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(drafts) != 1 {
		t.Errorf("List(draft) after send = %d, want 1", len(drafts))
	}

	if _, err := f.svc.List(f.ctx, f.caller, []domain.InvoiceStatus{"archived"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("List(unknown status) error = %v, want validation error", err)
	}
}

func TestGet_OtherAgency(t *testing.T) {
	f := newFixture()
	inv := f.create(t)
	stranger := access.Caller{UserID: uuid.New(), AgencyID: uuid.New(), Role: domain.RoleOwner}

	if _, err := f.svc.Get(f.ctx, stranger, inv.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() error = %v, want not found", err)
	}
	if _, err := f.svc.MarkSent(f.ctx, stranger, inv.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("MarkSent() error = %v, want not found", err)
	}
}

func TestMemberCannotWrite(t *testing.T) {
	f := newFixture()
	member := f.caller
	member.Role = domain.RoleMember

	_, err := f.svc.Create(f.ctx, member, CreateInput{ClientName: "A", ClientEmail: "a@example.com", AmountCents: 1, Currency: "usd"})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("Create() error = %v, want permission denied", err)
	}
	if _, err := f.svc.List(f.ctx, member, nil); err != nil {
		t.Errorf("List() as member error = %v", err)
	}
}
