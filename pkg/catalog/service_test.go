package catalog

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/dispatch"
	"github.com/tendant/agencyhub/pkg/domain"
)

type fakeStore struct {
	rows map[uuid.UUID]domain.ServicePackage
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[uuid.UUID]domain.ServicePackage)}
}

func (f *fakeStore) slugUsed(p *domain.ServicePackage) bool {
	for _, existing := range f.rows {
		if existing.ID != p.ID && existing.AgencyID == p.AgencyID && existing.Slug == p.Slug {
			return true
		}
	}
	return false
}

func (f *fakeStore) List(_ context.Context, agencyID uuid.UUID, activeOnly bool) ([]*domain.ServicePackage, error) {
	var out []*domain.ServicePackage
	for _, p := range f.rows {
		if p.AgencyID != agencyID || (activeOnly && !p.Active) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	return out, nil
}

func (f *fakeStore) GetByID(_ context.Context, agencyID, id uuid.UUID) (*domain.ServicePackage, error) {
	p, ok := f.rows[id]
	if !ok || p.AgencyID != agencyID {
		return nil, domain.ErrPackageNotFound
	}
	return &p, nil
}

func (f *fakeStore) Create(_ context.Context, p *domain.ServicePackage) error {
	if f.slugUsed(p) {
		return domain.ErrSlugTaken
	}
	f.rows[p.ID] = *p
	return nil
}

func (f *fakeStore) Update(_ context.Context, p *domain.ServicePackage) error {
	existing, ok := f.rows[p.ID]
	if !ok || existing.AgencyID != p.AgencyID {
		return domain.ErrPackageNotFound
	}
	if f.slugUsed(p) {
		return domain.ErrSlugTaken
	}
	f.rows[p.ID] = *p
	return nil
}

func (f *fakeStore) Delete(_ context.Context, agencyID, id uuid.UUID) error {
	existing, ok := f.rows[id]
	if !ok || existing.AgencyID != agencyID {
		return domain.ErrPackageNotFound
	}
	delete(f.rows, id)
	return nil
}

func newTestService() *Service {
	return NewService(newFakeStore(), access.DefaultPolicy(), nil, slog.Default())
}

func withCache(ctx context.Context) context.Context {
	return dispatch.WithCache(ctx, dispatch.New(dispatch.NewMemoryStore(), slog.Default()))
}

func adminCaller() access.Caller {
	return access.Caller{UserID: uuid.New(), AgencyID: uuid.New(), Role: domain.RoleAdmin}
}

func TestCreate_SlugCollisionOrder(t *testing.T) {
	ctx := withCache(context.Background())
	svc := newTestService()
	c := adminCaller()

	want := []string{"brand-audit", "brand-audit-1", "brand-audit-2"}
	for i, slug := range want {
		p, err := svc.Create(ctx, c, CreateInput{Name: "Brand Audit", PriceCents: 1000, Currency: "usd"})
		if err != nil {
			t.Fatalf("Create() #%d error = %v", i, err)
		}
		if p.Slug != slug {
			t.Errorf("Create() #%d slug = %q, want %q", i, p.Slug, slug)
		}
		if !p.Active {
			t.Errorf("Create() #%d Active = false, want default true", i)
		}
	}

	// slugs are unique per agency only
	other := adminCaller()
	p, err := svc.Create(ctx, other, CreateInput{Name: "Brand Audit", PriceCents: 1000, Currency: "usd"})
	if err != nil {
		t.Fatalf("Create() in other agency error = %v", err)
	}
	if p.Slug != "brand-audit" {
		t.Errorf("slug in other agency = %q, want brand-audit", p.Slug)
	}
}

func TestCreate_MemberDenied(t *testing.T) {
	svc := newTestService()
	c := adminCaller()
	c.Role = domain.RoleMember

	_, err := svc.Create(context.Background(), c, CreateInput{Name: "Audit", Currency: "usd"})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("Create() error = %v, want permission denied", err)
	}
	if _, err := svc.List(context.Background(), c, false); err != nil {
		t.Errorf("List() as member error = %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService()
	tests := []struct {
		name string
		in   CreateInput
	}{
		{"missing name", CreateInput{Currency: "usd"}},
		{"negative price", CreateInput{Name: "Audit", PriceCents: -1, Currency: "usd"}},
		{"bad currency", CreateInput{Name: "Audit", Currency: "USD"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), adminCaller(), tt.in)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Create() error = %v, want validation error", err)
			}
		})
	}
}

func TestUpdate_RenameReslugs(t *testing.T) {
	ctx := withCache(context.Background())
	svc := newTestService()
	c := adminCaller()

	if _, err := svc.Create(ctx, c, CreateInput{Name: "SEO Review", Currency: "usd"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	p, err := svc.Create(ctx, c, CreateInput{Name: "Audit", Currency: "usd"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Get(ctx, c, p.ID); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	name := "SEO Review"
	updated, err := svc.Update(ctx, c, p.ID, UpdateInput{Name: &name})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Slug != "seo-review-1" {
		t.Errorf("slug = %q, want seo-review-1", updated.Slug)
	}

	got, err := svc.Get(ctx, c, p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != name {
		t.Errorf("cached Get() name = %q, want %q", got.Name, name)
	}
}

func TestSetActive_FiltersList(t *testing.T) {
	ctx := withCache(context.Background())
	svc := newTestService()
	c := adminCaller()

	p, err := svc.Create(ctx, c, CreateInput{Name: "Audit", Currency: "usd"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	active, err := svc.List(ctx, c, true)
	if err != nil || len(active) != 1 {
		t.Fatalf("List(active) = %d, %v; want 1", len(active), err)
	}

	if _, err := svc.SetActive(ctx, c, p.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	active, err = svc.List(ctx, c, true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("List(active) after deactivate = %d, want 0", len(active))
	}
}

func TestDelete_OtherAgency(t *testing.T) {
	ctx := withCache(context.Background())
	svc := newTestService()
	c := adminCaller()

	p, err := svc.Create(ctx, c, CreateInput{Name: "Audit", Currency: "usd"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Delete(ctx, adminCaller(), p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete() from other agency error = %v, want not found", err)
	}
	if err := svc.Delete(ctx, c, p.ID); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}
