package packages

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/agencyhub/internal/http/features/common"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/catalog"
	"github.com/tendant/agencyhub/pkg/domain"
)

type stubService struct {
	err           error
	gotActiveOnly bool
	gotActive     *bool
	created       catalog.CreateInput
}

func (s *stubService) List(_ context.Context, _ access.Caller, activeOnly bool) ([]*domain.ServicePackage, error) {
	s.gotActiveOnly = activeOnly
	return []*domain.ServicePackage{{ID: uuid.New(), Name: "SEO Review", Slug: "seo-review", Active: true}}, s.err
}

func (s *stubService) Get(_ context.Context, _ access.Caller, id uuid.UUID) (*domain.ServicePackage, error) {
	return &domain.ServicePackage{ID: id}, s.err
}

func (s *stubService) Create(_ context.Context, _ access.Caller, in catalog.CreateInput) (*domain.ServicePackage, error) {
	s.created = in
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ServicePackage{ID: uuid.New(), Name: in.Name, Slug: "brand-audit", PriceCents: in.PriceCents, Currency: in.Currency, Active: true}, nil
}

func (s *stubService) Update(_ context.Context, _ access.Caller, id uuid.UUID, _ catalog.UpdateInput) (*domain.ServicePackage, error) {
	return &domain.ServicePackage{ID: id}, s.err
}

func (s *stubService) SetActive(_ context.Context, _ access.Caller, id uuid.UUID, active bool) (*domain.ServicePackage, error) {
	s.gotActive = &active
	return &domain.ServicePackage{ID: id, Active: active}, s.err
}

func (s *stubService) Delete(context.Context, access.Caller, uuid.UUID) error {
	return s.err
}

func serve(svc *stubService, method, target, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(slog.Default(), svc).RegisterRoutes(r)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = common.TestCaller(req, access.Caller{UserID: uuid.New(), AgencyID: uuid.New(), Role: domain.RoleAdmin})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestList_ActiveFilter(t *testing.T) {
	svc := &stubService{}

	if w := serve(svc, http.MethodGet, "/v1/packages?active=true", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !svc.gotActiveOnly {
		t.Error("active=true was not passed to the service")
	}
	if w := serve(svc, http.MethodGet, "/v1/packages?active=yes-please", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad filter status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCreate(t *testing.T) {
	svc := &stubService{}

	w := serve(svc, http.MethodPost, "/v1/packages", `{"name":"Brand Audit","price_cents":150000,"currency":"usd"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp PackageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Slug != "brand-audit" || resp.PriceCents != 150000 {
		t.Errorf("response = %+v", resp)
	}
	if svc.created.Currency != "usd" {
		t.Errorf("currency passed = %q", svc.created.Currency)
	}
}

func TestCreate_SlugConflict(t *testing.T) {
	w := serve(&stubService{err: domain.ErrSlugExhausted}, http.MethodPost, "/v1/packages", `{"name":"Brand Audit","currency":"usd"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestSetActive(t *testing.T) {
	svc := &stubService{}
	w := serve(svc, http.MethodPost, "/v1/packages/"+uuid.NewString()+"/active", `{"active":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if svc.gotActive == nil || *svc.gotActive {
		t.Errorf("active passed = %v, want false", svc.gotActive)
	}
}

func TestDelete_MemberDenied(t *testing.T) {
	w := serve(&stubService{err: domain.ErrPermissionDenied}, http.MethodDelete, "/v1/packages/"+uuid.NewString(), "")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
