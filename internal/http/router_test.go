package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/internal/http/features/agency"
	"github.com/tendant/agencyhub/internal/http/features/deletion"
	"github.com/tendant/agencyhub/internal/http/middleware"
	"github.com/tendant/agencyhub/pkg/access"
	agencysvc "github.com/tendant/agencyhub/pkg/agency"
	"github.com/tendant/agencyhub/pkg/auth"
	deletionsvc "github.com/tendant/agencyhub/pkg/deletion"
	"github.com/tendant/agencyhub/pkg/domain"
)

type routerMemberships struct{ m domain.Membership }

func (f routerMemberships) GetByID(_ context.Context, agencyID, id uuid.UUID) (*domain.Membership, error) {
	if f.m.ID != id || f.m.AgencyID != agencyID {
		return nil, domain.ErrMembershipNotFound
	}
	m := f.m
	return &m, nil
}

type routerAgencies struct{ a domain.Agency }

func (f routerAgencies) GetByID(_ context.Context, id uuid.UUID) (*domain.Agency, error) {
	if f.a.ID != id {
		return nil, domain.ErrAgencyNotFound
	}
	a := f.a
	return &a, nil
}

type routerUsers struct{ u domain.User }

func (f routerUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if f.u.ID != id {
		return nil, domain.ErrUserNotFound
	}
	u := f.u
	return &u, nil
}

func (routerUsers) SetLastActiveAgency(context.Context, uuid.UUID, uuid.UUID) error { return nil }

// Only the methods a test calls are implemented; the embedded nil interface
// covers the rest.
type stubAgencyService struct {
	agency.Service
	agency *domain.Agency
}

func (s stubAgencyService) Get(context.Context, access.Caller) (*domain.Agency, error) {
	return s.agency, nil
}

type stubDeletionManager struct {
	deletion.Manager
	sweeps *int
}

func (s stubDeletionManager) Sweep(context.Context) (*deletionsvc.SweepResult, error) {
	*s.sweeps++
	return &deletionsvc.SweepResult{}, nil
}

type stubProvisioner struct{ calls *int }

func (s stubProvisioner) Provision(_ context.Context, ownerID uuid.UUID, in agencysvc.ProvisionInput) (*domain.Agency, *domain.Membership, error) {
	*s.calls++
	a := &domain.Agency{ID: uuid.New(), Name: in.Name, Slug: "acme", Status: domain.AgencyStatusActive}
	return a, &domain.Membership{ID: uuid.New(), AgencyID: a.ID, UserID: ownerID, Role: domain.RoleOwner}, nil
}

type routerFixture struct {
	handler    http.Handler
	tokens     *auth.Tokens
	identity   auth.Identity
	sweeps     int
	provisions int
}

func newRouterFixture() *routerFixture {
	userID, agencyID, membershipID := uuid.New(), uuid.New(), uuid.New()
	a := domain.Agency{ID: agencyID, Name: "Acme", Slug: "acme", Status: domain.AgencyStatusActive}

	f := &routerFixture{
		tokens:   auth.NewTokens(auth.TokenConfig{Secret: []byte("secret"), Issuer: "agencyhub"}),
		identity: auth.Identity{UserID: userID, AgencyID: agencyID, MembershipID: membershipID, SessionID: "sess-1"},
	}
	f.handler = NewRouter(RouterConfig{
		Logger: slog.Default(),
		Tokens: f.tokens,
		Tenant: middleware.TenantConfig{
			Memberships: routerMemberships{domain.Membership{
				ID: membershipID, AgencyID: agencyID, UserID: userID,
				Role: domain.RoleOwner, Status: domain.MembershipStatusActive,
			}},
			Agencies: routerAgencies{a},
			Users:    routerUsers{domain.User{ID: userID, Email: "olivia@acme.test"}},
		},
		AgencyService:      stubAgencyService{agency: &a},
		Provisioner:        stubProvisioner{calls: &f.provisions},
		DeletionManager:    stubDeletionManager{sweeps: &f.sweeps},
		CronSecret:         "cron-secret",
		MaxRequestBodySize: 1 << 20,
	})
	return f
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture()

	w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("GET /health body = %s", w.Body.String())
	}
}

func TestRouter_Metrics(t *testing.T) {
	f := newRouterFixture()

	w := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("GET /metrics status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_InternalSweepRequiresCronSecret(t *testing.T) {
	f := newRouterFixture()

	w := f.do(httptest.NewRequest(http.MethodPost, "/internal/deletion/sweep", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("sweep without secret status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if f.sweeps != 0 {
		t.Fatalf("sweep ran without secret")
	}

	req := httptest.NewRequest(http.MethodPost, "/internal/deletion/sweep", nil)
	req.Header.Set(middleware.CronSecretHeader, "cron-secret")
	w = f.do(req)
	if w.Code != http.StatusOK {
		t.Errorf("sweep with secret status = %d, want %d", w.Code, http.StatusOK)
	}
	if f.sweeps != 1 {
		t.Errorf("sweeps = %d, want 1", f.sweeps)
	}
}

func TestRouter_InternalProvisionRequiresCronSecret(t *testing.T) {
	f := newRouterFixture()
	body := `{"owner_user_id":"` + uuid.NewString() + `","name":"Acme"}`

	w := f.do(httptest.NewRequest(http.MethodPost, "/internal/agencies", strings.NewReader(body)))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("provision without secret status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodPost, "/internal/agencies", strings.NewReader(body))
	req.Header.Set(middleware.CronSecretHeader, "cron-secret")
	w = f.do(req)
	if w.Code != http.StatusCreated {
		t.Errorf("provision with secret status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if f.provisions != 1 {
		t.Errorf("provisions = %d, want 1", f.provisions)
	}
}

func TestRouter_TenantRoutesRequireToken(t *testing.T) {
	f := newRouterFixture()

	w := f.do(httptest.NewRequest(http.MethodGet, "/v1/agency", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("GET /v1/agency without token status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouter_TenantRoutes(t *testing.T) {
	f := newRouterFixture()
	token, err := f.tokens.Issue(f.identity)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/agency", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := f.do(req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/agency status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"slug":"acme"`) {
		t.Errorf("GET /v1/agency body = %s", w.Body.String())
	}
}
