package consultations

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
	"github.com/tendant/agencyhub/pkg/consultation"
	"github.com/tendant/agencyhub/pkg/domain"
)

// memService keeps consultations per agency, mirroring the tenant scoping of
// the real service.
type memService struct {
	rows map[uuid.UUID]domain.Consultation
}

func (m *memService) List(_ context.Context, c access.Caller, status *domain.ConsultationStatus) ([]*domain.Consultation, error) {
	var out []*domain.Consultation
	for _, row := range m.rows {
		if row.AgencyID == c.AgencyID && (status == nil || row.Status == *status) {
			out = append(out, &row)
		}
	}
	return out, nil
}

func (m *memService) Get(_ context.Context, c access.Caller, id uuid.UUID) (*domain.Consultation, error) {
	row, ok := m.rows[id]
	if !ok || row.AgencyID != c.AgencyID {
		return nil, domain.ErrConsultationNotFound
	}
	return &row, nil
}

func (m *memService) Create(_ context.Context, c access.Caller, in consultation.CreateInput) (*domain.Consultation, error) {
	if in.ClientName == "" {
		return nil, domain.ValidationErrors{{Field: "client_name", Message: "is required"}}
	}
	row := domain.Consultation{ID: uuid.New(), AgencyID: c.AgencyID, ClientName: in.ClientName, ClientEmail: in.ClientEmail, Status: domain.ConsultationStatusNew}
	m.rows[row.ID] = row
	return &row, nil
}

func (m *memService) Update(ctx context.Context, c access.Caller, id uuid.UUID, in consultation.UpdateInput) (*domain.Consultation, error) {
	row, err := m.Get(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if in.Notes != nil {
		row.Notes = in.Notes
	}
	m.rows[id] = *row
	return row, nil
}

func (m *memService) UpdateStatus(ctx context.Context, c access.Caller, id uuid.UUID, in consultation.StatusInput) (*domain.Consultation, error) {
	row, err := m.Get(ctx, c, id)
	if err != nil {
		return nil, err
	}
	row.Status = in.Status
	m.rows[id] = *row
	return row, nil
}

func (m *memService) Delete(ctx context.Context, c access.Caller, id uuid.UUID) error {
	if _, err := m.Get(ctx, c, id); err != nil {
		return err
	}
	delete(m.rows, id)
	return nil
}

type client struct {
	router http.Handler
	caller access.Caller
}

func newClient(svc Service) *client {
	r := chi.NewRouter()
	NewHandler(slog.Default(), svc).RegisterRoutes(r)
	return &client{router: r, caller: access.Caller{UserID: uuid.New(), AgencyID: uuid.New(), Role: domain.RoleMember}}
}

func (c *client) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = common.TestCaller(req, c.caller)
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func TestConsultationLifecycle(t *testing.T) {
	svc := &memService{rows: make(map[uuid.UUID]domain.Consultation)}
	c := newClient(svc)

	w := c.do(http.MethodPost, "/v1/consultations", `{"client_name":"Jane","client_email":"jane@client.test"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created ConsultationResponse
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	path := "/v1/consultations/" + created.ID.String()
	if w := c.do(http.MethodPatch, path, `{"notes":"wants SEO"}`); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "wants SEO") {
		t.Errorf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	if w := c.do(http.MethodPost, path+"/status", `{"status":"completed"}`); w.Code != http.StatusOK {
		t.Errorf("status change = %d", w.Code)
	}
	if w := c.do(http.MethodGet, "/v1/consultations?status=completed", ""); !strings.Contains(w.Body.String(), created.ID.String()) {
		t.Errorf("filtered list = %s", w.Body.String())
	}
	if w := c.do(http.MethodDelete, path, ""); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := c.do(http.MethodGet, path, ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestConsultation_OtherAgencyIsNotFound(t *testing.T) {
	svc := &memService{rows: make(map[uuid.UUID]domain.Consultation)}
	owner := newClient(svc)
	w := owner.do(http.MethodPost, "/v1/consultations", `{"client_name":"Jane","client_email":"jane@client.test"}`)
	var created ConsultationResponse
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	other := newClient(svc)
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		if w := other.do(method, "/v1/consultations/"+created.ID.String(), ""); w.Code != http.StatusNotFound {
			t.Errorf("%s from another agency = %d, want %d", method, w.Code, http.StatusNotFound)
		}
	}
	if w := other.do(http.MethodGet, "/v1/consultations", ""); !strings.Contains(w.Body.String(), `"consultations":[]`) {
		t.Errorf("list from another agency = %s", w.Body.String())
	}
}

func TestCreate_ValidationDetails(t *testing.T) {
	c := newClient(&memService{rows: make(map[uuid.UUID]domain.Consultation)})

	w := c.do(http.MethodPost, "/v1/consultations", `{"client_email":"jane@client.test"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if !strings.Contains(w.Body.String(), `"field":"client_name"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
