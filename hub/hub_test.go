package hub

import (
	"database/sql"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/auth"
	"github.com/tendant/agencyhub/pkg/payments"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func openLazyDB(t *testing.T) *sql.DB {
	t.Helper()
	// sql.Open does not connect; nothing in these tests reaches the database.
	db, err := sql.Open("postgres", "host=127.0.0.1 port=1 dbname=none sslmode=disable")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestValidateConfig(t *testing.T) {
	db := openLazyDB(t)

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{DB: db, JWTSecret: testSecret}},
		{name: "missing db", cfg: Config{JWTSecret: testSecret}, wantErr: true},
		{name: "missing secret", cfg: Config{DB: db}, wantErr: true},
		{name: "short secret", cfg: Config{DB: db, JWTSecret: "short"}, wantErr: true},
		{name: "stripe without onboarding urls", cfg: Config{DB: db, JWTSecret: testSecret, StripeSecretKey: "sk_test_x"}, wantErr: true},
		{
			name: "stripe with onboarding urls",
			cfg: Config{DB: db, JWTSecret: testSecret, StripeSecretKey: "sk_test_x", StripeOnboarding: payments.OnboardingURLs{
				ReturnURL:  "https://app.example/payments",
				RefreshURL: "https://app.example/payments?refresh=1",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	applyDefaults(&cfg)

	if cfg.JWTIssuer != "agencyhub" {
		t.Errorf("JWTIssuer = %q, want agencyhub", cfg.JWTIssuer)
	}
	if cfg.AccessTokenTTL != auth.DefaultAccessTokenTTL {
		t.Errorf("AccessTokenTTL = %v, want %v", cfg.AccessTokenTTL, auth.DefaultAccessTokenTTL)
	}
	if cfg.Policy == nil {
		t.Error("Policy not defaulted")
	}
	if cfg.Logger == nil {
		t.Error("Logger not defaulted")
	}
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	cfg := Config{DB: openLazyDB(t), JWTSecret: testSecret, Logger: slog.Default()}
	applyDefaults(&cfg)
	return build(cfg)
}

func TestHub_Router(t *testing.T) {
	h := newTestHub(t)

	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	h.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/agency", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("GET /v1/agency status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHub_IssueToken(t *testing.T) {
	h := newTestHub(t)
	identity := auth.Identity{UserID: uuid.New(), AgencyID: uuid.New(), MembershipID: uuid.New()}

	token, err := h.IssueToken(identity)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	got, err := auth.NewTokens(auth.TokenConfig{Secret: []byte(testSecret), Issuer: "agencyhub"}).Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got.MembershipID != identity.MembershipID || got.AgencyID != identity.AgencyID {
		t.Errorf("Verify() = %+v, want membership %s in agency %s", got, identity.MembershipID, identity.AgencyID)
	}
}
