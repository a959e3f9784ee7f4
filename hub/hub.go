// Package hub embeds the agency backend in a host application that owns
// authentication.
//
// Setup:
//
//  1. Create the schema using your preferred migration tool
//  2. Create a Hub and mount its router
//  3. Issue access tokens from your own login flow with IssueToken
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	h, err := hub.New(hub.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if the schema is missing
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/", h.Router())
//	http.ListenAndServe(":8080", r)
//
// When a signed-up user creates their agency:
//
//	a, membership, err := h.CreateAgency(ctx, user.ID, "Acme Studio")
//
// After a user logs in to a membership:
//
//	token, err := h.IssueToken(auth.Identity{
//	    UserID:       user.ID,
//	    AgencyID:     membership.AgencyID,
//	    MembershipID: membership.ID,
//	})
package hub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/agencyhub/internal/config"
	httpserver "github.com/tendant/agencyhub/internal/http"
	"github.com/tendant/agencyhub/internal/http/middleware"
	"github.com/tendant/agencyhub/internal/httputil"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/activity"
	"github.com/tendant/agencyhub/pkg/agency"
	"github.com/tendant/agencyhub/pkg/auth"
	"github.com/tendant/agencyhub/pkg/catalog"
	"github.com/tendant/agencyhub/pkg/consultation"
	"github.com/tendant/agencyhub/pkg/deletion"
	"github.com/tendant/agencyhub/pkg/domain"
	"github.com/tendant/agencyhub/pkg/export"
	"github.com/tendant/agencyhub/pkg/invoicing"
	"github.com/tendant/agencyhub/pkg/payments"
	"github.com/tendant/agencyhub/pkg/repository"
)

// Config holds the configuration of an embedded hub.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret is the secret key for signing access tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in access tokens (default: "agencyhub").
	JWTIssuer string

	// AccessTokenTTL is the lifetime of issued access tokens (default: 15 minutes).
	AccessTokenTTL time.Duration

	// StripeSecretKey enables payment links (optional).
	StripeSecretKey string

	// StripeOnboarding is where Connect onboarding returns the agency
	// (required with StripeSecretKey).
	StripeOnboarding payments.OnboardingURLs

	// Redis shares the query cache across the requests of a session (optional).
	Redis      *redis.Client
	SessionTTL time.Duration

	// CronSecret enables the /internal routes (optional).
	CronSecret string

	// Policy overrides the built-in role matrix (optional).
	Policy *access.Policy

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// Hub is an embedded agency backend instance.
type Hub struct {
	config      Config
	tokens      *auth.Tokens
	deletion    *deletion.Manager
	provisioner *agency.Provisioner
	router      http.Handler
}

// New creates a hub with the given configuration.
// Returns an error if required database tables don't exist.
func New(cfg Config) (*Hub, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateSchema(context.Background(), cfg.DB); err != nil {
		return nil, err
	}

	return build(cfg), nil
}

func build(cfg Config) *Hub {
	db := cfg.DB
	logger := cfg.Logger
	policy := cfg.Policy

	agenciesRepo := repository.NewAgenciesRepository(db)
	usersRepo := repository.NewUsersRepository(db)
	membershipsRepo := repository.NewMembershipsRepository(db)
	consultationsRepo := repository.NewConsultationsRepository(db)
	packagesRepo := repository.NewPackagesRepository(db)
	invoicesRepo := repository.NewInvoicesRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	activityLog := activity.New(activityRepo, logger)

	var provider payments.Provider = payments.Unconfigured{}
	if cfg.StripeSecretKey != "" {
		provider = payments.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeOnboarding)
	}

	tokens := auth.NewTokens(auth.TokenConfig{
		Secret:         []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	paymentService := payments.NewService(provider, invoicesRepo, agenciesRepo, policy, activityLog, logger)
	deletionManager := deletion.NewManager(agenciesRepo, policy, activityLog, logger)
	provisioner := agency.NewProvisioner(agenciesRepo, usersRepo, activityLog, logger)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger: logger,
		Tokens: tokens,
		Tenant: middleware.TenantConfig{
			Memberships: membershipsRepo,
			Agencies:    agenciesRepo,
			Users:       usersRepo,
			Logger:      logger,
			Redis:       cfg.Redis,
			SessionTTL:  cfg.SessionTTL,
		},
		AgencyService:       agency.NewService(agenciesRepo, membershipsRepo, activityRepo, policy, activityLog, logger),
		Provisioner:         provisioner,
		DeletionManager:     deletionManager,
		ConsultationService: consultation.NewService(consultationsRepo, packagesRepo, policy, activityLog, logger),
		PackageService:      catalog.NewService(packagesRepo, policy, activityLog, logger),
		InvoiceService:      invoicing.NewService(invoicesRepo, consultationsRepo, paymentService, policy, activityLog, logger),
		PaymentService:      paymentService,
		ExportService: export.NewService(export.Sources{
			Agencies:      agenciesRepo,
			Users:         usersRepo,
			Members:       membershipsRepo,
			Content:       repository.NewContentRepository(db),
			Consultations: consultationsRepo,
			Activity:      activityRepo,
		}, policy, activityLog, logger),
		CronSecret:         cfg.CronSecret,
		MaxRequestBodySize: 1024 * 1024,
		RateLimitConfig:    config.RateLimitConfig{Enabled: false},
		SecurityHeaders:    config.SecurityHeadersConfig{Enabled: false},
	})

	return &Hub{
		config:      cfg,
		tokens:      tokens,
		deletion:    deletionManager,
		provisioner: provisioner,
		router:      router,
	}
}

// Router returns the handler serving every agency route.
// Mount this on your main router:
//
//	r.Mount("/", h.Router())
//
// Rate limiting and security headers are left to the host.
func (h *Hub) Router() http.Handler {
	return h.router
}

// IssueToken signs an access token for a membership the host has
// authenticated. The membership is re-checked on every request.
func (h *Hub) IssueToken(identity auth.Identity) (string, error) {
	return h.tokens.Issue(identity)
}

// CreateAgency creates an agency owned by an existing user, who becomes its
// first owner. Issue a token for the returned membership to sign them in.
func (h *Hub) CreateAgency(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Agency, *domain.Membership, error) {
	return h.provisioner.Provision(ctx, ownerID, agency.ProvisionInput{Name: name})
}

// Sweep executes every deletion whose grace period has elapsed. Use it from
// a host scheduler instead of the internal endpoint.
func (h *Hub) Sweep(ctx context.Context) (*deletion.SweepResult, error) {
	return h.deletion.Sweep(ctx)
}

// HealthHandler returns a simple health check handler.
func (h *Hub) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("hub: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("hub: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("hub: JWTSecret must be at least 32 characters")
	}
	if cfg.StripeSecretKey != "" && (cfg.StripeOnboarding.ReturnURL == "" || cfg.StripeOnboarding.RefreshURL == "") {
		return errors.New("hub: StripeOnboarding URLs are required with StripeSecretKey")
	}
	if cfg.Redis != nil && cfg.SessionTTL < 0 {
		return errors.New("hub: SessionTTL must not be negative")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "agencyhub"
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.Policy == nil {
		cfg.Policy = access.DefaultPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

var requiredTables = []string{
	"agencies", "users", "memberships", "consultations", "packages",
	"invoices", "templates", "drafts", "draft_versions", "activity_log",
}

// validateSchema checks that required database tables exist.
func validateSchema(ctx context.Context, db *sql.DB) error {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRowContext(ctx, query, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("hub: missing table '%s' - create the schema first", table)
		}
		if err != nil {
			return fmt.Errorf("hub: failed to check schema: %w", err)
		}
	}

	return nil
}
