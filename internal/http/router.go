package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/agencyhub/internal/config"
	"github.com/tendant/agencyhub/internal/http/features/agency"
	"github.com/tendant/agencyhub/internal/http/features/consultations"
	"github.com/tendant/agencyhub/internal/http/features/deletion"
	"github.com/tendant/agencyhub/internal/http/features/export"
	"github.com/tendant/agencyhub/internal/http/features/invoices"
	"github.com/tendant/agencyhub/internal/http/features/packages"
	"github.com/tendant/agencyhub/internal/http/features/payments"
	"github.com/tendant/agencyhub/internal/http/middleware"
	"github.com/tendant/agencyhub/internal/httputil"
	"github.com/tendant/agencyhub/internal/metrics"
	"github.com/tendant/agencyhub/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger *slog.Logger
	Tokens *auth.Tokens
	Tenant middleware.TenantConfig

	AgencyService       agency.Service
	Provisioner         agency.Provisioner // optional
	DeletionManager     deletion.Manager
	ExportService       export.Service
	ConsultationService consultations.Service
	PackageService      packages.Service
	InvoiceService      invoices.Service
	PaymentService      payments.Service

	CronSecret         string
	MaxRequestBodySize int64
	RateLimitConfig    config.RateLimitConfig
	SecurityHeaders    config.SecurityHeadersConfig
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	deletionHandler := deletion.NewHandler(cfg.Logger, cfg.DeletionManager)

	// Scheduler-triggered routes
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters[middleware.LimitInternal])
		r.Use(middleware.CronSecret(cfg.CronSecret, cfg.Logger))
		deletionHandler.RegisterInternalRoutes(r)
		if cfg.Provisioner != nil {
			agency.NewProvisionHandler(cfg.Logger, cfg.Provisioner).RegisterRoutes(r)
		}
	})

	tenant := cfg.Tenant
	if tenant.Logger == nil {
		tenant.Logger = cfg.Logger
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Tokens))
		r.Use(middleware.Tenant(tenant))

		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.LimitAPI])
			agency.NewHandler(cfg.Logger, cfg.AgencyService).RegisterRoutes(r)
			deletionHandler.RegisterRoutes(r)
			consultations.NewHandler(cfg.Logger, cfg.ConsultationService).RegisterRoutes(r)
			packages.NewHandler(cfg.Logger, cfg.PackageService).RegisterRoutes(r)
			invoices.NewHandler(cfg.Logger, cfg.InvoiceService).RegisterRoutes(r)
		})

		// Exports read every table of the agency
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.LimitExport])
			export.NewHandler(cfg.Logger, cfg.ExportService).RegisterRoutes(r)
		})

		// Payment routes call out to the provider
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.LimitPayments])
			payments.NewHandler(cfg.Logger, cfg.PaymentService).RegisterRoutes(r)
		})
	})

	return r
}
