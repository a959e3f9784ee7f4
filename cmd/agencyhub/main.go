package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/agencyhub/internal/config"
	httpserver "github.com/tendant/agencyhub/internal/http"
	"github.com/tendant/agencyhub/internal/http/middleware"
	"github.com/tendant/agencyhub/internal/metrics"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/activity"
	"github.com/tendant/agencyhub/pkg/agency"
	"github.com/tendant/agencyhub/pkg/auth"
	"github.com/tendant/agencyhub/pkg/catalog"
	"github.com/tendant/agencyhub/pkg/consultation"
	"github.com/tendant/agencyhub/pkg/deletion"
	"github.com/tendant/agencyhub/pkg/export"
	"github.com/tendant/agencyhub/pkg/invoicing"
	"github.com/tendant/agencyhub/pkg/payments"
	"github.com/tendant/agencyhub/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(cfg.Database())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	metrics.Init()

	policy := access.DefaultPolicy()
	if cfg.PermissionsFile != "" {
		policy, err = access.LoadPolicy(cfg.PermissionsFile)
		if err != nil {
			logger.Error("failed to load permissions file", "path", cfg.PermissionsFile, "error", err)
			os.Exit(1)
		}
		logger.Info("loaded permissions file", "path", cfg.PermissionsFile)
	}

	// Initialize repositories
	agenciesRepo := repository.NewAgenciesRepository(db)
	usersRepo := repository.NewUsersRepository(db)
	membershipsRepo := repository.NewMembershipsRepository(db)
	consultationsRepo := repository.NewConsultationsRepository(db)
	packagesRepo := repository.NewPackagesRepository(db)
	invoicesRepo := repository.NewInvoicesRepository(db)
	contentRepo := repository.NewContentRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	activityLog := activity.New(activityRepo, logger)

	var provider payments.Provider = payments.Unconfigured{}
	if cfg.HasStripe() {
		provider = payments.NewStripeProvider(cfg.StripeSecretKey, payments.OnboardingURLs{
			ReturnURL:  cfg.StripeConnectReturnURL,
			RefreshURL: cfg.StripeConnectRefreshURL,
		})
		logger.Info("payment provider enabled")
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, payment links are unavailable")
	}

	var redisClient *redis.Client
	if cfg.HasRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		logger.Info("session query cache enabled", "addr", cfg.RedisAddr)
	}

	// Initialize services
	paymentService := payments.NewService(provider, invoicesRepo, agenciesRepo, policy, activityLog, logger)
	agencyService := agency.NewService(agenciesRepo, membershipsRepo, activityRepo, policy, activityLog, logger)
	deletionManager := deletion.NewManager(agenciesRepo, policy, activityLog, logger)
	consultationService := consultation.NewService(consultationsRepo, packagesRepo, policy, activityLog, logger)
	packageService := catalog.NewService(packagesRepo, policy, activityLog, logger)
	invoiceService := invoicing.NewService(invoicesRepo, consultationsRepo, paymentService, policy, activityLog, logger)
	exportService := export.NewService(export.Sources{
		Agencies:      agenciesRepo,
		Users:         usersRepo,
		Members:       membershipsRepo,
		Content:       contentRepo,
		Consultations: consultationsRepo,
		Activity:      activityRepo,
	}, policy, activityLog, logger)

	if !cfg.HasCronSecret() {
		logger.Warn("CRON_SECRET not set, internal endpoints reject all requests")
	}

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger: logger,
		Tokens: auth.NewTokens(auth.TokenConfig{
			Secret: []byte(cfg.JWTSecret),
			Issuer: cfg.JWTIssuer,
		}),
		Tenant: middleware.TenantConfig{
			Memberships: membershipsRepo,
			Agencies:    agenciesRepo,
			Users:       usersRepo,
			Logger:      logger,
			Redis:       redisClient,
			SessionTTL:  cfg.DispatchSessionTTL,
		},
		AgencyService:       agencyService,
		Provisioner:         agency.NewProvisioner(agenciesRepo, usersRepo, activityLog, logger),
		DeletionManager:     deletionManager,
		ExportService:       exportService,
		ConsultationService: consultationService,
		PackageService:      packageService,
		InvoiceService:      invoiceService,
		PaymentService:      paymentService,
		CronSecret:          cfg.CronSecret,
		MaxRequestBodySize:  cfg.MaxRequestBodySize,
		RateLimitConfig:     cfg.RateLimit,
		SecurityHeaders:     cfg.SecurityHeaders,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
