package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thumbgate/thumbgate/internal"
	"github.com/thumbgate/thumbgate/internal/audit"
	"github.com/thumbgate/thumbgate/internal/email"
	"github.com/thumbgate/thumbgate/internal/handler"
	"github.com/thumbgate/thumbgate/internal/identity"
	identitymock "github.com/thumbgate/thumbgate/internal/identity/mock"
	identityremote "github.com/thumbgate/thumbgate/internal/identity/remote"
	"github.com/thumbgate/thumbgate/internal/metrics"
	"github.com/thumbgate/thumbgate/internal/middleware"
	"github.com/thumbgate/thumbgate/internal/repository"
	"github.com/thumbgate/thumbgate/internal/service"
	"github.com/thumbgate/thumbgate/internal/storage"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize identity provider
	var idProvider identity.Provider
	if cfg.IdentityProvider == "remote" {
		idProvider = identityremote.New(identityremote.Config{
			BaseURL: cfg.IdentityBaseURL,
			APIKey:  cfg.IdentityAPIKey,
		}, logger)
	} else {
		idProvider = identitymock.New(logger)
		logger.Warn("Using mock identity provider, all tokens must be pre-registered")
	}

	// Initialize object storage
	var store storage.Storage
	if cfg.StorageProvider == storage.ProviderR2 {
		store, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	} else {
		store, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// Initialize limit notifications
	var notifier service.LimitNotifier = service.NopNotifier{}
	if cfg.EmailEnabled {
		emailSvc, err := email.NewSMTPEmailService(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}, cfg.BaseURL, logger)
		if err != nil {
			return fmt.Errorf("email initialization failed: %w", err)
		}
		notifier = service.NewLimitNotifier(repo, emailSvc, logger)
	}

	// Initialize services
	entitlementService := service.NewEntitlementService(repo, logger)
	archiver := service.NewArtifactArchiver(store, logger)
	usageService := service.NewUsageService(service.UsageServiceParams{
		Store:        repo,
		Entitlements: entitlementService,
		Archiver:     archiver,
		Notifier:     notifier,
		Logger:       logger,
		MaxRetries:   cfg.LedgerMaxRetries,
		RetryDelay:   cfg.LedgerRetryDelay,
	})
	accountService := service.NewAccountService(repo, entitlementService, usageService, logger)

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(idProvider, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	// Initialize handlers
	usageHandler := handler.NewUsageHandler(usageService, logger)
	accountHandler := handler.NewAccountHandler(accountService, logger)
	tiersHandler := handler.NewTiersHandler(entitlementService, logger)
	healthHandler := handler.NewHealthHandler(db, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Locally stored artifacts are served straight off disk in development
	if cfg.StorageProvider == storage.ProviderLocal {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	public := middleware.Stack(loggingMw.Handler, metrics.Middleware)
	requireAccount := middleware.Stack(loggingMw.Handler, metrics.Middleware, authMw.RequireAccount)

	mux.Handle("GET /api/v1/tiers", public(http.HandlerFunc(tiersHandler.List)))
	mux.Handle("POST /api/v1/usage", requireAccount(http.HandlerFunc(usageHandler.RecordOperation)))
	mux.Handle("GET /api/v1/me", requireAccount(http.HandlerFunc(accountHandler.Snapshot)))

	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	}))

	// ==========================================================================
	// Start background auditor
	// ==========================================================================

	var auditor *audit.Auditor
	if cfg.AuditEnabled {
		auditCfg := audit.DefaultConfig()
		auditCfg.SweepInterval = cfg.AuditSweepInterval
		auditor, err = audit.New(repo, auditCfg, logger)
		if err != nil {
			return fmt.Errorf("auditor initialization failed: %w", err)
		}
		auditor.Start(ctx)
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	if auditor != nil {
		auditor.Stop()
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
