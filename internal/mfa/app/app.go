package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/allowlist"
	"github.com/aussiebroadwan/mfagate/internal/mfa/audit"
	"github.com/aussiebroadwan/mfagate/internal/mfa/cache"
	httpapi "github.com/aussiebroadwan/mfagate/internal/mfa/http"
	"github.com/aussiebroadwan/mfagate/internal/mfa/service"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store/drivers/postgres"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store/drivers/sqlite"
	"github.com/aussiebroadwan/mfagate/pkg/cryptox"
	"github.com/aussiebroadwan/mfagate/pkg/slogx"

	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the MFA gate service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db           store.Store
	sessionCache *cache.SessionCache // nil when REDIS_ADDR is unset
	amqpRecorder *audit.AMQPRecorder // nil when AMQP_URL is unset
	recorder     audit.Recorder
	allow        *allowlist.Allowlist

	// Services
	lockoutService      *service.LockoutService
	verificationService *service.VerificationService
	enrollmentService   *service.EnrollmentService
	sessionService      *service.SessionService
	bypassService       *service.BypassService
	policyService       *service.PolicyService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "mfagate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set master key path for secret encryption and proof token signing
	cryptox.SetMasterKeyPath(app.cfg.MasterKeyPath)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCache(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initAudit(); err != nil {
		app.closeBackends()
		return nil, err
	}
	if err := app.initAllowlist(); err != nil {
		app.closeBackends()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("mfa gate starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"store_driver", app.cfg.StoreDriver,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down mfa gate...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	app.closeBackends()

	app.logger.Info("mfa gate stopped")
	return nil
}

// closeBackends releases every external connection the app holds.
func (app *Application) closeBackends() {
	if app.allow != nil {
		if err := app.allow.Close(); err != nil {
			app.logger.Error("error closing allowlist watcher", "error", err)
		}
	}
	if app.amqpRecorder != nil {
		if err := app.amqpRecorder.Close(); err != nil {
			app.logger.Error("error closing audit publisher", "error", err)
		}
	}
	if app.sessionCache != nil {
		if err := app.sessionCache.Close(); err != nil {
			app.logger.Error("error closing session cache", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
		}
	}
}

// initDatabase initializes the configured store driver and applies migrations
func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)

	switch app.cfg.StoreDriver {
	case "postgres":
		db, err = postgres.NewStore(app.cfg.DatabaseURL)
	case "sqlite", "":
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	default:
		return fmt.Errorf("unknown store driver %q", app.cfg.StoreDriver)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCache connects the optional Redis session cache.
func (app *Application) initCache() error {
	if app.cfg.RedisAddr == "" {
		app.logger.Info("session cache disabled (REDIS_ADDR not set)")
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
	sessionCache := cache.NewSessionCache(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sessionCache.Ping(ctx); err != nil {
		_ = sessionCache.Close()
		return fmt.Errorf("failed to connect session cache: %w", err)
	}

	app.sessionCache = sessionCache
	app.logger.Info("session cache connected", "addr", app.cfg.RedisAddr)
	return nil
}

// initAudit wires the durable store recorder and the optional AMQP publisher.
func (app *Application) initAudit() error {
	app.recorder = audit.NewStoreRecorder(app.db)

	if app.cfg.AMQPURL == "" {
		return nil
	}

	amqpRecorder, err := audit.NewAMQPRecorder(app.cfg.AMQPURL, app.logger)
	if err != nil {
		return fmt.Errorf("failed to connect audit publisher: %w", err)
	}
	app.amqpRecorder = amqpRecorder
	app.recorder = audit.NewFanout(app.logger, audit.NewStoreRecorder(app.db), amqpRecorder)
	app.logger.Info("audit events published to broker", "exchange", audit.Exchange)
	return nil
}

// initAllowlist loads the bypass allowlist and starts watching it for edits.
func (app *Application) initAllowlist() error {
	allow, err := allowlist.New(app.cfg.AllowlistFile, app.logger)
	if err != nil {
		return fmt.Errorf("failed to load bypass allowlist: %w", err)
	}
	if err := allow.Watch(); err != nil {
		_ = allow.Close()
		return fmt.Errorf("failed to watch bypass allowlist: %w", err)
	}
	app.allow = allow
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.lockoutService = &service.LockoutService{
		Store:     app.db,
		Audit:     app.recorder,
		Threshold: app.cfg.LockoutThreshold,
		Duration:  app.cfg.LockoutDuration,
	}

	app.verificationService = &service.VerificationService{
		Store:   app.db,
		Lockout: app.lockoutService,
		Audit:   app.recorder,
	}

	app.sessionService = &service.SessionService{
		Store: app.db,
		Audit: app.recorder,
		TTL:   app.cfg.SessionTTL,
	}

	app.enrollmentService = &service.EnrollmentService{
		Store:        app.db,
		Verification: app.verificationService,
		Audit:        app.recorder,
		Issuer:       app.cfg.Issuer,
	}

	app.bypassService = &service.BypassService{
		Store:     app.db,
		Allowlist: app.allow,
		Audit:     app.recorder,
		MaxTTL:    app.cfg.BypassMaxTTL,
	}

	exempt := make(map[string]struct{}, len(app.cfg.ExemptPrincipals))
	for _, p := range app.cfg.ExemptPrincipals {
		exempt[p] = struct{}{}
	}
	app.policyService = &service.PolicyService{
		Identity: service.GatewayIdentitySource{},
		Policy:   &service.StaticPolicySource{Mandatory: app.cfg.Mandatory, Exempt: exempt},
		Sessions: app.sessionService,
		Bypass:   app.bypassService,
		Store:    app.db,
		Audit:    app.recorder,
	}

	// The concrete cache pointer is only handed over when configured, so the
	// services' nil checks stay meaningful.
	if app.sessionCache != nil {
		app.sessionService.Cache = app.sessionCache
		app.enrollmentService.Cache = app.sessionCache
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	// Wire services to router
	router.Cache = app.sessionCache
	router.EnrollmentService = app.enrollmentService
	router.VerificationService = app.verificationService
	router.SessionService = app.sessionService
	router.BypassService = app.bypassService
	router.PolicyService = app.policyService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
