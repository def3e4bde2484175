package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpapi "github.com/stepauth/stepauth/internal/stepup/http"
	"github.com/stepauth/stepauth/internal/stepup/provider/memory"
	"github.com/stepauth/stepauth/internal/stepup/service"
	"github.com/stepauth/stepauth/internal/stepup/store"
	"github.com/stepauth/stepauth/internal/stepup/store/drivers/sqlite"
	"github.com/stepauth/stepauth/pkg/jwtx"
	"github.com/stepauth/stepauth/pkg/mfasdk"
	"github.com/stepauth/stepauth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the step-up gateway with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	signer   *jwtx.Signer
	provider service.Provider

	// Services
	orchestrator        *service.Orchestrator
	settingsService     *service.SettingsService
	adminService        *service.Admin
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
			Service: "stepauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initProvider(); err != nil {
		return nil, err
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initSigner(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("stepauth starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Block until we receive a shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down stepauth...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("stepauth stopped")
	return nil
}

// initProvider picks the MFA provider backend. The memory provider needs
// no credentials and logs its OTP codes; never run it outside dev.
func (app *Application) initProvider() error {
	switch app.cfg.ProviderMode {
	case "memory":
		app.logger.Warn("using in-memory MFA provider; codes are written to the log")
		app.provider = memory.New(app.logger)
		return nil
	case "remote", "":
		if app.cfg.ProviderURL == "" || app.cfg.CustomerKey == "" || app.cfg.APIKey == "" {
			return fmt.Errorf("%w: provider url, customer key and api key must be set",
				service.ErrConfigurationMissing)
		}
		app.provider = mfasdk.New(mfasdk.Config{
			BaseURL:         app.cfg.ProviderURL,
			CustomerKey:     app.cfg.CustomerKey,
			APIKey:          app.cfg.APIKey,
			Timeout:         app.cfg.ProviderTimeout,
			InsecureSkipTLS: app.cfg.InsecureSkipTLS,
		})
		return nil
	default:
		return fmt.Errorf("unknown provider mode %q", app.cfg.ProviderMode)
	}
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
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

// initSigner loads the Ed25519 session signing key. Without a seed file
// the key is ephemeral and every restart invalidates outstanding session
// tokens, which is fine for dev and a conscious choice elsewhere.
func (app *Application) initSigner() error {
	if app.cfg.SignerSeedFile == "" {
		signer, err := jwtx.NewSigner()
		if err != nil {
			return fmt.Errorf("failed to generate signing key: %w", err)
		}
		app.logger.Warn("using ephemeral signing key; sessions will not survive a restart")
		app.signer = signer
		return nil
	}

	seed, err := os.ReadFile(app.cfg.SignerSeedFile)
	if err != nil {
		return fmt.Errorf("failed to read signer seed file: %w", err)
	}
	signer, err := jwtx.NewSignerFromSeed(seed)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}
	app.signer = signer
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.settingsService = &service.SettingsService{Store: app.db}

	app.orchestrator = &service.Orchestrator{
		Store:    app.db,
		Provider: app.provider,
		Settings: app.settingsService,
		Signer:   app.signer,
		Issuer:   app.cfg.Issuer,
		LoginTTL: app.cfg.LoginTTL,
		TokenTTL: app.cfg.SessionTTL,
	}

	app.adminService = &service.Admin{
		Store:    app.db,
		Provider: app.provider,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.signer,
		app.cfg.Issuer,
		BuildVersion,
		app.db,
		app.logger,
	)
	router.Orchestrator = app.orchestrator
	router.SettingsService = app.settingsService
	router.AdminService = app.adminService
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: router,
	}
}
