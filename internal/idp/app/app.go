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

	httpapi "github.com/aussiebroadwan/idp/internal/idp/http"
	"github.com/aussiebroadwan/idp/internal/idp/registry"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/internal/idp/store/drivers/sqlite"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the identity provider with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	registry   *registry.Registry
	keyManager *jwtx.KeyManager

	// Services
	validationService   *service.ValidationService
	profileService      *service.ProfileService
	tokenService        *service.TokenService
	authorizeService    *service.AuthorizeService
	userService         *service.UserService
	seedService         *service.SeedService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
// Seeding has not run yet; Run performs it before the listener starts.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "idp",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	reg, err := registry.Load(app.cfg.RegistryFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration registry: %w", err)
	}
	app.registry = reg

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keyManager, err := InitKeys(app.cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run seeds storage, starts the HTTP server, and blocks until shutdown is
// requested. Seeding completes before the listener opens so that a reachable
// service always implies a fully seeded store.
func (app *Application) Run() error {
	ctx := context.Background()

	if err := app.seedService.Run(ctx, service.SeedOptions{
		ApplyMigrations: app.cfg.ApplyMigrations,
		SeedData:        app.cfg.SeedData,
	}); err != nil {
		return fmt.Errorf("startup seeding failed: %w", err)
	}

	app.housekeepingService.Start()

	app.logger.Info("identity provider starting",
		"addr", app.cfg.ListenAddr,
		"issuer", app.cfg.Issuer,
		"version", BuildVersion,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity provider...")

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

	app.logger.Info("identity provider stopped")
	return nil
}

// initDatabase opens the database connection. Migrations are applied later
// during seeding, and only when IDP_APPLY_MIGRATIONS is set.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.validationService = &service.ValidationService{Store: app.db}
	app.profileService = &service.ProfileService{Store: app.db}

	app.tokenService = &service.TokenService{
		KeyManager:              app.keyManager,
		Store:                   app.db,
		Validation:              app.validationService,
		Profile:                 app.profileService,
		Issuer:                  app.cfg.Issuer,
		AccessTTL:               app.cfg.AccessTTL,
		EmitStaticAudienceClaim: app.cfg.EmitStaticAudienceClaim,
	}

	app.authorizeService = &service.AuthorizeService{
		Store:      app.db,
		Validation: app.validationService,
		CodeTTL:    app.cfg.CodeTTL,
	}

	app.userService = &service.UserService{Store: app.db}

	app.seedService = &service.SeedService{
		Store:    app.db,
		Registry: app.registry,
		Logger:   app.logger,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		app.cfg.Issuer,
		app.keyManager.Algorithm(),
		BuildVersion,
		app.supportedScopes(),
		app.db,
		app.logger,
	)

	// Wire services to router
	router.TokenService = app.tokenService
	router.AuthorizeService = app.authorizeService
	router.UserService = app.userService
	router.ProfileService = app.profileService
	router.ValidationService = app.validationService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              app.cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// supportedScopes flattens the registry into the scope list advertised by
// the discovery document.
func (app *Application) supportedScopes() []string {
	var scopes []string
	for _, res := range app.registry.ListIdentityResources() {
		scopes = append(scopes, res.Name)
	}
	for _, s := range app.registry.ListScopes() {
		scopes = append(scopes, s.Name)
	}
	return scopes
}
