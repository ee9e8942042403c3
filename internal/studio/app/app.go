package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	studiohttp "github.com/aussiebroadwan/minivisionary/internal/studio/http"
	"github.com/aussiebroadwan/minivisionary/internal/studio/metrics"
	"github.com/aussiebroadwan/minivisionary/internal/studio/payments"
	"github.com/aussiebroadwan/minivisionary/internal/studio/poster"
	"github.com/aussiebroadwan/minivisionary/internal/studio/service"
	"github.com/aussiebroadwan/minivisionary/internal/studio/store"
	"github.com/aussiebroadwan/minivisionary/internal/studio/store/drivers/sqlite"
	"github.com/aussiebroadwan/minivisionary/pkg/cryptox"
	"github.com/aussiebroadwan/minivisionary/pkg/jwtx"
	"github.com/aussiebroadwan/minivisionary/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application owns the studio backend and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keyManager *jwtx.KeyManager
	metrics    *metrics.Metrics
	uploads    *poster.LocalStorage

	authService         *service.AuthService
	profileService      *service.ProfileService
	walletService       *service.WalletService
	posterService       *service.PosterService
	paymentService      *service.PaymentService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *studiohttp.Router
}

// Option tweaks an Application before its dependencies are built.
type Option func(*Application)

// WithLogOutput sends logs somewhere other than stdout.
func WithLogOutput(w io.Writer) Option {
	return func(app *Application) {
		app.logger = slogx.New(slogx.Config{
			Service: "studio",
			Version: BuildVersion,
			Env:     app.cfg.Env,
			Level:   app.cfg.LogLevel,
			Format:  app.cfg.LogFormat,
			Output:  w,
		})
	}
}

// New wires the database, keys, services and HTTP server from cfg.
func New(cfg Config, opts ...Option) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "studio",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}
	for _, opt := range opts {
		opt(app)
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initKeys(context.Background()); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler exposes the routed HTTP handler, mainly for in-process tests.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run serves until SIGINT/SIGTERM or a server error.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("studio starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"simulator", app.cfg.SimulatorEnabled,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			_ = app.db.Close()
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

// Shutdown drains in-flight requests, stops housekeeping and closes the db.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down studio...")

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

	app.logger.Info("studio stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

func (app *Application) initServices() error {
	uploads, err := poster.NewLocalStorage(app.cfg.UploadDir, app.cfg.PublicURL+studiohttp.UploadsPrefix)
	if err != nil {
		return fmt.Errorf("failed to initialize poster storage: %w", err)
	}
	app.uploads = uploads
	app.metrics = metrics.New()

	app.walletService = &service.WalletService{
		Store:   app.db,
		Metrics: app.metrics,
	}
	app.authService = &service.AuthService{
		Store:      app.db,
		KeyManager: app.keyManager,
		Issuer:     app.cfg.Issuer,
		TokenTTL:   app.cfg.TokenTTL,
		Wallet:     app.walletService,
	}
	app.profileService = &service.ProfileService{Store: app.db}
	app.posterService = &service.PosterService{
		Store:     app.db,
		Wallet:    app.walletService,
		Generator: poster.PlaceholderGenerator{},
		Storage:   uploads,
		Metrics:   app.metrics,
		Timeout:   app.cfg.GenerateTimeout,
	}
	app.paymentService = &service.PaymentService{
		Store:              app.db,
		Catalog:            payments.DefaultCatalog(),
		Provider:           payments.NewLocalProvider(app.cfg.PublicURL, app.cfg.CheckoutTTL),
		Wallet:             app.walletService,
		Metrics:            app.metrics,
		WebhookSecret:      app.cfg.WebhookSecret,
		SignatureTolerance: app.cfg.SignatureTolerance,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	if app.cfg.SimulatorEnabled {
		app.logger.Warn("payment simulator enabled; checkouts can be paid without a provider")
	}
	return nil
}

func (app *Application) initHTTP() {
	router := studiohttp.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		BuildVersion,
		app.db,
		app.metrics,
		app.cfg.RateLimits,
		app.logger,
	)

	router.AuthService = app.authService
	router.ProfileService = app.profileService
	router.WalletService = app.walletService
	router.PosterService = app.posterService
	router.PaymentService = app.paymentService
	router.Uploads = app.uploads
	router.SimulatorEnabled = app.cfg.SimulatorEnabled
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
