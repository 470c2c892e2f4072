// Package app wires configuration, stores, services and the HTTP server
// into a runnable session service.
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

	httpapi "github.com/quorumhq/sessiond/internal/session/http"
	"github.com/quorumhq/sessiond/internal/session/service"
	"github.com/quorumhq/sessiond/internal/session/store"
	redisstore "github.com/quorumhq/sessiond/internal/session/store/drivers/redis"
	"github.com/quorumhq/sessiond/internal/session/store/drivers/sqlite"
	"github.com/quorumhq/sessiond/pkg/cryptox"
	"github.com/quorumhq/sessiond/pkg/slogx"
	"github.com/quorumhq/sessiond/pkg/tokenx"
)

// BuildVersion is overridable at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the session service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.UserStore
	sessions store.SessionStore
	codec    *tokenx.Codec

	manager     *service.Manager
	credentials *service.CredentialService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "sessiond",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Pepper for password hashing, loaded or generated on first use.
	cryptox.SetPepperPath(cfg.PepperFile)

	secrets, err := cfg.Secrets()
	if err != nil {
		return nil, err
	}
	codec, err := tokenx.NewCodec(secrets, cfg.Issuer, cfg.Audience, cfg.ClockSkew)
	if err != nil {
		return nil, err
	}
	app.codec = codec

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSessionStore(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("session service starting", "port", app.cfg.Port, "version", BuildVersion)

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
	app.logger.Info("shutting down session service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.sessions.Close(); err != nil {
		app.logger.Error("error closing session store", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("session service stopped")
	return nil
}

// Handler exposes the HTTP entry point for in-process tests.
func (app *Application) Handler() http.Handler { return app.router }

// Manager exposes the token manager for in-process tests and tooling.
func (app *Application) Manager() *service.Manager { return app.manager }

// Credentials exposes the credential service for bootstrap and tests.
func (app *Application) Credentials() *service.CredentialService { return app.credentials }

// Router exposes the router so callers can replace the reset notifier.
func (app *Application) Router() *httpapi.Router { return app.router }

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

func (app *Application) initSessionStore() error {
	sessions, err := redisstore.New(context.Background(), redisstore.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
		Timeout:  app.cfg.StoreTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect session store: %w", err)
	}
	app.sessions = sessions
	return nil
}

func (app *Application) initServices() {
	app.credentials = &service.CredentialService{Store: app.db}

	app.manager = &service.Manager{
		Codec:       app.codec,
		Sessions:    app.sessions,
		Credentials: app.credentials,
		AccessTTL:   app.cfg.AccessTTL,
		RefreshTTL:  app.cfg.RefreshTTL,
		ResetTTL:    app.cfg.ResetTTL,
		VerifyTTL:   app.cfg.VerifyTTL,
		BindContext: app.cfg.BindContext,
		RotateGrace: app.cfg.RotateGrace,
	}
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.sessions, app.db, app.logger)
	router.Manager = app.manager
	router.Credentials = app.credentials
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
