// Package server wires configuration, storage, services and the HTTP
// transport together and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/deepesh-reddy/MegaBackend/internal/cryptox"
	"github.com/deepesh-reddy/MegaBackend/internal/logging"
	"github.com/deepesh-reddy/MegaBackend/internal/server/assets"
	"github.com/deepesh-reddy/MegaBackend/internal/server/config"
	"github.com/deepesh-reddy/MegaBackend/internal/server/repositories/repomanager"
	"github.com/deepesh-reddy/MegaBackend/internal/server/rest"
	"github.com/deepesh-reddy/MegaBackend/internal/server/services"
)

const shutdownTimeout = 15 * time.Second

// seams for tests
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newAssetStore = func(ctx context.Context, cfg *config.Config) (assets.Store, error) {
		return assets.NewS3Store(ctx, cfg)
	}
)

type App struct {
	config *config.Config
	logger logging.Logger
	sync   func() error
	db     *sql.DB
	server *rest.Server
}

// buildLogger returns the configured logger and a flush function.
func buildLogger(cfg *config.Config) (logging.Logger, func() error, error) {
	switch cfg.LogBackend {
	case "zap":
		zl, err := logging.BuildZap(cfg.LogLevel, !cfg.IsProduction())
		if err != nil {
			return nil, nil, fmt.Errorf("zap init: %w", err)
		}
		l := logging.NewZapLogger(zl)
		return l, l.Sync, nil
	case "", "slog":
		return logging.NewJSONSlogLogger(os.Stdout, cfg.LogLevel), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown log backend %q", cfg.LogBackend)
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, flush, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := openDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := newAssetStore(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("asset store init error: %w", err)
	}

	repo := rm.Users(db)
	hasher := cryptox.NewCredentialVerifier(cryptox.DefaultCost)
	tokens := services.NewTokenService(repo, cfg)

	saga := services.NewOnboardingSaga(repo, store, hasher, cfg.UploadTimeout, cfg.StoreTimeout, logger)
	sessions := services.NewSessionService(db, rm, tokens, hasher, cfg.StoreTimeout)
	profiles := services.NewProfileService(repo, store, cfg.UploadTimeout, cfg.StoreTimeout, logger)

	h := rest.NewHandler(saga, sessions, profiles, cfg.UploadDir, cfg.IsProduction())
	router := rest.NewRouter(h, tokens, cfg.TrustedOrigins, logger)

	return &App{
		config: cfg,
		logger: logger,
		sync:   flush,
		db:     db,
		server: rest.NewServer(cfg.HTTPAddr, router),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// drains in-flight requests and releases resources.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)
	app.logger.Info(ctx, "starting app", "addr", app.config.HTTPAddr, "env", app.config.Environment)

	var wg sync.WaitGroup
	var serveErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.ListenAndServe(); err != nil {
			serveErr = err
			app.logger.Error(ctx, "http server stopped", "error", err)
			cancelFunc()
		}
	}()

	<-ctx.Done()
	app.logger.Info(ctx, "shutting down")

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	shutdownErr := app.server.Shutdown(sctx)

	wg.Wait()

	dbErr := app.db.Close()
	_ = app.sync()

	return errors.Join(serveErr, shutdownErr, dbErr)
}
