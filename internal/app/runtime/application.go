// Package runtime wires configuration, storage and the HTTP server into a
// runnable process.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	app "github.com/dvimperial/tracking_service/internal/app"
	"github.com/dvimperial/tracking_service/internal/app/httpapi"
	"github.com/dvimperial/tracking_service/internal/app/storage"
	"github.com/dvimperial/tracking_service/internal/app/storage/postgres"
	"github.com/dvimperial/tracking_service/internal/app/upstream"
	"github.com/dvimperial/tracking_service/internal/config"
	"github.com/dvimperial/tracking_service/internal/platform/migrations"
	"github.com/dvimperial/tracking_service/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	httpServer *http.Server
	app        *app.Application
	db         *sql.DB
	rdb        *redis.Client
}

// NewApplication constructs a new application instance with default wiring.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	store, db, err := buildStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure store: %w", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var upstreamClient *upstream.Client
	if cfg.Upstream.BaseURL != "" {
		upstreamClient, err = upstream.New(upstream.Config{
			BaseURL:      cfg.Upstream.BaseURL,
			TokenURL:     cfg.Upstream.TokenURL,
			ClientKey:    cfg.Upstream.ClientKey,
			ClientSecret: cfg.Upstream.ClientSecret,
			Timeout:      time.Duration(cfg.Upstream.TimeoutSec) * time.Second,
			CacheTTL:     time.Duration(cfg.Upstream.CacheTTLSec) * time.Second,
		}, nil, rdb, log)
		if err != nil {
			return nil, fmt.Errorf("configure upstream client: %w", err)
		}
	} else {
		log.Warn("upstream base url not set; running from local store only")
	}

	application, err := app.New(app.Stores{Purchases: store}, app.Options{
		Upstream:     upstreamClient,
		SyncInterval: time.Duration(cfg.Sync.IntervalSec) * time.Second,
		SyncClients:  cfg.Sync.Clients,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}

	handler := httpapi.NewHandler(application.Purchases, application.Tracking, log)
	limiter := httpapi.NewRateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst, log)
	limiter.StartCleanup(10 * time.Minute)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(limiter),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		httpServer: httpSrv,
		app:        application,
		db:         db,
		rdb:        rdb,
	}, nil
}

// Run starts the managed services and the HTTP server, then blocks until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and the managed services.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}

	return nil
}

// buildStore opens the postgres store when a DSN is configured and falls back
// to the in-memory store otherwise.
func buildStore(cfg *config.Config, log *logger.Logger) (storage.PurchaseStore, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		log.Warn("database dsn not set; using in-memory store")
		return nil, nil, nil
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	return postgres.New(db), db, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("database driver not configured")
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
