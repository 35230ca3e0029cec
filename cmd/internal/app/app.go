// Package app wires the subdash server runtime: config, logging, the remote
// auth backend, and the dashboard HTTP surface.
//
// It is intentionally small and deterministic to keep CI gates strict and behavior predictable.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"subdash/cmd/internal/auth/session"
	"subdash/cmd/internal/dashboard/api"
	"subdash/cmd/internal/remote"
	"subdash/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoBackend is returned when neither a hosted remote nor a database URL
// has been configured.
var ErrNoBackend = errors.New("app: no auth backend configured (set SUBDASH_REMOTE_URL or SUBDASH_DATABASE_URL)")

// App is the subdash server runtime: it owns the HTTP server wiring and the
// remote backend lifecycle.
type App struct {
	cfg Config
	log Logger

	remote remote.Client
	dbPool *pgxpool.Pool

	dash *api.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	rc, dbPool, err := newRemoteClient(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}
	dash := api.NewHandler(log, api.LoadConfigFromEnv(), sessCfg, rc)

	return &App{
		cfg:    cfg,
		log:    log,
		remote: rc,
		dbPool: dbPool,
		dash:   dash,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dash)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbPool != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newRemoteClient decides between the hosted HTTP backend and the self-hosted
// Postgres backend. A configured remote URL wins; the pool is returned only in
// Postgres mode so the app can own its lifecycle.
func newRemoteClient(ctx context.Context, cfg Config, log Logger) (remote.Client, *pgxpool.Pool, error) {
	if cfg.RemoteURL != "" {
		rc, err := remote.NewHTTPClient(cfg.RemoteURL, cfg.RemoteAPIKey)
		if err != nil {
			return nil, nil, err
		}
		log.Info("remote.mode.hosted", "url", cfg.RemoteURL)
		return rc, nil, nil
	}

	if cfg.DatabaseURL == "" {
		return nil, nil, ErrNoBackend
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	params, err := password.ParamsFromEnv()
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	rc, err := remote.NewPostgresClient(pool,
		remote.WithSchema(cfg.DBSchema),
		remote.WithHashParams(params),
		remote.WithLogger(log),
	)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	log.Info("remote.mode.postgres", "schema", cfg.DBSchema)
	return rc, pool, nil
}
