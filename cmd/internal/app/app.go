// Package app wires the pedex client runtime: config, logging, the session
// core, and the local status HTTP surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	authapi "pedex/cmd/internal/auth/api"
	"pedex/cmd/internal/auth/credential"
	"pedex/cmd/internal/auth/session"
	"pedex/cmd/internal/metrics"
	"pedex/cmd/internal/realtime"
	"pedex/cmd/internal/snapshot"
	"pedex/cmd/internal/state"
)

// App owns the session core and its resources.
type App struct {
	cfg Config
	log Logger

	dbPool  *pgxpool.Pool
	backend credential.Backend

	creds *credential.Store
	ctrl  *session.Controller

	closeOnce sync.Once
	closeErr  error
}

// New constructs a fully wired App. It opens the credential backend (and the
// database pool for the postgres tier) but does not touch the network.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	var pool *pgxpool.Pool
	if cfg.Credential.Tier == credential.TierPostgres {
		p, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		pool = p
		log.Info("db.enabled", "tier", cfg.Credential.Tier)
	}

	backend, err := credential.OpenBackend(cfg.Credential, pool)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	creds := credential.New(backend, credential.WithSlot(cfg.Credential.Slot), credential.WithLogger(log))
	api := authapi.New(cfg.API, creds, nil, log)
	fetcher := snapshot.New(api, log, nil)
	store := state.NewStore(log)
	live := realtime.NewChannel(cfg.Live, nil, store, log)

	ctrl := session.New(cfg.Session, session.Deps{
		API:         api,
		Credentials: creds,
		Fetcher:     fetcher,
		Live:        live,
		State:       store,
	}, log)
	fetcher.SetUnauthorizedHandler(ctrl.HandleUnauthorized)

	log.Info("app.init",
		"tier", cfg.Credential.Tier,
		"api", cfg.API.BaseURL,
		"live", cfg.Live.URL,
		"instance", cfg.API.InstanceID,
	)

	return &App{
		cfg:     cfg,
		log:     log,
		dbPool:  pool,
		backend: backend,
		creds:   creds,
		ctrl:    ctrl,
	}, nil
}

// Controller exposes the session controller for one-shot commands.
func (a *App) Controller() *session.Controller { return a.ctrl }

// Credentials exposes the credential store for one-shot commands.
func (a *App) Credentials() *credential.Store { return a.creds }

// Run resumes any stored session, serves the status surface, and blocks
// until ctx is cancelled or the listener fails. Resources are released on
// return.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if err := a.ctrl.Start(ctx); err != nil {
		// The expiry watcher retries a resume within the identity failure budget.
		a.log.Warn("session.start.fail", "err", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.logNotices(runCtx)
	}()
	defer wg.Wait()
	defer cancel()

	if a.cfg.StatusAddr == "" {
		a.log.Info("status.disabled")
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.ctrl, a.dbPool)

	srv := &http.Server{
		Addr:              a.cfg.StatusAddr,
		Handler:           WithRequestLogging(WithSecurityHeaders(metrics.InstrumentHandler(mux)), a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("status.start", "addr", a.cfg.StatusAddr, "url", RuntimeBaseURL(a.cfg.StatusAddr))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("status.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("status.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("status.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("status.stopped")
	return nil
}

// Close stops the session core and releases storage. The stored credential
// is kept. Safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.ctrl.Shutdown()
		if err := a.backend.Close(); err != nil {
			a.log.Error("credential.close.fail", "err", err)
			a.closeErr = err
		}
		if a.dbPool != nil {
			a.dbPool.Close()
		}
	})
	return a.closeErr
}

func (a *App) logNotices(ctx context.Context) {
	notices := a.ctrl.Notices()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-notices:
			a.log.Info("session.notice", "kind", string(n.Kind), "message", n.Message)
		}
	}
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
