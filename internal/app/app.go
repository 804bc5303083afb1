// Package app wires configuration, storage, the AI stack and the HTTP API
// into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"smartnotes/internal/adapter/httpapi"
	"smartnotes/internal/adapter/scheduler"
	"smartnotes/internal/ai"
	"smartnotes/internal/ai/aierr"
	"smartnotes/internal/ai/retry"
	"smartnotes/internal/ailog"
	"smartnotes/internal/config"
	"smartnotes/internal/notes"
	"smartnotes/internal/platform/logger"
	"smartnotes/internal/quota"
	"smartnotes/internal/worker"
)

// App wires application components.
type App struct {
	cfg config.Config
	log *slog.Logger
}

// New loads configuration and creates the logger.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "smartnotes",
		Redact:       aierr.Normalize,
	})
	return &App{cfg: cfg, log: log}, nil
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.log }

// Close flushes log sinks.
func (a *App) Close() error {
	return logger.Close(a.log)
}

// Serve runs the HTTP API, the background AI workers and the housekeeping
// schedule until ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	a.log.Info("starting",
		slog.String("db", a.cfg.DB.Driver),
		slog.String("ai_provider", a.cfg.AI.Provider),
		slog.String("addr", a.cfg.HTTP.Addr),
	)

	st, err := a.openStore(ctx, true)
	if err != nil {
		return err
	}
	defer st.close()

	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	quotaStore, closeQuota, err := a.quotaStore(ctx, st, loc)
	if err != nil {
		return err
	}
	defer closeQuota()

	completer, err := a.completer()
	if err != nil {
		return err
	}
	gen := ai.NewGenerator(completer,
		ai.WithRetryConfig(a.retryConfig()),
		ai.WithLogger(a.log),
	)

	jobs := worker.NewDispatcher(ctx, worker.Options{
		Workers:    a.cfg.Workers.Count,
		QueueSize:  a.cfg.Workers.QueueSize,
		JobTimeout: 2 * a.cfg.AI.Timeout * time.Duration(a.cfg.AI.MaxAttempts),
		Logger:     a.log,
	})
	errs := ailog.NewService(st, a.log)
	svc := notes.NewService(notes.Deps{
		Repo:      st,
		Generator: gen,
		Quota: quota.New(quotaStore,
			quota.WithLimit(a.cfg.Regen.DailyLimit),
			quota.WithLocation(loc),
			quota.WithLogger(a.log),
		),
		ErrorLog: errs,
		Jobs:     jobs,
		Logger:   a.log,
	})

	sched := scheduler.NewWithContext(ctx, scheduler.Config{Logger: a.log})
	if a.cfg.Prune.Schedule != "" {
		hk := scheduler.NewHousekeeper(st, errs, a.retention(), a.log)
		if _, err := hk.Schedule(sched, a.cfg.Prune.Schedule); err != nil {
			return err
		}
	}

	if a.cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	var limiter *httpapi.RateLimiter
	if a.cfg.RateLimit.RPS > 0 {
		limiter = httpapi.NewRateLimiter(a.cfg.RateLimit.RPS, a.cfg.RateLimit.Burst)
	}
	router := httpapi.NewRouter(httpapi.Config{
		Notes:    svc,
		ErrorLog: errs,
		ACL:      httpapi.NewACL(a.cfg.Auth.Header, httpapi.ParseAllowedUsers(a.cfg.Auth.AllowedUsers)),
		Limiter:  limiter,
		Health:   st.Ping,
		Logger:   a.log,
	})
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		a.log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return errors.Join(
			srv.Shutdown(shutdownCtx),
			sched.StopContext(shutdownCtx),
			jobs.Stop(shutdownCtx),
		)
	})
	return g.Wait()
}

// Prune runs housekeeping once.
func (a *App) Prune(ctx context.Context) error {
	st, err := a.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer st.close()
	return scheduler.NewHousekeeper(st, ailog.NewService(st, a.log), a.retention(), a.log).Run(ctx)
}

func (a *App) retention() time.Duration {
	return time.Duration(a.cfg.Prune.RetentionDays) * 24 * time.Hour
}

func (a *App) retryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = a.cfg.AI.MaxAttempts
	cfg.BaseDelay = a.cfg.AI.BaseDelay
	cfg.MaxDelay = a.cfg.AI.MaxDelay
	return cfg
}
