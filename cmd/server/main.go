// Package main is the entrypoint for the subrelay API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kiranshivaraju/subrelay/internal/api"
	"github.com/kiranshivaraju/subrelay/internal/api/handler"
	mw "github.com/kiranshivaraju/subrelay/internal/api/middleware"
	"github.com/kiranshivaraju/subrelay/internal/api/response"
	"github.com/kiranshivaraju/subrelay/internal/cache"
	"github.com/kiranshivaraju/subrelay/internal/command"
	"github.com/kiranshivaraju/subrelay/internal/config"
	"github.com/kiranshivaraju/subrelay/internal/jobstate"
	"github.com/kiranshivaraju/subrelay/internal/metrics"
	"github.com/kiranshivaraju/subrelay/internal/pipeline"
	"github.com/kiranshivaraju/subrelay/internal/stage/extract"
	"github.com/kiranshivaraju/subrelay/internal/stage/fetch"
	"github.com/kiranshivaraju/subrelay/internal/stage/merge"
	"github.com/kiranshivaraju/subrelay/internal/stage/publish"
	"github.com/kiranshivaraju/subrelay/internal/stage/transcribe"
	"github.com/kiranshivaraju/subrelay/internal/stage/translate"
	"github.com/kiranshivaraju/subrelay/internal/store"
	"github.com/kiranshivaraju/subrelay/internal/stream"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env is normal in containers.
	envErr := godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		slog.Warn("could not read .env file", "error", envErr)
	}

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"version", version,
		"publish_target", cfg.Publish.Target,
		"target_language", cfg.Pipeline.TargetLanguage,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Build stage adapters
	stages, err := buildStages(cfg)
	if err != nil {
		return fmt.Errorf("build stages: %w", err)
	}
	slog.Info("stages configured", "publisher", stages.Publish.Name())

	hub := stream.NewHub()
	observers := []jobstate.Observer{metrics.ObserveJob, hub.Broadcast}
	var mirrors []*jobstate.AsyncObserver

	// 3. Optional Postgres mirror of the job slot
	var pgStore store.Store
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		slog.Info("database connected")

		if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")

		pgStore = store.NewPostgresStore(pool)
		m := jobstate.NewAsync(store.NewMirror(pgStore).Observe)
		mirrors = append(mirrors, m)
		observers = append(observers, m.Notify)
	} else {
		slog.Info("DATABASE_URL not set, job slot is kept in memory only")
	}

	// 4. Optional Redis for rate limiting and the status key
	var (
		redisCache  cache.Cache
		redisMirror *cache.StatusMirror
		rateLimit   *mw.RateLimit
	)
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer rc.Close()

		if err := rc.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("redis connected")

		redisCache = rc
		rateLimit = mw.NewRateLimit(rc, "submit", cfg.Redis.SubmitRateLimit)
		redisMirror = cache.NewStatusMirror(rc, cfg.Redis.StatusTTL)
		m := jobstate.NewAsync(redisMirror.Observe)
		mirrors = append(mirrors, m)
		observers = append(observers, m.Notify)
	} else {
		slog.Info("REDIS_URL not set, submissions are not rate limited")
	}

	// Registered after the pool and client so the last views are flushed
	// before those close.
	defer func() {
		for _, m := range mirrors {
			m.Close()
		}
	}()

	// 5. Job state, runner and service
	state := jobstate.New(observers...)
	var slot slotLoader
	switch {
	case pgStore != nil:
		slot = pgStore
	case redisMirror != nil:
		slot = redisMirror
	}
	if slot != nil {
		if err := restoreJob(ctx, state, slot); err != nil {
			return err
		}
	}

	runner := pipeline.NewRunner(state, stages, cfg.Pipeline.WorkDir)
	svc := pipeline.NewService(state, runner, pipeline.Defaults{
		Title:       cfg.Pipeline.DefaultTitle,
		Description: cfg.Pipeline.DefaultDescription,
		Tags:        cfg.Pipeline.DefaultTags,
	})

	// 6. Build router with dependencies
	deps := api.Dependencies{
		RateLimit:   rateLimit,
		CORSOrigins: cfg.Server.CORSOrigins,

		InfoHandler:    handler.NewInfoHandler(version),
		HealthHandler:  healthHandler(svc, pgStore, redisCache),
		ProcessHandler: handler.NewProcessHandler(svc),
		StatusHandler:  handler.NewStatusHandler(svc),
		StreamHandler:  stream.NewHandler(hub, svc.Status, cfg.Server.CORSOrigins),
		MetricsHandler: promhttp.Handler(),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset: it would cut off status streams.
		IdleTimeout: 60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := svc.Wait(shutdownCtx); err != nil {
		snap := svc.Status()
		slog.Warn("in-flight job did not finish before shutdown",
			"job_id", snap.JobID,
			"stage", models.StageName(snap.StageIndex),
		)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// buildStages wires the real adapters from config.
func buildStages(cfg *config.Config) (pipeline.Stages, error) {
	exec := command.NewExecRunner()

	publisher, err := publish.New(cfg.Publish)
	if err != nil {
		return pipeline.Stages{}, err
	}

	stages := pipeline.Stages{
		Fetch:      fetch.New(cfg.Fetch, exec),
		Extract:    extract.New(cfg.Extract, exec),
		Transcribe: transcribe.New(cfg.Transcribe, exec),
		Translate:  translate.NewFromConfig(cfg.Translate),
		Merge:      merge.New(cfg.Merge),
		Publish:    publisher,
	}
	return stages, stages.Validate()
}

// slotLoader reads the job slot mirrored by a previous process. Postgres
// is preferred; Redis serves when no database is configured.
type slotLoader interface {
	LoadCurrentJob(ctx context.Context) (models.JobView, error)
}

// restoreJob loads the slot mirrored by a previous process. A job that was
// running when that process stopped comes back as failed.
func restoreJob(ctx context.Context, state *jobstate.Store, s slotLoader) error {
	prev, err := s.LoadCurrentJob(ctx)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load current job: %w", err)
	}

	view, ok := state.Restore(prev)
	if !ok {
		return nil
	}
	slog.Info("previous job restored",
		"job_id", view.JobID,
		"status", view.Status,
		"was_running", prev.Status == models.JobStatusRunning,
	)
	return nil
}

// healthHandler checks the optional database and cache. A backend that was
// not configured reports "disabled" and does not degrade the service.
func healthHandler(svc *pipeline.Service, s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{
			"database": "disabled",
			"cache":    "disabled",
		}
		degraded := false

		if s != nil {
			checks["database"] = "ok"
			if err := s.Ping(ctx); err != nil {
				checks["database"] = "degraded"
				degraded = true
			}
		}
		if c != nil {
			checks["cache"] = "ok"
			if err := c.Ping(ctx); err != nil {
				checks["cache"] = "degraded"
				degraded = true
			}
		}

		body := map[string]any{
			"status":        "ok",
			"services":      checks,
			"is_processing": svc.Status().IsProcessing(),
			"version":       version,
		}
		if degraded {
			body["status"] = "degraded"
			response.Status(w, http.StatusServiceUnavailable, body)
			return
		}
		response.JSON(w, body)
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "INFO", "info":
		return slog.LevelInfo
	case "WARN", "warning", "warn":
		return slog.LevelWarn
	case "ERROR", "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
