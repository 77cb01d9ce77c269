// Package main is the entrypoint for the chapternotes API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/chapternotes/internal/ai"
	"github.com/kiranshivaraju/chapternotes/internal/api"
	"github.com/kiranshivaraju/chapternotes/internal/api/handler"
	mw "github.com/kiranshivaraju/chapternotes/internal/api/middleware"
	"github.com/kiranshivaraju/chapternotes/internal/api/response"
	"github.com/kiranshivaraju/chapternotes/internal/cache"
	"github.com/kiranshivaraju/chapternotes/internal/config"
	"github.com/kiranshivaraju/chapternotes/internal/extract"
	"github.com/kiranshivaraju/chapternotes/internal/journal"
	"github.com/kiranshivaraju/chapternotes/internal/queue"
	"github.com/kiranshivaraju/chapternotes/internal/render"
	"github.com/kiranshivaraju/chapternotes/internal/session"
	"github.com/kiranshivaraju/chapternotes/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Note generation pipeline
	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	generator := ai.NewCachedGenerator(provider, redisCache, cfg.Notes.CacheTTL)
	slog.Info("AI provider initialized", "provider", provider.Name())

	prompt, err := ai.LoadPrompt(cfg.Notes.PromptFile)
	if err != nil {
		return fmt.Errorf("load prompt: %w", err)
	}

	renderer, err := render.New(render.StyleFromConfig(cfg.Render))
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	// 6. Job queue and sessions
	pgStore := store.NewPostgresStore(pool)
	recorder := journal.NewRecorder(pgStore, redisCache)
	scheduler := queue.NewScheduler(extract.New(), generator, cfg.AI.InferenceTimeout)

	var sessions *session.Manager
	runner := queue.NewRunner(scheduler,
		queue.WithWorkers(cfg.Queue.Workers),
		queue.WithSweep(func() []queue.Work { return sessions.Pending() }, cfg.Queue.SweepInterval),
	)
	sessions = session.NewManager(
		session.WithObserver(recorder),
		session.WithNotifier(runner.Notify),
		session.WithDefaultAPIKey(cfg.AI.DefaultAPIKey(), cfg.AI.NeedsAPIKey()),
		session.WithMaxUploadBytes(cfg.Notes.MaxUploadBytes),
	)
	runner.Start(context.WithoutCancel(ctx))
	slog.Info("job runner started", "workers", cfg.Queue.Workers)

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, cfg.RateLimit.PerMinute),

		HealthHandler:        healthHandler(pgStore, redisCache),
		CreateSessionHandler: handler.NewCreateSessionHandler(pgStore),
		PromptHandler:        handler.NewPromptHandler(prompt),

		UploadHandler:      handler.NewUploadHandler(sessions, cfg.Notes.MaxUploadBytes),
		ListUploadsHandler: handler.NewListUploadsHandler(sessions),
		GenerateHandler:    handler.NewGenerateHandler(sessions, prompt),

		ListJobsHandler:  handler.NewListJobsHandler(sessions),
		GetJobHandler:    handler.NewGetJobHandler(sessions, recorder),
		CancelAllHandler: handler.NewCancelAllHandler(sessions),
		CancelJobHandler: handler.NewCancelJobHandler(sessions),
		RequeueHandler:   handler.NewRequeueJobHandler(sessions),

		NotesMarkdownHandler: handler.NewNotesMarkdownHandler(sessions),
		NotesPDFHandler:      handler.NewNotesPDFHandler(sessions, renderer),
		NotesHTMLHandler:     handler.NewNotesHTMLHandler(sessions, renderer),

		ExportMarkdownHandler: handler.NewExportMarkdownHandler(sessions),
		ExportPDFHandler:      handler.NewExportPDFHandler(sessions),
		HistoryHandler:        handler.NewHistoryHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 60 * time.Second,
		// PDF rendering of long notes can take a while
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		runner.Shutdown(context.Background())
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	// pipelines already running finish; queued jobs are not started and are
	// lost with the in-memory tables
	runner.Shutdown(shutdownCtx)

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
