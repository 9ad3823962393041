// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/ostberg/folio/internal/api"
	"github.com/ostberg/folio/internal/assets"
	"github.com/ostberg/folio/internal/generator"
	"github.com/ostberg/folio/internal/index"
	"github.com/ostberg/folio/internal/mcpserver"
	"github.com/ostberg/folio/internal/project"
	"github.com/ostberg/folio/internal/sse"
	"github.com/ostberg/folio/internal/storage"
	"github.com/ostberg/folio/internal/store"
	"github.com/ostberg/folio/internal/watch"
)

func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// newService builds the storage, record store, asset store, and coordinating
// service for the configured site directory.
func newService(cfg *Config) (*project.Service, error) {
	if err := os.MkdirAll(cfg.Site.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create site dir: %w", err)
	}
	fs, err := storage.NewFS(cfg.Site.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	records := store.NewSession(fs, cfg.Site.ProjectsFile)
	assetStore := assets.NewStore(fs, cfg.Site.AssetsDir)
	return project.NewService(records, assetStore), nil
}

func newGenerator(cfg *Config) (*generator.Generator, error) {
	fs, err := storage.NewFS(cfg.Site.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return generator.New(fs, cfg.Site.AssetsDir, cfg.Site.OutputDir)
}

// Run starts the admin server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(cfg)
	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("site_path", cfg.Site.Path),
		slog.String("projects_file", cfg.Site.ProjectsFile),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	// Initialize SQLite tag index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Sweep assets no record can reference anymore.
	if removed, err := svc.CleanupOrphans(ctx); err != nil {
		logger.Warn("orphan cleanup failed", slog.String("error", err.Error()))
	} else if len(removed) > 0 {
		logger.Info("orphan cleanup", slog.Int("removed", len(removed)))
	}

	// Initial index build and site render.
	if col, err := svc.List(ctx); err != nil {
		logger.Warn("initial load failed", slog.String("error", err.Error()))
	} else {
		if err := db.Rebuild(col.Projects); err != nil {
			logger.Warn("initial index rebuild failed", slog.String("error", err.Error()))
		}
		if err := gen.Build(ctx, col); err != nil {
			logger.Warn("initial site build failed", slog.String("error", err.Error()))
		}
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Coalesced refresh requests from mutations and external file changes.
	refreshCh := make(chan struct{}, 1)
	requestRefresh := func() {
		select {
		case refreshCh <- struct{}{}:
		default:
		}
	}

	svc.SetNotify(func(kind, id string) {
		broker.PublishProjectEvent(kind, id)
		requestRefresh()
	})

	// Build API router.
	assetsPath := cfg.Site.AssetsPath()
	apiRouter := api.NewRouter(svc, db, cfg.Auth.AuthEnabled(), cfg.Auth.Token, http.HandlerFunc(broker.ServeHTTP), assetsPath)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Refresh loop: reload collection, rebuild tag index, re-render site.
	g.Go(func() error {
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-refreshCh:
				col, err := svc.List(gCtx)
				if err != nil {
					logger.Warn("refresh: load failed", slog.String("error", err.Error()))
					continue
				}
				if err := db.Rebuild(col.Projects); err != nil {
					logger.Warn("refresh: index rebuild failed", slog.String("error", err.Error()))
				}
				if err := gen.Build(gCtx, col); err != nil {
					logger.Warn("refresh: site build failed", slog.String("error", err.Error()))
				}
			}
		}
	})

	// Watch for external edits to the collection file or asset directory.
	g.Go(func() error {
		err := watch.Run(gCtx, cfg.Site.Path, cfg.Site.ProjectsFile, cfg.Site.AssetsDir, logger, func() {
			broker.Publish(sse.Event{Type: "site.updated", Data: map[string]string{}})
			requestRefresh()
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunBuild renders the static site once and exits.
func RunBuild(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(cfg)

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	col, err := svc.List(ctx)
	if err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	if err := gen.Build(ctx, col); err != nil {
		return fmt.Errorf("build site: %w", err)
	}
	logger.Info("Site built",
		slog.Int("projects", len(col.Projects)),
		slog.String("output", cfg.Site.OutputDir))
	return nil
}

// RunMCP serves the MCP tools over stdio. Logs go to stderr so stdout stays
// a clean protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	return mcpserver.New(svc).ServeStdio()
}
