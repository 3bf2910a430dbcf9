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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/taskboard/internal/api"
	"github.com/starford/taskboard/internal/mcpserver"
	"github.com/starford/taskboard/internal/minimap"
	"github.com/starford/taskboard/internal/sse"
	"github.com/starford/taskboard/internal/taskindex"
	"github.com/starford/taskboard/internal/taskservice"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("tasks_root", cfg.Vault.TasksRoot),
		slog.String("search_path", cfg.Search.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := newCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(c.svc, api.RouterConfig{
		AuthEnabled:        cfg.Auth.AuthEnabled(),
		Token:              cfg.Auth.Token,
		Events:             broker,
		DefaultGranularity: cfg.Minimap.Granularity(),
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health and metrics are unauthenticated.
	api.MountHealth(r, c.idx.IsInitialized)
	r.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Initial scan, then keep the index live from file events.
	g.Go(func() error {
		report, err := c.scan(gCtx)
		if err != nil {
			return nil // cancelled during startup
		}
		broker.PublishNotices(report.Notices)

		err = taskindex.Watch(gCtx, c.idx, cfg.Vault.Path, logger, func(ev taskindex.Event) {
			c.svc.Apply(ev)
			broker.PublishTaskEvent(ev)
		})
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

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

		// Unblocks the watcher goroutine when shutdown came from a signal.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to the configured log
// output, which must not be stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	c, err := newCore(app.config, logger)
	if err != nil {
		return err
	}
	defer c.close()

	if _, err := c.scan(ctx); err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		err := taskindex.Watch(watchCtx, c.idx, app.config.Vault.Path, logger, c.svc.Apply)
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	srv := mcpserver.New(c.svc, app.version, app.config.Minimap.Granularity())
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// Scan builds the index once and returns its report.
func Scan(ctx context.Context, opts ...Option) (taskindex.ScanReport, error) {
	app, err := newApplication(opts)
	if err != nil {
		return taskindex.ScanReport{}, err
	}
	c, err := newCore(app.config, app.newLogger())
	if err != nil {
		return taskindex.ScanReport{}, err
	}
	defer c.close()
	return c.scan(ctx)
}

// Minimap builds the index once and aggregates it for q. A zero granularity
// uses the configured default.
func Minimap(ctx context.Context, q taskservice.MinimapQuery, opts ...Option) ([]minimap.Bucket, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	c, err := newCore(app.config, app.newLogger())
	if err != nil {
		return nil, err
	}
	defer c.close()

	if _, err := c.idx.Initialize(ctx); err != nil {
		return nil, err
	}
	if q.Granularity == 0 {
		q.Granularity = app.config.Minimap.Granularity()
	}
	return c.svc.Minimap(ctx, q), nil
}
