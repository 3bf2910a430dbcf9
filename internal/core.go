package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/taskboard/internal/search"
	"github.com/starford/taskboard/internal/storage"
	"github.com/starford/taskboard/internal/taskindex"
	"github.com/starford/taskboard/internal/taskservice"
)

// core is the component graph shared by every command.
type core struct {
	cfg      *Config
	logger   *slog.Logger
	registry *prometheus.Registry
	store    *storage.FS
	idx      *taskindex.Index
	mirror   *search.DB
	svc      *taskservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// newCore wires storage, index, search mirror and service. The caller must
// call close.
func newCore(cfg *Config, logger *slog.Logger) (*core, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewOSFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	idx := taskindex.New(store, cfg.Vault.TasksRoot,
		taskindex.WithLogger(logger),
		taskindex.WithMetrics(registry),
	)

	mirror, err := search.Open(cfg.Search.Path)
	if err != nil {
		return nil, fmt.Errorf("init search: %w", err)
	}

	svc, err := taskservice.New(store, idx, mirror,
		taskservice.WithLogger(logger),
		taskservice.WithCacheSize(cfg.Minimap.CacheSize),
	)
	if err != nil {
		mirror.Close()
		return nil, err
	}

	return &core{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		store:    store,
		idx:      idx,
		mirror:   mirror,
		svc:      svc,
	}, nil
}

// scan runs the initial index build and mirrors the result into search.
func (c *core) scan(ctx context.Context) (taskindex.ScanReport, error) {
	report, err := c.idx.Initialize(ctx)
	if err != nil {
		return report, err
	}
	if err := c.svc.Reload(ctx); err != nil {
		c.logger.Warn("search reload failed", slog.String("error", err.Error()))
	}
	return report, nil
}

func (c *core) close() {
	c.svc.Close()
	if err := c.mirror.Close(); err != nil {
		c.logger.Warn("search close failed", slog.String("error", err.Error()))
	}
}
