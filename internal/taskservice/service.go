// Package taskservice coordinates storage, the task index, the search mirror
// and the derived views behind the HTTP and MCP surfaces.
package taskservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/maypok86/otter"

	"github.com/starford/taskboard/internal/apperr"
	"github.com/starford/taskboard/internal/minimap"
	"github.com/starford/taskboard/internal/models"
	"github.com/starford/taskboard/internal/parser"
	"github.com/starford/taskboard/internal/search"
	"github.com/starford/taskboard/internal/storage"
	"github.com/starford/taskboard/internal/taskindex"
	"github.com/starford/taskboard/internal/tasklist"
)

// DefaultCacheSize is the minimap cache capacity used when none is configured.
const DefaultCacheSize = 256

// MinimapQuery selects one minimap rendering. Dates are YYYY-MM-DD; empty
// clamp bounds default to From and To.
type MinimapQuery struct {
	Project     string
	Granularity minimap.Granularity
	From        string
	To          string
	ClampFrom   string
	ClampTo     string
}

func (q MinimapQuery) normalized() MinimapQuery {
	if q.ClampFrom == "" {
		q.ClampFrom = q.From
	}
	if q.ClampTo == "" {
		q.ClampTo = q.To
	}
	return q
}

type minimapKey struct {
	generation uint64
	query      MinimapQuery
}

// Service is safe for concurrent use.
type Service struct {
	store   storage.Provider
	idx     *taskindex.Index
	mirror  search.Mirror
	logger  *slog.Logger
	minimap otter.Cache[minimapKey, []minimap.Bucket]

	boardMu sync.Mutex
	deriver *tasklist.Deriver
}

// Option configures a Service.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	cacheSize int
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCacheSize sets the minimap cache capacity.
func WithCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

// New creates a service. mirror may be nil, in which case search is disabled.
func New(store storage.Provider, idx *taskindex.Index, mirror search.Mirror, opts ...Option) (*Service, error) {
	o := options{logger: slog.Default(), cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	cache, err := otter.MustBuilder[minimapKey, []minimap.Bucket](o.cacheSize).Build()
	if err != nil {
		return nil, fmt.Errorf("taskservice: minimap cache: %w", err)
	}

	return &Service{
		store:   store,
		idx:     idx,
		mirror:  mirror,
		logger:  o.logger,
		minimap: cache,
		deriver: tasklist.NewDeriver(idx),
	}, nil
}

// Close releases the minimap cache.
func (s *Service) Close() {
	s.minimap.Close()
}

// Index returns the underlying task index.
func (s *Service) Index() *taskindex.Index { return s.idx }

// cleanTaskPath normalises a caller-supplied path and checks it names a
// markdown file inside the tasks root.
func (s *Service) cleanTaskPath(p string) (string, error) {
	p = strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(p)), "/")
	if !s.idx.Relevant(p) {
		return "", fmt.Errorf("%w: %s", apperr.ErrOutsideRoot, p)
	}
	if !strings.EqualFold(path.Ext(p), ".md") {
		return "", fmt.Errorf("%w: %s is not a markdown file", apperr.ErrInvalidTask, p)
	}
	return p, nil
}

// ListTasks returns indexed tasks for project ("" or "all" for every task).
func (s *Service) ListTasks(_ context.Context, project string) []models.Task {
	return nonNilSlice(s.idx.Tasks(project))
}

// GetTask returns the indexed task at p.
func (s *Service) GetTask(_ context.Context, p string) (models.Task, error) {
	t, ok := s.idx.Task(strings.TrimPrefix(path.Clean("/"+p), "/"))
	if !ok {
		return models.Task{}, apperr.ErrNotFound
	}
	return t, nil
}

// Projects lists folders below the tasks root that contain tasks.
func (s *Service) Projects(_ context.Context) []string {
	return nonNilSlice(s.idx.Projects())
}

// CreateTask validates content, writes a new task file and indexes it.
func (s *Service) CreateTask(ctx context.Context, p, content string) (models.Task, error) {
	p, err := s.cleanTaskPath(p)
	if err != nil {
		return models.Task{}, err
	}
	if _, err := parser.Parse(content, p); err != nil {
		return models.Task{}, fmt.Errorf("%w: %w", apperr.ErrInvalidTask, err)
	}
	if s.store.Exists(p) {
		return models.Task{}, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(p, []byte(content)); err != nil {
		return models.Task{}, err
	}

	s.idx.HandleCreate(ctx, p)
	t, ok := s.idx.Task(p)
	if !ok {
		return models.Task{}, fmt.Errorf("taskservice: %s written but not indexed", p)
	}
	s.mirrorUpsert(t)
	s.logger.Info("task created", slog.String("path", p))
	return t, nil
}

// DeleteTask removes a task file and drops it from the index.
func (s *Service) DeleteTask(_ context.Context, p string) error {
	p, err := s.cleanTaskPath(p)
	if err != nil {
		return err
	}
	if !s.store.Exists(p) {
		s.idx.HandleDelete(p)
		return apperr.ErrNotFound
	}
	if err := s.store.Delete(p); err != nil {
		return err
	}
	s.idx.HandleDelete(p)
	s.mirrorDelete(p)
	s.logger.Info("task deleted", slog.String("path", p))
	return nil
}

// MoveTask renames a task file within the tasks root.
func (s *Service) MoveTask(ctx context.Context, from, to string) (models.Task, error) {
	from, err := s.cleanTaskPath(from)
	if err != nil {
		return models.Task{}, err
	}
	to, err = s.cleanTaskPath(to)
	if err != nil {
		return models.Task{}, err
	}
	if !s.store.Exists(from) {
		return models.Task{}, apperr.ErrNotFound
	}
	if s.store.Exists(to) {
		return models.Task{}, apperr.ErrAlreadyExists
	}
	if err := s.store.Move(from, to); err != nil {
		return models.Task{}, err
	}

	s.idx.HandleRename(ctx, from, to)
	s.mirrorDelete(from)
	t, ok := s.idx.Task(to)
	if !ok {
		// The file moved but no longer parses; it is reported like any other
		// invalid task.
		return models.Task{}, fmt.Errorf("%w: %s", apperr.ErrInvalidTask, to)
	}
	s.mirrorUpsert(t)
	s.logger.Info("task moved", slog.String("from", from), slog.String("to", to))
	return t, nil
}

// Board recomputes the derived view for project grouped by g.
func (s *Service) Board(_ context.Context, project string, g tasklist.GroupBy) tasklist.View {
	s.boardMu.Lock()
	defer s.boardMu.Unlock()
	s.deriver.SetProject(project)
	s.deriver.SetGroupBy(g)
	v := s.deriver.Recompute()
	v.Tasks = nonNilSlice(v.Tasks)
	return v
}

// SetGroupOrder stores a manual board group order and returns the
// recomputed view.
func (s *Service) SetGroupOrder(_ context.Context, labels []string) tasklist.View {
	s.boardMu.Lock()
	defer s.boardMu.Unlock()
	s.deriver.SetGroupOrder(labels)
	v := s.deriver.Recompute()
	v.Tasks = nonNilSlice(v.Tasks)
	return v
}

// Minimap aggregates the project's tasks. Results are cached per index
// generation, so any index change invalidates them.
func (s *Service) Minimap(_ context.Context, q MinimapQuery) []minimap.Bucket {
	q = q.normalized()
	key := minimapKey{generation: s.idx.Generation(), query: q}
	if buckets, ok := s.minimap.Get(key); ok {
		return buckets
	}
	buckets := minimap.AggregateDates(s.idx.Tasks(q.Project), q.Granularity, q.From, q.To, q.ClampFrom, q.ClampTo)
	s.minimap.Set(key, buckets)
	return buckets
}

// Search queries the search mirror.
func (s *Service) Search(_ context.Context, query string, limit int) ([]search.Result, error) {
	if s.mirror == nil {
		return []search.Result{}, nil
	}
	return s.mirror.Search(query, limit)
}

// Reload rebuilds the search mirror from the index.
func (s *Service) Reload(_ context.Context) error {
	if s.mirror == nil {
		return nil
	}
	return s.mirror.Reload(s.idx.Tasks(taskindex.AllProjects))
}

// Apply brings the search mirror in line with a watcher event that the index
// has already processed.
func (s *Service) Apply(ev taskindex.Event) {
	if ev.OldPath != "" && ev.OldPath != ev.Path {
		s.mirrorDelete(ev.OldPath)
	}
	if t, ok := s.idx.Task(ev.Path); ok {
		s.mirrorUpsert(t)
		return
	}
	s.mirrorDelete(ev.Path)
}

func (s *Service) mirrorUpsert(t models.Task) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Upsert(t); err != nil {
		s.logger.Warn("search mirror upsert failed", slog.String("path", t.FilePath), slog.String("error", err.Error()))
	}
}

func (s *Service) mirrorDelete(p string) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Delete(p); err != nil {
		s.logger.Warn("search mirror delete failed", slog.String("path", p), slog.String("error", err.Error()))
	}
}

// IsValidation reports whether err stems from caller input rather than I/O.
func IsValidation(err error) bool {
	return errors.Is(err, apperr.ErrInvalidTask) || errors.Is(err, apperr.ErrOutsideRoot)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
