// Package taskindex keeps an in-memory, path-keyed index of parsed task
// records in sync with vault file events.
package taskindex

import (
	"context"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/taskboard/internal/models"
	"github.com/starford/taskboard/internal/parser"
	"github.com/starford/taskboard/internal/storage"
)

// AllProjects is the project filter that selects every task.
const AllProjects = "all"

const templatesDir = "templates"

// Index maps vault-relative file paths to task records.
//
// Handlers and Initialize are serialized through one mutex, so events for
// the same path apply strictly in delivery order. The map has its own
// RWMutex: readers never wait on a file read in progress.
type Index struct {
	store storage.Provider
	root  string

	logger      *slog.Logger
	metrics     *metricsProvider
	concurrency int

	serial sync.Mutex

	mu          sync.RWMutex
	tasks       map[string]models.Task
	initialized bool
	generation  uint64
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger used for per-file notices.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) {
		i.logger = logger
	}
}

// WithMetrics registers index metrics on registry.
func WithMetrics(registry *prometheus.Registry) Option {
	return func(i *Index) {
		i.metrics = newMetricsProvider(registry)
	}
}

// WithReadConcurrency bounds parallel file reads during Initialize.
func WithReadConcurrency(n int) Option {
	return func(i *Index) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// New creates an uninitialized index over the tasks folder root.
func New(store storage.Provider, root string, opts ...Option) *Index {
	idx := &Index{
		store:       store,
		root:        strings.Trim(path.Clean("/"+root), "/"),
		logger:      slog.Default(),
		concurrency: 8,
		tasks:       make(map[string]models.Task),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Root returns the configured tasks folder.
func (i *Index) Root() string { return i.root }

// Relevant reports whether p is strictly inside the root and not inside a
// templates folder.
func (i *Index) Relevant(p string) bool {
	prefix := i.root + "/"
	if i.root == "" {
		prefix = ""
	}
	if !strings.HasPrefix(p, prefix) || len(p) == len(prefix) {
		return false
	}
	for _, seg := range strings.Split(p[len(prefix):], "/") {
		if seg == templatesDir {
			return false
		}
	}
	return true
}

func isMarkdown(p string) bool {
	return strings.EqualFold(path.Ext(p), ".md")
}

// Tasks returns the indexed tasks sorted by path. An empty filter or
// AllProjects returns every task; any other value keeps tasks under
// root/filter/.
func (i *Index) Tasks(projectFilter string) []models.Task {
	prefix := ""
	if projectFilter != "" && projectFilter != AllProjects {
		prefix = path.Join(i.root, projectFilter) + "/"
	}

	i.mu.RLock()
	out := make([]models.Task, 0, len(i.tasks))
	for p, t := range i.tasks {
		if strings.HasPrefix(p, prefix) {
			out = append(out, t)
		}
	}
	i.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool { return out[a].FilePath < out[b].FilePath })
	return out
}

// Task returns the record stored for path.
func (i *Index) Task(p string) (models.Task, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	t, ok := i.tasks[p]
	return t, ok
}

// Projects returns the distinct first-level folders below the root that
// hold at least one task.
func (i *Index) Projects() []string {
	prefix := i.root + "/"
	seen := make(map[string]struct{})

	i.mu.RLock()
	for p := range i.tasks {
		rest := strings.TrimPrefix(p, prefix)
		if project, _, ok := strings.Cut(rest, "/"); ok {
			seen[project] = struct{}{}
		}
	}
	i.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// pathsAt returns p itself when it is tracked, otherwise every tracked
// path inside folder p.
func (i *Index) pathsAt(p string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if _, ok := i.tasks[p]; ok {
		return []string{p}
	}
	prefix := p + "/"
	var out []string
	for k := range i.tasks {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Size returns the number of indexed tasks.
func (i *Index) Size() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.tasks)
}

// IsInitialized reports whether Initialize has completed since the last Clear.
func (i *Index) IsInitialized() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.initialized
}

// Generation increases every time the task set changes.
func (i *Index) Generation() uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.generation
}

// Clear empties the index and returns it to the uninitialized state.
func (i *Index) Clear() {
	i.serial.Lock()
	defer i.serial.Unlock()

	i.mu.Lock()
	i.tasks = make(map[string]models.Task)
	i.initialized = false
	i.generation++
	i.mu.Unlock()
	i.metrics.SetSize(0)
}

// HandleCreate indexes a newly created file. It reports whether the index changed.
func (i *Index) HandleCreate(ctx context.Context, p string) bool {
	return i.upsertEvent(ctx, "create", p)
}

// HandleModify re-parses a modified file. It reports whether the index changed.
func (i *Index) HandleModify(ctx context.Context, p string) bool {
	return i.upsertEvent(ctx, "modify", p)
}

func (i *Index) upsertEvent(ctx context.Context, kind, p string) bool {
	i.serial.Lock()
	defer i.serial.Unlock()

	if !i.Relevant(p) || !isMarkdown(p) {
		i.metrics.IncrementEvent(kind, resultIgnored)
		return false
	}
	changed := i.load(ctx, p, p)
	i.metrics.IncrementEvent(kind, changedResult(changed))
	return changed
}

// HandleDelete drops a deleted file. It reports whether an entry was removed.
func (i *Index) HandleDelete(p string) bool {
	i.serial.Lock()
	defer i.serial.Unlock()

	if !i.Relevant(p) {
		i.metrics.IncrementEvent("delete", resultIgnored)
		return false
	}
	removed := i.remove(p)
	if removed {
		i.logger.Debug("index: removed", slog.String("path", p))
	}
	i.metrics.IncrementEvent("delete", changedResult(removed))
	return removed
}

// HandleRename moves an entry from oldPath to newPath, re-parsing the file at
// its new location. It returns true when either path is relevant, which
// covers files moving into or out of the tasks root.
func (i *Index) HandleRename(ctx context.Context, oldPath, newPath string) bool {
	i.serial.Lock()
	defer i.serial.Unlock()

	oldRelevant := i.Relevant(oldPath)
	newRelevant := i.Relevant(newPath)

	if oldRelevant {
		i.remove(oldPath)
	}
	if newRelevant && isMarkdown(newPath) {
		i.load(ctx, newPath, oldPath)
	}

	relevant := oldRelevant || newRelevant
	if relevant {
		i.logger.Debug("index: renamed", slog.String("from", oldPath), slog.String("to", newPath))
		i.metrics.IncrementEvent("rename", resultChanged)
	} else {
		i.metrics.IncrementEvent("rename", resultIgnored)
	}
	return relevant
}

// load reads and parses p and stores the result. Any failure removes a stale
// entry for p. from is only used for logging.
func (i *Index) load(ctx context.Context, p, from string) bool {
	task, err := i.readTask(ctx, p)
	if err != nil {
		i.logger.Warn("index: file skipped",
			slog.String("path", p),
			slog.String("from", from),
			slog.String("error", err.Error()))
		i.metrics.IncrementFailure(failureReason(err))
		return i.remove(p)
	}

	i.mu.Lock()
	i.tasks[p] = *task
	i.generation++
	size := len(i.tasks)
	i.mu.Unlock()

	i.metrics.SetSize(size)
	i.logger.Debug("index: upserted", slog.String("path", p))
	return true
}

func (i *Index) readTask(ctx context.Context, p string) (*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := i.store.Read(p)
	if err != nil {
		return nil, err
	}
	return parser.Parse(string(data), p)
}

func (i *Index) remove(p string) bool {
	i.mu.Lock()
	_, ok := i.tasks[p]
	if ok {
		delete(i.tasks, p)
		i.generation++
	}
	size := len(i.tasks)
	i.mu.Unlock()

	if ok {
		i.metrics.SetSize(size)
	}
	return ok
}
