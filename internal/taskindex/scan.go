package taskindex

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/taskboard/internal/models"
)

// Notice names a file that was left out of the index during a scan.
type Notice struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// Message returns the notice as user-facing text.
func (n Notice) Message() string {
	return n.Path + ": " + n.Err.Error()
}

// ScanReport summarises one Initialize pass.
type ScanReport struct {
	Indexed int
	Notices []Notice
}

// Initialize rebuilds the index from scratch by walking the tasks root.
// Unreadable or invalid files are reported as notices and skipped. A missing
// root yields an empty, initialized index. The only error returned is ctx's.
func (i *Index) Initialize(ctx context.Context) (ScanReport, error) {
	i.serial.Lock()
	defer i.serial.Unlock()

	var paths []string
	if i.store.Exists(i.root) {
		paths = i.collect(i.root)
	} else {
		i.logger.Warn("index: tasks root missing", slog.String("root", i.root))
	}

	type result struct {
		task *models.Task
		err  error
	}
	results := make([]result, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for n, p := range paths {
		g.Go(func() error {
			task, err := i.readTask(gCtx, p)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			results[n] = result{task: task, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ScanReport{}, err
	}

	fresh := make(map[string]models.Task, len(paths))
	var report ScanReport
	for n, r := range results {
		if r.err != nil {
			i.logger.Warn("index: file skipped",
				slog.String("path", paths[n]),
				slog.String("error", r.err.Error()))
			i.metrics.IncrementFailure(failureReason(r.err))
			report.Notices = append(report.Notices, Notice{Path: paths[n], Err: r.err})
			continue
		}
		fresh[paths[n]] = *r.task
	}
	report.Indexed = len(fresh)

	i.mu.Lock()
	i.tasks = fresh
	i.initialized = true
	i.generation++
	i.mu.Unlock()

	i.metrics.SetSize(len(fresh))
	i.logger.Info("index: initialized",
		slog.String("root", i.root),
		slog.Int("tasks", report.Indexed),
		slog.Int("skipped", len(report.Notices)))
	return report, nil
}

// collect walks folder depth-first and returns every markdown file path,
// skipping templates folders. Listing failures end that branch of the walk.
func (i *Index) collect(folder string) []string {
	entries, err := i.store.ListChildren(folder)
	if err != nil {
		i.logger.Warn("index: list failed", slog.String("folder", folder), slog.String("error", err.Error()))
		return nil
	}

	var out []string
	for _, e := range entries {
		switch {
		case e.IsFolder && e.Name == templatesDir:
			continue
		case e.IsFolder:
			out = append(out, i.collect(e.Path)...)
		case isMarkdown(e.Name):
			out = append(out, e.Path)
		}
	}
	return out
}
