package taskservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/taskboard/internal/apperr"
	"github.com/starford/taskboard/internal/minimap"
	"github.com/starford/taskboard/internal/search"
	"github.com/starford/taskboard/internal/storage"
	"github.com/starford/taskboard/internal/taskindex"
	"github.com/starford/taskboard/internal/tasklist"
	"github.com/starford/taskboard/internal/testutil"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type env struct {
	svc    *Service
	store  *storage.FS
	mirror *search.DB
}

func newEnv(t *testing.T) env {
	t.Helper()
	store := testutil.MemVault(t)
	idx := taskindex.New(store, "Tasks", taskindex.WithLogger(quietLogger))

	mirror, err := search.Open(search.MemoryDSN)
	if err != nil {
		t.Fatalf("search.Open: %v", err)
	}
	t.Cleanup(func() { mirror.Close() })

	svc, err := New(store, idx, mirror, WithLogger(quietLogger), WithCacheSize(16))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Close)
	return env{svc: svc, store: store, mirror: mirror}
}

func (e env) init(t *testing.T) {
	t.Helper()
	if _, err := e.svc.Index().Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.svc.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestCreateTask(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, err := e.svc.CreateTask(ctx, "Tasks/alpha/new.md", testutil.TaskContent("New", "2025-01-01", ""))
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Name != "New" || task.FilePath != "Tasks/alpha/new.md" {
		t.Errorf("task = %+v", task)
	}
	if !e.store.Exists("Tasks/alpha/new.md") {
		t.Error("file not written")
	}
	if results, _ := e.svc.Search(ctx, "New", 10); len(results) != 1 {
		t.Errorf("search results = %+v, want 1", results)
	}
}

func TestCreateTask_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	valid := testutil.TaskContent("T", "2025-01-01", "")
	testutil.WriteTask(t, e.store, "Tasks/taken.md", valid)

	tests := []struct {
		name    string
		path    string
		content string
		want    error
	}{
		{"outside root", "Inbox/x.md", valid, apperr.ErrOutsideRoot},
		{"templates folder", "Tasks/templates/x.md", valid, apperr.ErrOutsideRoot},
		{"not markdown", "Tasks/x.txt", valid, apperr.ErrInvalidTask},
		{"invalid content", "Tasks/bad.md", "no metadata", apperr.ErrInvalidTask},
		{"already exists", "Tasks/taken.md", valid, apperr.ErrAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.CreateTask(ctx, tt.path, tt.content)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if e.store.Exists("Tasks/bad.md") {
		t.Error("invalid task should not be written")
	}
}

func TestCreateTask_TraversalStaysInVault(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.CreateTask(context.Background(), "../Tasks/../../etc/x.md", testutil.TaskContent("T", "2025-01-01", ""))
	if !errors.Is(err, apperr.ErrOutsideRoot) {
		t.Errorf("err = %v, want ErrOutsideRoot", err)
	}
}

func TestGetTaskAndProjects(t *testing.T) {
	e := newEnv(t)
	testutil.WriteTask(t, e.store, "Tasks/alpha/a.md", testutil.TaskContent("A", "2025-01-01", ""))
	testutil.WriteTask(t, e.store, "Tasks/beta/b.md", testutil.TaskContent("B", "2025-01-01", ""))
	e.init(t)
	ctx := context.Background()

	if _, err := e.svc.GetTask(ctx, "Tasks/alpha/a.md"); err != nil {
		t.Errorf("GetTask: %v", err)
	}
	if _, err := e.svc.GetTask(ctx, "Tasks/missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if diff := cmp.Diff([]string{"alpha", "beta"}, e.svc.Projects(ctx)); diff != "" {
		t.Errorf("projects mismatch (-want +got):\n%s", diff)
	}
	if got := e.svc.ListTasks(ctx, "beta"); len(got) != 1 || got[0].Name != "B" {
		t.Errorf("ListTasks(beta) = %+v", got)
	}
}

func TestDeleteTask(t *testing.T) {
	e := newEnv(t)
	testutil.WriteTask(t, e.store, "Tasks/del.md", testutil.TaskContent("Del", "2025-01-01", ""))
	e.init(t)
	ctx := context.Background()

	if err := e.svc.DeleteTask(ctx, "Tasks/del.md"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if e.svc.Index().Size() != 0 {
		t.Error("task still indexed")
	}
	if n, _ := e.mirror.Len(); n != 0 {
		t.Errorf("mirror len = %d, want 0", n)
	}
	if err := e.svc.DeleteTask(ctx, "Tasks/del.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestMoveTask(t *testing.T) {
	e := newEnv(t)
	testutil.WriteTask(t, e.store, "Tasks/alpha/a.md", testutil.TaskContent("A", "2025-01-01", ""))
	testutil.WriteTask(t, e.store, "Tasks/alpha/b.md", testutil.TaskContent("B", "2025-01-01", ""))
	e.init(t)
	ctx := context.Background()

	task, err := e.svc.MoveTask(ctx, "Tasks/alpha/a.md", "Tasks/beta/a.md")
	if err != nil {
		t.Fatalf("MoveTask: %v", err)
	}
	if task.FilePath != "Tasks/beta/a.md" {
		t.Errorf("path = %q", task.FilePath)
	}
	if _, err := e.svc.GetTask(ctx, "Tasks/alpha/a.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("old path still indexed")
	}
	if cs, _ := e.mirror.Checksum("Tasks/alpha/a.md"); cs != "" {
		t.Error("old path still mirrored")
	}

	if _, err := e.svc.MoveTask(ctx, "Tasks/alpha/b.md", "Tasks/beta/a.md"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
	if _, err := e.svc.MoveTask(ctx, "Tasks/alpha/zzz.md", "Tasks/beta/z.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := e.svc.MoveTask(ctx, "Tasks/alpha/b.md", "Archive/b.md"); !errors.Is(err, apperr.ErrOutsideRoot) {
		t.Errorf("err = %v, want ErrOutsideRoot", err)
	}
}

func TestBoardAndGroupOrder(t *testing.T) {
	e := newEnv(t)
	testutil.WriteTask(t, e.store, "Tasks/a.md", testutil.TaskContent("A", "2025-01-01", "", "status: done"))
	testutil.WriteTask(t, e.store, "Tasks/b.md", testutil.TaskContent("B", "2025-01-01", "", "status: active"))
	e.init(t)
	ctx := context.Background()

	v := e.svc.Board(ctx, "", tasklist.GroupStatus)
	first := v.Version
	if len(v.Groups) != 2 || v.Groups[0].Label != "active" {
		t.Fatalf("groups = %+v", v.Groups)
	}

	v = e.svc.SetGroupOrder(ctx, []string{"done", "active"})
	if v.Version <= first {
		t.Errorf("version did not increase: %d <= %d", v.Version, first)
	}
	if v.Groups[0].Label != "done" {
		t.Errorf("manual order not applied: %+v", v.Groups)
	}
}

func TestMinimap_CachedPerGeneration(t *testing.T) {
	e := newEnv(t)
	testutil.WriteTask(t, e.store, "Tasks/a.md", testutil.TaskContent("A", "2025-01-03", ""))
	e.init(t)
	ctx := context.Background()

	q := MinimapQuery{Granularity: minimap.Day, From: "2025-01-01", To: "2025-01-07"}
	total, _ := minimap.Summary(e.svc.Minimap(ctx, q))
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}

	if _, err := e.svc.CreateTask(ctx, "Tasks/b.md", testutil.TaskContent("B", "2025-01-04", "")); err != nil {
		t.Fatal(err)
	}
	total, _ = minimap.Summary(e.svc.Minimap(ctx, q))
	if total != 2 {
		t.Errorf("total after create = %d, want 2 (stale cache?)", total)
	}
}

func TestMinimap_BadInputIsEmpty(t *testing.T) {
	e := newEnv(t)
	got := e.svc.Minimap(context.Background(), MinimapQuery{Granularity: minimap.Day, From: "2025-01-07", To: "2025-01-01"})
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty slice", got)
	}
}

func TestApply_SyncsMirror(t *testing.T) {
	e := newEnv(t)
	e.init(t)
	ctx := context.Background()
	idx := e.svc.Index()

	testutil.WriteTask(t, e.store, "Tasks/w.md", testutil.TaskContent("Watched", "2025-01-01", ""))
	idx.HandleCreate(ctx, "Tasks/w.md")
	e.svc.Apply(taskindex.Event{Kind: taskindex.EventCreated, Path: "Tasks/w.md"})
	if n, _ := e.mirror.Len(); n != 1 {
		t.Fatalf("mirror len = %d, want 1", n)
	}

	if err := e.store.Move("Tasks/w.md", "Tasks/v.md"); err != nil {
		t.Fatal(err)
	}
	idx.HandleRename(ctx, "Tasks/w.md", "Tasks/v.md")
	e.svc.Apply(taskindex.Event{Kind: taskindex.EventRenamed, Path: "Tasks/v.md", OldPath: "Tasks/w.md"})
	if cs, _ := e.mirror.Checksum("Tasks/w.md"); cs != "" {
		t.Error("old path still mirrored")
	}
	if cs, _ := e.mirror.Checksum("Tasks/v.md"); cs == "" {
		t.Error("new path not mirrored")
	}

	idx.HandleDelete("Tasks/v.md")
	e.svc.Apply(taskindex.Event{Kind: taskindex.EventDeleted, Path: "Tasks/v.md"})
	if n, _ := e.mirror.Len(); n != 0 {
		t.Errorf("mirror len = %d, want 0", n)
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(apperr.ErrOutsideRoot) || !IsValidation(apperr.ErrInvalidTask) {
		t.Error("expected validation errors")
	}
	if IsValidation(apperr.ErrNotFound) {
		t.Error("ErrNotFound is not a validation error")
	}
}
