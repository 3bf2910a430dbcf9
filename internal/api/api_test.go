package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/starford/taskboard/internal/minimap"
	"github.com/starford/taskboard/internal/search"
	"github.com/starford/taskboard/internal/storage"
	"github.com/starford/taskboard/internal/taskindex"
	"github.com/starford/taskboard/internal/tasklist"
	"github.com/starford/taskboard/internal/taskservice"
	"github.com/starford/taskboard/internal/testutil"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// testEnv sets up an in-memory vault, search mirror, service and router.
// An empty token means auth is disabled.
func testEnv(t *testing.T, token string) (*storage.FS, *taskservice.Service, http.Handler) {
	t.Helper()

	store := testutil.MemVault(t)
	idx := taskindex.New(store, "Tasks", taskindex.WithLogger(quietLogger))

	mirror, err := search.Open(search.MemoryDSN)
	if err != nil {
		t.Fatalf("search.Open: %v", err)
	}
	t.Cleanup(func() { mirror.Close() })

	svc, err := taskservice.New(store, idx, mirror, taskservice.WithLogger(quietLogger))
	if err != nil {
		t.Fatalf("taskservice.New: %v", err)
	}
	t.Cleanup(svc.Close)

	router := NewRouter(svc, RouterConfig{
		AuthEnabled:        token != "",
		Token:              token,
		DefaultGranularity: minimap.Day,
	})
	return store, svc, router
}

func initialize(t *testing.T, svc *taskservice.Service) {
	t.Helper()
	if _, err := svc.Index().Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndGetTask(t *testing.T) {
	_, _, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/tasks", CreateTaskRequest{
		Path:    "Tasks/alpha/hello.md",
		Content: testutil.TaskContent("Hello", "2025-01-03", "2025-01-05"),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/tasks/Tasks/alpha/hello.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decode[map[string]any](t, w)
	if got["name"] != "Hello" || got["end"] != "2025-01-05" {
		t.Errorf("task = %v", got)
	}

	w = do(t, router, http.MethodGet, "/tasks/Tasks%2Falpha%2Fhello.md", nil)
	if w.Code != http.StatusOK {
		t.Errorf("encoded path status = %d", w.Code)
	}
}

func TestCreateTask_Errors(t *testing.T) {
	store, _, router := testEnv(t, "")
	testutil.WriteTask(t, store, "Tasks/taken.md", testutil.TaskContent("T", "2025-01-01", ""))

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing fields", CreateTaskRequest{Path: "Tasks/x.md"}, http.StatusBadRequest},
		{"invalid content", CreateTaskRequest{Path: "Tasks/x.md", Content: "no metadata"}, http.StatusBadRequest},
		{"priority out of range", CreateTaskRequest{Path: "Tasks/x.md", Content: testutil.TaskContent("X", "2025-01-01", "", "priority: 9")}, http.StatusBadRequest},
		{"outside root", CreateTaskRequest{Path: "Inbox/x.md", Content: testutil.TaskContent("X", "2025-01-01", "")}, http.StatusBadRequest},
		{"duplicate", CreateTaskRequest{Path: "Tasks/taken.md", Content: testutil.TaskContent("X", "2025-01-01", "")}, http.StatusConflict},
		{"bad json", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/tasks", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestGetTask_NotFound(t *testing.T) {
	_, _, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/tasks/Tasks/missing.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeleteTask(t *testing.T) {
	store, svc, router := testEnv(t, "")
	testutil.WriteTask(t, store, "Tasks/del.md", testutil.TaskContent("Del", "2025-01-01", ""))
	initialize(t, svc)

	w := do(t, router, http.MethodDelete, "/tasks/Tasks/del.md", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodDelete, "/tasks/Tasks/del.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestMoveTask(t *testing.T) {
	store, svc, router := testEnv(t, "")
	testutil.WriteTask(t, store, "Tasks/alpha/a.md", testutil.TaskContent("A", "2025-01-01", ""))
	initialize(t, svc)

	w := do(t, router, http.MethodPost, "/tasks/move", MoveTaskRequest{From: "Tasks/alpha/a.md", To: "Tasks/beta/a.md"})
	if w.Code != http.StatusOK {
		t.Fatalf("move status = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/projects", nil)
	got := decode[ProjectListResponse](t, w)
	if diff := cmp.Diff([]string{"beta"}, got.Projects); diff != "" {
		t.Errorf("projects mismatch (-want +got):\n%s", diff)
	}
}

func TestListTasks_ProjectFilter(t *testing.T) {
	store, svc, router := testEnv(t, "")
	testutil.WriteTask(t, store, "Tasks/alpha/a.md", testutil.TaskContent("A", "2025-01-01", ""))
	testutil.WriteTask(t, store, "Tasks/beta/b.md", testutil.TaskContent("B", "2025-01-01", ""))
	testutil.WriteTask(t, store, "Tasks/templates/t.md", testutil.TaskContent("T", "2025-01-01", ""))
	initialize(t, svc)

	got := decode[TaskListResponse](t, do(t, router, http.MethodGet, "/tasks", nil))
	if got.Total != 2 {
		t.Errorf("total = %d, want 2", got.Total)
	}
	got = decode[TaskListResponse](t, do(t, router, http.MethodGet, "/tasks?project=alpha", nil))
	if got.Total != 1 || got.Tasks[0].Name != "A" {
		t.Errorf("alpha tasks = %+v", got.Tasks)
	}
}

func TestBoard(t *testing.T) {
	store, svc, router := testEnv(t, "")
	testutil.WriteTask(t, store, "Tasks/a.md", testutil.TaskContent("A", "2025-01-01", "", "priority: 3"))
	testutil.WriteTask(t, store, "Tasks/b.md", testutil.TaskContent("B", "2025-01-01", "", "priority: 1"))
	initialize(t, svc)

	w := do(t, router, http.MethodGet, "/board?group_by=priority", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	view := decode[tasklist.View](t, w)
	if len(view.Groups) != 2 || view.Groups[0].Label != "1" {
		t.Errorf("groups = %+v", view.Groups)
	}

	w = do(t, router, http.MethodPut, "/board/order", GroupOrderRequest{Labels: []string{"3", "1"}})
	if w.Code != http.StatusOK {
		t.Fatalf("order status = %d", w.Code)
	}
	next := decode[tasklist.View](t, w)
	if next.Version <= view.Version || next.Groups[0].Label != "3" {
		t.Errorf("view after order = %+v", next)
	}

	if w := do(t, router, http.MethodGet, "/board?group_by=owner", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown group_by status = %d, want 400", w.Code)
	}
}

func TestMinimapEndpoint(t *testing.T) {
	store, svc, router := testEnv(t, "")
	testutil.WriteTask(t, store, "Tasks/a.md", testutil.TaskContent("A", "2025-01-03", ""))
	initialize(t, svc)

	w := do(t, router, http.MethodGet, "/minimap?from=2025-01-01&to=2025-01-07", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[MinimapResponse](t, w)
	if got.Granularity != "day" || len(got.Buckets) != 7 || got.Total != 1 || got.Peak != 1 {
		t.Errorf("minimap = %+v", got)
	}
	if got.Buckets[2].Count != 1 {
		t.Errorf("2025-01-03 bucket count = %d, want 1", got.Buckets[2].Count)
	}

	w = do(t, router, http.MethodGet, "/minimap?granularity=week&from=2025-01-07&to=2025-01-01", nil)
	got = decode[MinimapResponse](t, w)
	if w.Code != http.StatusOK || len(got.Buckets) != 0 {
		t.Errorf("inverted range: status %d, buckets %d", w.Code, len(got.Buckets))
	}

	if w := do(t, router, http.MethodGet, "/minimap?granularity=year&from=2025-01-01&to=2025-01-07", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad granularity status = %d, want 400", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	store, svc, router := testEnv(t, "")
	testutil.WriteTask(t, store, "Tasks/a.md", testutil.TaskContent("Quarterly report", "2025-01-01", "")+"numbers go here\n")
	initialize(t, svc)

	w := do(t, router, http.MethodGet, "/search?q=numbers", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[SearchResponse](t, w)
	if len(got.Results) != 1 || got.Results[0].Path != "Tasks/a.md" {
		t.Errorf("results = %+v", got.Results)
	}

	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing q status = %d, want 400", w.Code)
	}
}

func TestAuth(t *testing.T) {
	_, _, router := testEnv(t, "secret")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret", http.StatusUnauthorized},
		{"valid", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	ready := false
	r := chi.NewRouter()
	MountHealth(r, func() bool { return ready })

	if w := do(t, r, http.MethodGet, "/health/live", nil); w.Code != http.StatusOK {
		t.Errorf("live status = %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/health/ready", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready before init = %d, want 503", w.Code)
	}
	ready = true
	if w := do(t, r, http.MethodGet, "/health/ready", nil); w.Code != http.StatusOK {
		t.Errorf("ready after init = %d, want 200", w.Code)
	}
}
