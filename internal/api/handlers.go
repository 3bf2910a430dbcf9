package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/taskboard/internal/apperr"
	"github.com/starford/taskboard/internal/minimap"
	"github.com/starford/taskboard/internal/tasklist"
	"github.com/starford/taskboard/internal/taskservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc                *taskservice.Service
	defaultGranularity minimap.Granularity
}

// NewHandler creates a new Handler. g is used when a minimap request names
// no granularity.
func NewHandler(svc *taskservice.Service, g minimap.Granularity) *Handler {
	if g == 0 {
		g = minimap.Week
	}
	return &Handler{svc: svc, defaultGranularity: g}
}

// taskPath extracts the task path from the URL (everything after /tasks/).
// Encoded slashes (Tasks%2Fa.md) are accepted.
func taskPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, op, path string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("task already exists"))
	case taskservice.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListTasks handles GET /api/tasks.
//
//	@Summary		List indexed tasks
//	@Tags			tasks
//	@Produce		json
//	@Param			project	query		string	false	"Project folder, or \"all\""
//	@Success		200		{object}	TaskListResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := h.svc.ListTasks(r.Context(), r.URL.Query().Get("project"))
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks, Total: len(tasks)})
}

// GetTask handles GET /api/tasks/*.
//
//	@Summary		Get a single task by path
//	@Tags			tasks
//	@Produce		json
//	@Param			path	path		string	true	"Task path"
//	@Success		200		{object}	models.Task
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{path} [get]
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	path := taskPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	task, err := h.svc.GetTask(r.Context(), path)
	if err != nil {
		writeServiceError(w, "get task", path, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CreateTask handles POST /api/tasks.
//
//	@Summary		Create a task file
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTaskRequest	true	"Task to create"
//	@Success		201		{object}	models.Task
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [post]
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	task, err := h.svc.CreateTask(r.Context(), req.Path, req.Content)
	if err != nil {
		writeServiceError(w, "create task", req.Path, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// DeleteTask handles DELETE /api/tasks/*.
//
//	@Summary		Delete a task file
//	@Tags			tasks
//	@Param			path	path	string	true	"Task path"
//	@Success		204		"Task deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{path} [delete]
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	path := taskPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteTask(r.Context(), path); err != nil {
		writeServiceError(w, "delete task", path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveTask handles POST /api/tasks/move.
//
//	@Summary		Move a task file within the tasks root
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MoveTaskRequest	true	"Source and destination"
//	@Success		200		{object}	models.Task
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/move [post]
func (h *Handler) MoveTask(w http.ResponseWriter, r *http.Request) {
	var req MoveTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("from and to are required"))
		return
	}
	task, err := h.svc.MoveTask(r.Context(), req.From, req.To)
	if err != nil {
		writeServiceError(w, "move task", req.From, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ListProjects handles GET /api/projects.
//
//	@Summary		List project folders that contain tasks
//	@Tags			tasks
//	@Produce		json
//	@Success		200	{object}	ProjectListResponse
//	@Security		BearerAuth
//	@Router			/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProjectListResponse{Projects: h.svc.Projects(r.Context())})
}

// Board handles GET /api/board.
//
//	@Summary		Derived board view
//	@Tags			board
//	@Produce		json
//	@Param			project		query		string	false	"Project folder"
//	@Param			group_by	query		string	false	"Grouping"	Enums(none, status, category, priority)
//	@Success		200			{object}	tasklist.View
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/board [get]
func (h *Handler) Board(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g, err := tasklist.ParseGroupBy(q.Get("group_by"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Board(r.Context(), q.Get("project"), g))
}

// SetGroupOrder handles PUT /api/board/order.
//
//	@Summary		Set a manual board group order
//	@Tags			board
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GroupOrderRequest	true	"Group labels in display order"
//	@Success		200		{object}	tasklist.View
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/board/order [put]
func (h *Handler) SetGroupOrder(w http.ResponseWriter, r *http.Request) {
	var req GroupOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.SetGroupOrder(r.Context(), req.Labels))
}

// Minimap handles GET /api/minimap.
//
// Malformed or inverted dates produce an empty bucket list, not an error.
//
//	@Summary		Time-bucketed task counts
//	@Tags			minimap
//	@Produce		json
//	@Param			granularity	query		string	false	"Bucket unit"	Enums(day, week, month)
//	@Param			from		query		string	true	"First date (YYYY-MM-DD)"
//	@Param			to			query		string	true	"Last date (YYYY-MM-DD)"
//	@Param			clamp_from	query		string	false	"Visible range start, defaults to from"
//	@Param			clamp_to	query		string	false	"Visible range end, defaults to to"
//	@Param			project		query		string	false	"Project folder"
//	@Success		200			{object}	MinimapResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/minimap [get]
func (h *Handler) Minimap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g := h.defaultGranularity
	if raw := q.Get("granularity"); raw != "" {
		parsed, err := minimap.ParseGranularity(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		g = parsed
	}

	buckets := h.svc.Minimap(r.Context(), taskservice.MinimapQuery{
		Project:     q.Get("project"),
		Granularity: g,
		From:        q.Get("from"),
		To:          q.Get("to"),
		ClampFrom:   q.Get("clamp_from"),
		ClampTo:     q.Get("clamp_to"),
	})
	total, peak := minimap.Summary(buckets)
	writeJSON(w, http.StatusOK, MinimapResponse{
		Granularity: g.String(),
		Buckets:     buckets,
		Total:       total,
		Peak:        peak,
	})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across tasks
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
