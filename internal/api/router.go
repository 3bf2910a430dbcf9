package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/taskboard/internal/minimap"
	"github.com/starford/taskboard/internal/taskservice"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events             http.Handler
	DefaultGranularity minimap.Granularity
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *taskservice.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc, cfg.DefaultGranularity)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Tasks.
	r.Get("/tasks", h.ListTasks)
	r.Post("/tasks", h.CreateTask)
	r.Post("/tasks/move", h.MoveTask)
	r.Get("/tasks/*", h.GetTask)
	r.Delete("/tasks/*", h.DeleteTask)

	r.Get("/projects", h.ListProjects)

	// Derived views.
	r.Get("/board", h.Board)
	r.Put("/board/order", h.SetGroupOrder)
	r.Get("/minimap", h.Minimap)

	r.Get("/search", h.Search)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
