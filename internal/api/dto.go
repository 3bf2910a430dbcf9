package api

import (
	"github.com/starford/taskboard/internal/minimap"
	"github.com/starford/taskboard/internal/models"
	"github.com/starford/taskboard/internal/search"
)

// CreateTaskRequest is the request body for creating a task file.
type CreateTaskRequest struct {
	Path    string `json:"path" example:"Tasks/alpha/write-report.md" validate:"required"`
	Content string `json:"content" example:"---\nname: Write report\nstart: 2025-01-03\n---\n" validate:"required"`
}

// MoveTaskRequest is the request body for moving a task file.
type MoveTaskRequest struct {
	From string `json:"from" example:"Tasks/alpha/a.md" validate:"required"`
	To   string `json:"to" example:"Tasks/beta/a.md" validate:"required"`
}

// GroupOrderRequest sets a manual board group order.
type GroupOrderRequest struct {
	Labels []string `json:"labels" example:"active,planned,done" validate:"required"`
}

// TaskListResponse wraps task listings.
type TaskListResponse struct {
	Tasks []models.Task `json:"tasks" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// ProjectListResponse wraps project listings.
type ProjectListResponse struct {
	Projects []string `json:"projects" example:"alpha,beta" validate:"required"`
}

// MinimapResponse is the aggregated minimap for a date range.
type MinimapResponse struct {
	Granularity string           `json:"granularity" example:"week" validate:"required"`
	Buckets     []minimap.Bucket `json:"buckets" validate:"required"`
	Total       int              `json:"total" example:"12"`
	Peak        int              `json:"peak" example:"4"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []search.Result `json:"results" validate:"required"`
}
