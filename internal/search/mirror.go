package search

import "github.com/starford/taskboard/internal/models"

// Mirror is the search surface consumed by the HTTP and MCP layers.
type Mirror interface {
	Reload(tasks []models.Task) error
	Upsert(t models.Task) error
	Delete(path string) error
	Search(query string, limit int) ([]Result, error)
	Close() error
}

var _ Mirror = (*DB)(nil)
