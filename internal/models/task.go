// Package models defines the domain types for taskboard.
package models

// Defaults applied by the parser when a metadata key is absent.
const (
	DefaultCategory = "default"
	DefaultStatus   = "planned"
	DefaultPriority = 5
)

// Task represents one parsed and validated task file.
type Task struct {
	Name              string            `json:"name"`
	Start             string            `json:"start"`
	End               string            `json:"end,omitempty"`
	Category          string            `json:"category"`
	Status            string            `json:"status"`
	Priority          int               `json:"priority"`
	FilePath          string            `json:"file_path"`
	Content           string            `json:"content"`
	TotalSubtasks     int               `json:"total_subtasks"`
	CompletedSubtasks int               `json:"completed_subtasks"`
	Extra             map[string]string `json:"extra,omitempty"`
	Checksum          string            `json:"checksum"`
}

// EffectiveEnd returns End, or Start for single-day tasks.
func (t Task) EffectiveEnd() string {
	if t.End == "" {
		return t.Start
	}
	return t.End
}

// Progress returns the completed subtask ratio in [0,1], or 0 without subtasks.
func (t Task) Progress() float64 {
	if t.TotalSubtasks == 0 {
		return 0
	}
	return float64(t.CompletedSubtasks) / float64(t.TotalSubtasks)
}
