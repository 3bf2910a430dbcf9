// Package tasklist derives the filtered, grouped task view consumed by
// boards and the minimap.
package tasklist

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/starford/taskboard/internal/models"
)

// Source supplies tasks for a project filter. *taskindex.Index satisfies it.
type Source interface {
	Tasks(projectFilter string) []models.Task
}

// GroupBy selects the task field that splits a view into groups.
type GroupBy string

const (
	GroupNone     GroupBy = "none"
	GroupStatus   GroupBy = "status"
	GroupCategory GroupBy = "category"
	GroupPriority GroupBy = "priority"
)

// ParseGroupBy maps a query value onto a GroupBy. Empty means GroupNone.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(s))); g {
	case "", GroupNone:
		return GroupNone, nil
	case GroupStatus, GroupCategory, GroupPriority:
		return g, nil
	}
	return "", fmt.Errorf("tasklist: unknown grouping %q", s)
}

func (g GroupBy) label(t models.Task) string {
	switch g {
	case GroupStatus:
		return t.Status
	case GroupCategory:
		return t.Category
	case GroupPriority:
		return strconv.Itoa(t.Priority)
	default:
		return ""
	}
}

// Group is one board column or row.
type Group struct {
	Label string        `json:"label"`
	Tasks []models.Task `json:"tasks"`
}

// View is one recomputation of the task list.
type View struct {
	Version uint64        `json:"version"`
	Project string        `json:"project"`
	GroupBy GroupBy       `json:"group_by"`
	Tasks   []models.Task `json:"tasks"`
	Groups  []Group       `json:"groups,omitempty"`
}

// Deriver recomputes views from a Source. It is safe for concurrent use.
type Deriver struct {
	src Source

	mu      sync.Mutex
	project string
	groupBy GroupBy
	order   []string
	version uint64
	current View
}

// Option configures a Deriver.
type Option func(*Deriver)

// WithProject sets the initial project filter.
func WithProject(project string) Option {
	return func(d *Deriver) { d.project = project }
}

// WithGroupBy sets the initial grouping.
func WithGroupBy(g GroupBy) Option {
	return func(d *Deriver) { d.groupBy = g }
}

func NewDeriver(src Source, opts ...Option) *Deriver {
	d := &Deriver{src: src, groupBy: GroupNone}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetProject changes the project filter. Call Recompute to apply it.
func (d *Deriver) SetProject(project string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.project = project
}

// SetGroupBy changes the grouping and forgets any manual group order.
func (d *Deriver) SetGroupBy(g GroupBy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if g != d.groupBy {
		d.order = nil
	}
	d.groupBy = g
}

// SetGroupOrder records a manual order of group labels. Labels missing from
// later views are dropped from the order on the next Recompute.
func (d *Deriver) SetGroupOrder(labels []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.order = append([]string(nil), labels...)
}

// Recompute rebuilds the view from the source and bumps the version.
func (d *Deriver) Recompute() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	tasks := d.src.Tasks(d.project)
	d.version++
	v := View{
		Version: d.version,
		Project: d.project,
		GroupBy: d.groupBy,
		Tasks:   tasks,
	}
	if d.groupBy != GroupNone {
		d.order = orderLabels(d.order, tasks, d.groupBy)
		v.Groups = group(tasks, d.groupBy, d.order)
	}
	d.current = v
	return v
}

// Current returns the most recent view without recomputing.
func (d *Deriver) Current() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// orderLabels keeps labels from prev that are still present, in their prior
// order, and appends newly seen labels sorted.
func orderLabels(prev []string, tasks []models.Task, g GroupBy) []string {
	present := make(map[string]struct{})
	for _, t := range tasks {
		present[g.label(t)] = struct{}{}
	}

	out := make([]string, 0, len(present))
	for _, l := range prev {
		if _, ok := present[l]; ok {
			out = append(out, l)
			delete(present, l)
		}
	}

	added := make([]string, 0, len(present))
	for l := range present {
		added = append(added, l)
	}
	sort.Slice(added, func(i, j int) bool { return lessLabel(g, added[i], added[j]) })
	return append(out, added...)
}

func lessLabel(g GroupBy, a, b string) bool {
	if g == GroupPriority {
		ai, aerr := strconv.Atoi(a)
		bi, berr := strconv.Atoi(b)
		if aerr == nil && berr == nil {
			return ai < bi
		}
	}
	return a < b
}

func group(tasks []models.Task, g GroupBy, order []string) []Group {
	byLabel := make(map[string][]models.Task, len(order))
	for _, t := range tasks {
		l := g.label(t)
		byLabel[l] = append(byLabel[l], t)
	}
	out := make([]Group, 0, len(order))
	for _, l := range order {
		out = append(out, Group{Label: l, Tasks: byLabel[l]})
	}
	return out
}
