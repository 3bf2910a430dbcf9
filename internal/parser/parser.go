// Package parser turns task markdown files into validated task records.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/taskboard/internal/checksum"
	"github.com/starford/taskboard/internal/models"
)

const delim = "---"

var (
	dateRe    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	subtaskRe = regexp.MustCompile(`(?m)^[ \t]*- \[([ xX])\]`)
)

// Metadata is the raw key/value content of a task's metadata block.
type Metadata map[string]string

// Parse extracts and validates a task record from raw markdown content.
// Failures are returned as *ParseError.
func Parse(content, path string) (*models.Task, error) {
	meta, body, err := ParseMetadata(content)
	if err != nil {
		return nil, withPath(err, path)
	}

	task, err := fromMetadata(meta)
	if err != nil {
		return nil, withPath(err, path)
	}

	task.FilePath = path
	task.Content = body
	task.TotalSubtasks, task.CompletedSubtasks = countSubtasks(body)
	task.Checksum = checksum.Sum([]byte(content))
	return task, nil
}

// ParseMetadata splits content into its leading metadata block and body.
// The block must open on the very first line and be closed by a second
// marker line.
func ParseMetadata(content string) (Metadata, string, error) {
	lines := strings.SplitAfter(content, "\n")
	if len(lines) == 0 || !isDelim(lines[0]) {
		return nil, "", &ParseError{Kind: KindNoMetadata}
	}

	meta := make(Metadata)
	for i := 1; i < len(lines); i++ {
		if isDelim(lines[i]) {
			body := strings.Join(lines[i+1:], "")
			return meta, body, nil
		}
		key, value, ok := strings.Cut(lines[i], ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		meta[key] = strings.TrimSpace(value)
	}

	// No closing marker.
	return nil, "", &ParseError{Kind: KindNoMetadata}
}

func isDelim(line string) bool {
	return strings.TrimRight(line, " \t\r\n") == delim
}

// fromMetadata validates raw metadata and coerces it into a task record.
func fromMetadata(meta Metadata) (*models.Task, error) {
	name := strings.TrimSpace(meta["name"])
	if err := validation.Validate(name, validation.Required); err != nil {
		return nil, fieldError(KindMissingField, "name", err)
	}

	start := meta["start"]
	if err := validation.Validate(start, validation.Required); err != nil {
		return nil, fieldError(KindMissingField, "start", err)
	}
	if err := validation.Validate(start, validation.Match(dateRe)); err != nil {
		return nil, fieldError(KindInvalidFormat, "start", err)
	}

	end := meta["end"]
	if err := validation.Validate(end, validation.Match(dateRe)); err != nil {
		return nil, fieldError(KindInvalidFormat, "end", err)
	}

	priority := models.DefaultPriority
	if raw := meta["priority"]; raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fieldError(KindInvalidFormat, "priority", err)
		}
		if err := validation.Validate(p, validation.By(priorityInRange)); err != nil {
			return nil, fieldError(KindOutOfRange, "priority", err)
		}
		priority = p
	}

	if end != "" && start > end {
		return nil, &ParseError{Kind: KindInvalidRange, Field: "end", Err: errStartAfterEnd}
	}

	task := &models.Task{
		Name:     name,
		Start:    start,
		End:      end,
		Category: orDefault(meta["category"], models.DefaultCategory),
		Status:   orDefault(meta["status"], models.DefaultStatus),
		Priority: priority,
	}

	for k, v := range meta {
		if isKnownKey(k) {
			continue
		}
		if task.Extra == nil {
			task.Extra = make(map[string]string)
		}
		task.Extra[k] = v
	}
	return task, nil
}

func priorityInRange(value any) error {
	p, _ := value.(int)
	if p < 1 || p > 5 {
		return validation.NewError("validation_priority_range", "must be between 1 and 5")
	}
	return nil
}

func countSubtasks(body string) (total, completed int) {
	for _, m := range subtaskRe.FindAllStringSubmatch(body, -1) {
		total++
		if m[1] != " " {
			completed++
		}
	}
	return total, completed
}

func isKnownKey(k string) bool {
	switch k {
	case "name", "start", "end", "category", "status", "priority":
		return true
	}
	return false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
