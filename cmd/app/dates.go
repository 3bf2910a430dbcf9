package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const dateLayout = "2006-01-02"

var dateFormats = []string{
	dateLayout,
	"2006/01/02",
	time.RFC3339,
}

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseDate accepts a calendar date or a natural-language expression such
// as "next friday", relative to now, and returns it as YYYY-MM-DD.
func parseDate(w *when.Parser, s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty date")
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.Format(dateLayout), nil
		}
	}
	if strings.EqualFold(s, "today") {
		return now.Format(dateLayout), nil
	}
	result, err := w.Parse(s, now)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", s, err)
	}
	if result == nil {
		return "", fmt.Errorf("unrecognised date %q", s)
	}
	return result.Time.Format(dateLayout), nil
}
