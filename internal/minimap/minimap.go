// Package minimap aggregates tasks into time buckets for the board overview.
//
// All calendar arithmetic is done in UTC. Bad input never produces an error:
// callers always receive a renderable, possibly empty, bucket slice.
package minimap

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/taskboard/internal/models"
)

// MaxBuckets caps bucket generation.
const MaxBuckets = 10000

const dateLayout = "2006-01-02"

// Granularity is the time unit of one bucket.
type Granularity int

const (
	Day Granularity = iota + 1
	Week
	Month
)

func (g Granularity) String() string {
	switch g {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	default:
		return "unknown"
	}
}

// ParseGranularity accepts "day", "week" or "month" (case-insensitive).
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day":
		return Day, nil
	case "week":
		return Week, nil
	case "month":
		return Month, nil
	}
	return 0, fmt.Errorf("minimap: unknown granularity %q", s)
}

func (g Granularity) valid() bool {
	return g >= Day && g <= Month
}

// Range is an inclusive span of calendar dates.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

// Bucket is one unit of the minimap.
type Bucket struct {
	// Timestamp is the midpoint of the unit clipped to the clamp range.
	Timestamp time.Time `json:"timestamp"`
	UnitStart time.Time `json:"unit_start"`
	Count     int       `json:"count"`
}

// Aggregate counts, for each unit of g between buckets.Start and buckets.End,
// the tasks whose [start, end] interval overlaps that unit. Tasks entirely
// outside clamp are ignored, and clamp also positions each bucket's
// representative timestamp.
//
// Zero dates, an unknown granularity, or buckets.Start after buckets.End
// yield an empty slice.
func Aggregate(tasks []models.Task, g Granularity, buckets, clamp Range) []Bucket {
	if !g.valid() || !buckets.valid() || !clamp.valid() || buckets.Start.After(buckets.End) {
		return []Bucket{}
	}

	units := unitStarts(g, unitStart(g, buckets.Start), unitStart(g, buckets.End))

	clampStart := startOfDay(clamp.Start)
	clampEnd := endOfDay(clamp.End)

	spans := make([]span, 0, len(tasks))
	for _, t := range tasks {
		s, ok := taskSpan(t)
		if !ok {
			continue
		}
		if s.end.Before(clampStart) || s.start.After(clampEnd) {
			continue
		}
		spans = append(spans, s)
	}

	out := make([]Bucket, 0, len(units))
	for _, start := range units {
		end := unitEnd(g, start)
		count := 0
		for _, s := range spans {
			if !s.start.After(end) && !s.end.Before(start) {
				count++
			}
		}
		out = append(out, Bucket{
			Timestamp: representative(start, end, clampStart, clampEnd),
			UnitStart: start,
			Count:     count,
		})
	}
	return out
}

// AggregateDates is Aggregate over YYYY-MM-DD strings. Any unparsable date
// yields an empty slice.
func AggregateDates(tasks []models.Task, g Granularity, bucketStart, bucketEnd, clampStart, clampEnd string) []Bucket {
	var dates [4]time.Time
	for i, s := range []string{bucketStart, bucketEnd, clampStart, clampEnd} {
		d, ok := parseDate(s)
		if !ok {
			return []Bucket{}
		}
		dates[i] = d
	}
	return Aggregate(tasks, g, Range{dates[0], dates[1]}, Range{dates[2], dates[3]})
}

// Summary returns the total of all bucket counts and the largest single count.
func Summary(buckets []Bucket) (total, peak int) {
	for _, b := range buckets {
		total += b.Count
		if b.Count > peak {
			peak = b.Count
		}
	}
	return total, peak
}

type span struct {
	start, end time.Time
}

// taskSpan returns the task's interval from the start of its first day to the
// start of its last day; overlap tests against unit boundaries only need day
// precision.
func taskSpan(t models.Task) (span, bool) {
	start, ok := parseDate(t.Start)
	if !ok {
		return span{}, false
	}
	end := start
	if e, ok := parseDate(t.End); ok {
		end = e
	}
	return span{start: start, end: end}, true
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// unitStarts lists unit starts from first to last inclusive. It stops early if
// a step fails to advance or MaxBuckets is reached.
func unitStarts(g Granularity, first, last time.Time) []time.Time {
	var out []time.Time
	for cur := first; !cur.After(last) && len(out) < MaxBuckets; {
		out = append(out, cur)
		next := step(g, cur)
		if !next.After(cur) {
			break
		}
		cur = next
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// unitStart normalizes t down to the start of its unit. Weeks start on Sunday.
func unitStart(g Granularity, t time.Time) time.Time {
	d := startOfDay(t)
	switch g {
	case Week:
		return d.AddDate(0, 0, -int(d.Weekday()))
	case Month:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}

func step(g Granularity, start time.Time) time.Time {
	switch g {
	case Week:
		return start.AddDate(0, 0, 7)
	case Month:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// unitEnd is the last millisecond of the unit beginning at start.
func unitEnd(g Granularity, start time.Time) time.Time {
	return step(g, start).Add(-time.Millisecond)
}

// representative returns the midpoint of [start, end] ∩ [clampStart, clampEnd],
// or of the full unit when the two do not intersect.
func representative(start, end, clampStart, clampEnd time.Time) time.Time {
	lo, hi := start, end
	if clampStart.After(lo) {
		lo = clampStart
	}
	if clampEnd.Before(hi) {
		hi = clampEnd
	}
	if lo.After(hi) {
		lo, hi = start, end
	}
	return lo.Add(hi.Sub(lo) / 2)
}
