// Package schedule computes availability: it parses timeframes, subtracts
// busy intervals, generates candidate slots tagged with flexibility, and
// intersects two peers' candidate sets. Everything here is pure computation;
// slots are derived per request and never persisted.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the wire format for datetimes: ISO 8601 without zone.
// Both peers exchange all datetimes in this format.
const TimeLayout = "2006-01-02T15:04:05"

// DateLayout is the wire format for bare dates.
const DateLayout = "2006-01-02"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// String renders the interval as an ISO 8601 range ("start/end").
func (iv Interval) String() string {
	return iv.Start.Format(TimeLayout) + "/" + iv.End.Format(TimeLayout)
}

// ParseInterval parses an ISO 8601 range string ("start/end").
func ParseInterval(s string) (Interval, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return Interval{}, fmt.Errorf("interval %q is not a start/end range", s)
	}
	start, err := ParseTime(parts[0])
	if err != nil {
		return Interval{}, fmt.Errorf("invalid interval start: %w", err)
	}
	end, err := ParseTime(parts[1])
	if err != nil {
		return Interval{}, fmt.Errorf("invalid interval end: %w", err)
	}
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("interval %q has start >= end", s)
	}
	return Interval{Start: start, End: end}, nil
}

// ParseTime parses a wire datetime, accepting a trailing "Z" for callers
// that append one.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "Z")
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse datetime %q", s)
	}
	return t, nil
}

// ParseBusySlots parses a profile's busy ranges, skipping malformed entries.
func ParseBusySlots(slots []string) []Interval {
	parsed := make([]Interval, 0, len(slots))
	for _, s := range slots {
		iv, err := ParseInterval(s)
		if err != nil {
			continue
		}
		parsed = append(parsed, iv)
	}
	return parsed
}

// ParseTimeframe resolves a requested timeframe into a concrete interval.
// Accepted forms: an ISO 8601 range, a single date or datetime (expanded to
// the whole day), and the relative phrases "this weekend", "next week" and
// "tomorrow" resolved against ref.
func ParseTimeframe(timeframe string, ref time.Time) (Interval, error) {
	if strings.Contains(timeframe, "/") && strings.Contains(timeframe, "T") {
		if iv, err := ParseInterval(timeframe); err == nil {
			return iv, nil
		}
	}

	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())

	switch strings.ToLower(strings.TrimSpace(timeframe)) {
	case "this weekend":
		sat := day.AddDate(0, 0, daysUntilSaturday(day))
		return Interval{Start: sat, End: endOfDay(sat.AddDate(0, 0, 1))}, nil
	case "next week":
		mon := day.AddDate(0, 0, daysUntilNextMonday(day))
		return Interval{Start: mon, End: endOfDay(mon.AddDate(0, 0, 6))}, nil
	case "tomorrow":
		tomorrow := day.AddDate(0, 0, 1)
		return Interval{Start: tomorrow, End: endOfDay(tomorrow)}, nil
	}

	if t, err := ParseTime(timeframe); err == nil {
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		return Interval{Start: start, End: endOfDay(start)}, nil
	}

	return Interval{}, fmt.Errorf("unable to parse timeframe %q", timeframe)
}

// daysUntilSaturday returns days from day to the coming Saturday, rolling a
// full week forward when day is already past Saturday.
func daysUntilSaturday(day time.Time) int {
	d := (int(time.Saturday) - int(day.Weekday()) + 7) % 7
	if d == 0 && day.Weekday() != time.Saturday {
		d = 7
	}
	return d
}

// daysUntilNextMonday always lands on the following week's Monday.
func daysUntilNextMonday(day time.Time) int {
	d := (int(time.Monday) - int(day.Weekday()) + 7) % 7
	if d == 0 {
		d = 7
	}
	return d
}

func endOfDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())
}
