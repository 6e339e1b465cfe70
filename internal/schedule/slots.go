package schedule

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Flexibility tags how movable a candidate slot is for its peer.
type Flexibility string

const (
	FlexibilityHigh   Flexibility = "high"
	FlexibilityMedium Flexibility = "medium"
	FlexibilityLow    Flexibility = "low"
)

// priority orders flexibility for sorting; higher sorts first.
func (f Flexibility) priority() int {
	switch f {
	case FlexibilityHigh:
		return 2
	case FlexibilityMedium:
		return 1
	default:
		return 0
	}
}

// Max returns the more flexible of two tags.
func (f Flexibility) Max(other Flexibility) Flexibility {
	if other.priority() > f.priority() {
		return other
	}
	return f
}

// Slot is a candidate time range with a flexibility tag. Slots are derived
// per request and never persisted.
type Slot struct {
	Start       time.Time
	End         time.Time
	Flexibility Flexibility
}

// Interval returns the slot's time range.
func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// slotStep is the spacing between generated slot starts within a free gap,
// giving the caller overlapping options rather than back-to-back blocks.
const slotStep = 30 * time.Minute

// preferenceWindow is how close a slot start must be to a preferred start
// time to count as matching it.
const preferenceWindow = 30 * time.Minute

// Candidates computes candidate slots of the given duration inside frame,
// excluding busy intervals. Slots starting within preferenceWindow of a
// preferred "HH:MM" start time are tagged high flexibility and sorted first;
// the rest are medium. An empty result is a valid outcome, not an error.
func Candidates(frame Interval, busy []Interval, duration time.Duration, preferredStarts []string, maxSlots int) []Slot {
	if duration <= 0 {
		return nil
	}

	sorted := make([]Interval, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	prefs := parsePreferredStarts(preferredStarts)

	var slots []Slot
	cursor := frame.Start
	addGap := func(gapStart, gapEnd time.Time) {
		for s := gapStart; !s.Add(duration).After(gapEnd); s = s.Add(slotStep) {
			slots = append(slots, Slot{
				Start:       s,
				End:         s.Add(duration),
				Flexibility: tagFlexibility(s, prefs),
			})
		}
	}

	for _, b := range sorted {
		if cursor.Before(b.Start) {
			gapEnd := b.Start
			if frame.End.Before(gapEnd) {
				gapEnd = frame.End
			}
			addGap(cursor, gapEnd)
		}
		if cursor.Before(b.End) {
			cursor = b.End
		}
	}
	if cursor.Before(frame.End) {
		addGap(cursor, frame.End)
	}

	sortSlots(slots)
	if maxSlots > 0 && len(slots) > maxSlots {
		slots = slots[:maxSlots]
	}
	return slots
}

// sortSlots orders by flexibility priority descending, then start ascending.
func sortSlots(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		pi, pj := slots[i].Flexibility.priority(), slots[j].Flexibility.priority()
		if pi != pj {
			return pi > pj
		}
		return slots[i].Start.Before(slots[j].Start)
	})
}

func tagFlexibility(start time.Time, prefs []int) Flexibility {
	startMinutes := start.Hour()*60 + start.Minute()
	window := int(preferenceWindow.Minutes())
	for _, p := range prefs {
		diff := startMinutes - p
		if diff < 0 {
			diff = -diff
		}
		if diff <= window {
			return FlexibilityHigh
		}
	}
	return FlexibilityMedium
}

// parsePreferredStarts converts "HH:MM" strings to minutes-of-day,
// skipping malformed entries.
func parsePreferredStarts(prefs []string) []int {
	out := make([]int, 0, len(prefs))
	for _, p := range prefs {
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 {
			continue
		}
		hour, err1 := strconv.Atoi(parts[0])
		minute, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			continue
		}
		out = append(out, hour*60+minute)
	}
	return out
}
