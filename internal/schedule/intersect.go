package schedule

import "time"

// Intersect computes the mutual availability of two candidate sets: the
// pairwise interval intersections that still fit the requested duration.
// The flexibility of an overlap is the more flexible of its two sources, so
// high on either side wins ties. The result is sorted by (flexibility
// priority, start) and is the same regardless of argument order. An empty
// result means no mutual slot exists and is a valid terminal outcome.
func Intersect(a, b []Slot, duration time.Duration) []Slot {
	type key struct {
		start, end int64
	}
	best := make(map[key]Slot)

	for _, sa := range a {
		for _, sb := range b {
			start := sa.Start
			if sb.Start.After(start) {
				start = sb.Start
			}
			end := sa.End
			if sb.End.Before(end) {
				end = sb.End
			}
			if !start.Before(end) {
				continue
			}
			if duration > 0 && end.Sub(start) < duration {
				continue
			}

			overlap := Slot{
				Start:       start,
				End:         end,
				Flexibility: sa.Flexibility.Max(sb.Flexibility),
			}
			k := key{start: start.Unix(), end: end.Unix()}
			if existing, ok := best[k]; !ok || overlap.Flexibility.priority() > existing.Flexibility.priority() {
				best[k] = overlap
			}
		}
	}

	out := make([]Slot, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sortSlots(out)
	return out
}
