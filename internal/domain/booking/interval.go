package booking

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End). The end instant is not
// included, so back-to-back bookings sharing a boundary never collide.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals intersect. Every
// conflict check in the system goes through this predicate.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Hours returns the interval length in fractional hours.
func (i Interval) Hours() float64 {
	return i.Duration().Hours()
}

// FreeGaps returns the maximal free sub-intervals of bounds not covered by
// any occupied interval, in chronological order, keeping only gaps of at
// least minDuration. Occupied intervals may overlap each other and extend
// past the bounds.
func FreeGaps(bounds Interval, occupied []Interval, minDuration time.Duration) []Interval {
	// Clamp to bounds and drop everything outside.
	clamped := make([]Interval, 0, len(occupied))
	for _, o := range occupied {
		if !o.Overlaps(bounds) {
			continue
		}
		start, end := o.Start, o.End
		if start.Before(bounds.Start) {
			start = bounds.Start
		}
		if end.After(bounds.End) {
			end = bounds.End
		}
		clamped = append(clamped, Interval{Start: start, End: end})
	}

	sort.Slice(clamped, func(a, b int) bool {
		return clamped[a].Start.Before(clamped[b].Start)
	})

	gaps := make([]Interval, 0)
	cursor := bounds.Start
	for _, o := range clamped {
		if o.Start.After(cursor) {
			gap := Interval{Start: cursor, End: o.Start}
			if gap.Duration() >= minDuration {
				gaps = append(gaps, gap)
			}
		}
		if o.End.After(cursor) {
			cursor = o.End
		}
	}
	if bounds.End.After(cursor) {
		gap := Interval{Start: cursor, End: bounds.End}
		if gap.Duration() >= minDuration {
			gaps = append(gaps, gap)
		}
	}

	return gaps
}
