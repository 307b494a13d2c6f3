package scheduling

import "time"

// Interval is a half-open time range [Start, End) occupied by a booking.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval builds the interval occupied by a booking of the given start
// and duration.
func NewInterval(start time.Time, duration time.Duration) Interval {
	return Interval{Start: start, End: start.Add(duration)}
}

// Overlaps reports whether two half-open intervals intersect. Back-to-back
// intervals (one ending exactly when the other starts) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// OverlapsAny reports whether the interval intersects any of the given
// intervals.
func (i Interval) OverlapsAny(intervals []Interval) bool {
	for _, other := range intervals {
		if i.Overlaps(other) {
			return true
		}
	}
	return false
}
