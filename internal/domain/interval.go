package domain

import "time"

// Interval is a half-open [Start, End) span.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// BufferedOverlap reports whether candidate collides with booked once booked
// is widened by buffer on both sides. The candidate itself is never widened.
func BufferedOverlap(candidate, booked Interval, buffer time.Duration) bool {
	return candidate.Start.Before(booked.End.Add(buffer)) &&
		candidate.End.After(booked.Start.Add(-buffer))
}
