package domain

import (
	"time"

	"github.com/google/uuid"
)

type CandidateSlot struct {
	Start        time.Time
	End          time.Time
	ProviderID   uuid.UUID
	ProviderName string
	Score        float64
	Breakdown    ScoreBreakdown
}

// Enumerate walks each window in step increments and keeps every start whose
// [t, t+duration) fits the window and clears all booked intervals by buffer.
func Enumerate(windows []Interval, duration time.Duration, booked []Interval, buffer, step time.Duration) []Interval {
	if duration <= 0 {
		return nil
	}
	if step <= 0 {
		step = duration
	}

	var out []Interval
	for _, w := range windows {
		for t := w.Start; !t.Add(duration).After(w.End); t = t.Add(step) {
			candidate := Interval{Start: t, End: t.Add(duration)}
			if !overlapsAny(candidate, booked, buffer) {
				out = append(out, candidate)
			}
		}
	}
	return out
}

func overlapsAny(candidate Interval, booked []Interval, buffer time.Duration) bool {
	for _, b := range booked {
		if BufferedOverlap(candidate, b, buffer) {
			return true
		}
	}
	return false
}
