package domain

import (
	"math"
	"time"
)

const (
	minComponent           = 0.1
	maxComponent           = 1.0
	DefaultFullDayCapacity = 10
)

type Weights struct {
	Load       float64
	Preference float64
	Urgency    float64
}

func DefaultWeights() Weights {
	return Weights{Load: 0.3, Preference: 0.2, Urgency: 0.5}
}

func (w Weights) Validate() error {
	if w.Load < 0 || w.Preference < 0 || w.Urgency < 0 {
		return Validationf("score weights must not be negative")
	}
	if sum := w.Load + w.Preference + w.Urgency; math.Abs(sum-1) > 1e-9 {
		return Validationf("score weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

type ScoreBreakdown struct {
	Load       float64
	Preference float64
	Urgency    float64
}

type Scorer struct {
	Weights         Weights
	FullDayCapacity int
}

// Score rates a slot start. bookingsThatDay counts the provider's blocking
// bookings on the slot's date; preferred is optional.
func (s Scorer) Score(slotStart time.Time, bookingsThatDay, urgency int, preferred *TimeOfDay, today time.Time) (float64, ScoreBreakdown) {
	capacity := s.FullDayCapacity
	if capacity <= 0 {
		capacity = DefaultFullDayCapacity
	}

	b := ScoreBreakdown{
		Load:       clampComponent(1 - float64(bookingsThatDay)/float64(capacity)),
		Preference: 0.5,
		Urgency:    urgencyComponent(urgency, daysBetween(today, slotStart)),
	}
	if preferred != nil {
		slotHour := float64(slotStart.Hour()) + float64(slotStart.Minute())/60
		b.Preference = clampComponent(1 - math.Abs(slotHour-preferred.Hours())/8)
	}

	total := s.Weights.Load*b.Load + s.Weights.Preference*b.Preference + s.Weights.Urgency*b.Urgency
	return total, b
}

func urgencyComponent(urgency, daysAhead int) float64 {
	if daysAhead < 0 {
		return clampComponent(0)
	}
	if urgency >= 4 {
		return clampComponent(1 - float64(min(daysAhead, 7))/7)
	}
	return clampComponent(0.8 - float64(min(daysAhead, 14))/20)
}

// daysBetween counts calendar days from from's date to to's date, both read
// in to's location.
func daysBetween(from, to time.Time) int {
	from = from.In(to.Location())
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func clampComponent(v float64) float64 {
	return math.Max(minComponent, math.Min(maxComponent, v))
}
