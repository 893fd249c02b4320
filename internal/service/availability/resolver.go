package availability

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"caresched/backend/internal/domain"
)

type windowSource interface {
	ListAvailability(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, error)
}

// BusinessHours is the fallback window for days without any rule.
type BusinessHours struct {
	Start domain.TimeOfDay
	End   domain.TimeOfDay
}

type Resolver struct {
	src      windowSource
	fallback BusinessHours
	loc      *time.Location
}

func NewResolver(src windowSource, fallback BusinessHours, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{src: src, fallback: fallback, loc: loc}
}

func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve returns the provider's open intervals on date. Overrides for the
// date replace recurring rules entirely; with no rule at all the business
// hours apply.
func (r *Resolver) Resolve(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Interval, error) {
	rules, err := r.src.ListAvailability(ctx, providerID)
	if err != nil {
		return nil, domain.Persistence("list availability", err)
	}
	return r.resolveRules(rules, date)
}

// ResolveRange resolves every date in [from, to) with one rule lookup.
func (r *Resolver) ResolveRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) (map[time.Time][]domain.Interval, error) {
	rules, err := r.src.ListAvailability(ctx, providerID)
	if err != nil {
		return nil, domain.Persistence("list availability", err)
	}
	out := make(map[time.Time][]domain.Interval)
	for day := r.Day(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		windows, err := r.resolveRules(rules, day)
		if err != nil {
			return nil, err
		}
		out[day] = windows
	}
	return out, nil
}

// Day truncates t to midnight of its calendar date in the resolver's zone.
func (r *Resolver) Day(t time.Time) time.Time {
	t = t.In(r.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.loc)
}

func (r *Resolver) resolveRules(rules []domain.AvailabilityWindow, date time.Time) ([]domain.Interval, error) {
	day := r.Day(date)

	var overrides []domain.Interval
	overridden := false
	for _, w := range rules {
		if !w.OverridesDate(day) {
			continue
		}
		overridden = true
		if iv, ok := w.IntervalOn(day); ok {
			overrides = append(overrides, iv)
		}
	}
	if overridden {
		return sortIntervals(overrides), nil
	}

	var recurring []domain.Interval
	for _, w := range rules {
		iv, ok, err := w.OccurrenceOn(day)
		if err != nil {
			return nil, err
		}
		if ok {
			recurring = append(recurring, iv)
		}
	}
	if len(recurring) > 0 {
		return sortIntervals(recurring), nil
	}

	if r.fallback.Start >= r.fallback.End {
		return nil, nil
	}
	return []domain.Interval{{Start: r.fallback.Start.On(day), End: r.fallback.End.On(day)}}, nil
}

func sortIntervals(ivs []domain.Interval) []domain.Interval {
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start.Before(ivs[j].Start) })
	return ivs
}
