package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"github.com/uptrace/bun"
)

// TimeOfDay is a wall-clock time in minutes after midnight.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, Validationf("time of day %q must be HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 24 {
		return 0, Validationf("time of day %q has an invalid hour", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, Validationf("time of day %q has an invalid minute", s)
	}
	t := TimeOfDay(hour*60 + minute)
	if t > 24*60 {
		return 0, Validationf("time of day %q is past midnight", s)
	}
	return t, nil
}

func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) Hours() float64 {
	return float64(t) / 60
}

// On places t on the calendar date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), int(t)/60, int(t)%60, 0, 0, day.Location())
}

type WindowKind string

const (
	WindowRecurring WindowKind = "recurring"
	WindowOverride  WindowKind = "override"
)

// AvailabilityWindow is either a weekly rule (Weekday, ISO 1=Mon..7=Sun) or a
// dated override. An override without times closes the provider that date.
type AvailabilityWindow struct {
	bun.BaseModel `bun:"table:availability_windows"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	ProviderID  uuid.UUID  `bun:"provider_id,notnull,type:uuid"`
	Kind        WindowKind `bun:"kind,notnull"`
	Weekday     int16      `bun:"weekday"`
	Date        *time.Time `bun:"date,type:date"`
	StartMinute *TimeOfDay `bun:"start_minute"`
	EndMinute   *TimeOfDay `bun:"end_minute"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`
}

func (w *AvailabilityWindow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stamp(query, &w.ID, &w.CreatedAt, &w.UpdatedAt)
}

func (w AvailabilityWindow) Closed() bool {
	return w.StartMinute == nil || w.EndMinute == nil
}

func (w AvailabilityWindow) Validate() error {
	switch w.Kind {
	case WindowRecurring:
		if w.Weekday < 1 || w.Weekday > 7 {
			return Validationf("weekday %d must be between 1 and 7", w.Weekday)
		}
		if w.Closed() {
			return Validationf("recurring window needs start and end")
		}
	case WindowOverride:
		if w.Date == nil {
			return Validationf("override window needs a date")
		}
		if (w.StartMinute == nil) != (w.EndMinute == nil) {
			return Validationf("override window needs both start and end, or neither")
		}
	default:
		return Validationf("unknown window kind %q", w.Kind)
	}
	if !w.Closed() && *w.StartMinute >= *w.EndMinute {
		return Validationf("window start %s must be before end %s", w.StartMinute, w.EndMinute)
	}
	return nil
}

// OverridesDate reports whether w is an override for day's calendar date.
func (w AvailabilityWindow) OverridesDate(day time.Time) bool {
	if w.Kind != WindowOverride || w.Date == nil {
		return false
	}
	y, m, d := w.Date.Date()
	dy, dm, dd := day.Date()
	return y == dy && m == dm && d == dd
}

// OccurrenceOn expands a recurring rule for day's date. Occurrences are
// generated in day's location so wall-clock hours hold across DST changes.
func (w AvailabilityWindow) OccurrenceOn(day time.Time) (Interval, bool, error) {
	if w.Kind != WindowRecurring || w.Closed() {
		return Interval{}, false, nil
	}
	weekday, err := isoWeekday(w.Weekday)
	if err != nil {
		return Interval{}, false, err
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{weekday},
		Dtstart:   w.StartMinute.On(dayStart.AddDate(0, 0, -7)),
	})
	if err != nil {
		return Interval{}, false, err
	}
	nextDay := dayStart.AddDate(0, 0, 1)
	for _, occ := range rule.Between(dayStart, nextDay, true) {
		if occ.Before(nextDay) {
			return Interval{Start: occ, End: w.EndMinute.On(dayStart)}, true, nil
		}
	}
	return Interval{}, false, nil
}

// IntervalOn returns the override window placed on day. Closed overrides
// yield nothing.
func (w AvailabilityWindow) IntervalOn(day time.Time) (Interval, bool) {
	if w.Closed() {
		return Interval{}, false
	}
	return Interval{Start: w.StartMinute.On(day), End: w.EndMinute.On(day)}, true
}

func isoWeekday(wd int16) (rrule.Weekday, error) {
	switch wd {
	case 1:
		return rrule.MO, nil
	case 2:
		return rrule.TU, nil
	case 3:
		return rrule.WE, nil
	case 4:
		return rrule.TH, nil
	case 5:
		return rrule.FR, nil
	case 6:
		return rrule.SA, nil
	case 7:
		return rrule.SU, nil
	}
	return rrule.Weekday{}, Validationf("weekday %d must be between 1 and 7", wd)
}

// ISOWeekday maps time.Weekday to 1=Mon..7=Sun.
func ISOWeekday(d time.Weekday) int16 {
	if d == time.Sunday {
		return 7
	}
	return int16(d)
}
