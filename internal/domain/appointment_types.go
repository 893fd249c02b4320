package domain

import (
	"sort"
	"time"
)

// AppointmentTypes maps a type name to its fixed duration.
type AppointmentTypes map[string]time.Duration

func DefaultAppointmentTypes() AppointmentTypes {
	return AppointmentTypes{
		"routine_checkup": 30 * time.Minute,
		"follow_up":       15 * time.Minute,
		"consultation":    45 * time.Minute,
		"procedure":       60 * time.Minute,
		"emergency":       30 * time.Minute,
	}
}

func (t AppointmentTypes) Duration(name string) (time.Duration, error) {
	d, ok := t[name]
	if !ok || d <= 0 {
		return 0, Validationf("unknown appointment type %q", name)
	}
	return d, nil
}

func (t AppointmentTypes) Names() []string {
	out := make([]string, 0, len(t))
	for name := range t {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

const (
	MinUrgency     = 1
	MaxUrgency     = 5
	DefaultUrgency = 3
)

func ValidateUrgency(u int) error {
	if u < MinUrgency || u > MaxUrgency {
		return Validationf("urgency %d must be between %d and %d", u, MinUrgency, MaxUrgency)
	}
	return nil
}
