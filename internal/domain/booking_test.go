package domain

import (
	"errors"
	"testing"
	"time"
)

func TestBookingTransitions(t *testing.T) {
	all := []BookingStatus{StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow}
	for _, from := range all {
		for _, to := range all {
			want := from == StatusScheduled && to != StatusScheduled
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
	if StatusScheduled.Terminal() {
		t.Fatalf("scheduled must not be terminal")
	}
	for _, s := range []BookingStatus{StatusCompleted, StatusCancelled, StatusNoShow} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}

func TestParseBookingStatus(t *testing.T) {
	got, err := ParseBookingStatus(" No_Show ")
	if err != nil || got != StatusNoShow {
		t.Fatalf("ParseBookingStatus = %q, %v", got, err)
	}
	_, err = ParseBookingStatus("rescheduled")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestAppointmentTypes(t *testing.T) {
	types := DefaultAppointmentTypes()
	d, err := types.Duration("consultation")
	if err != nil || d != 45*time.Minute {
		t.Fatalf("consultation = %v, %v", d, err)
	}
	if _, err := types.Duration("surgery"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	names := types.Names()
	if len(names) != 5 || names[0] != "consultation" {
		t.Fatalf("names = %v", names)
	}
}

func TestPersistenceWrapsOnce(t *testing.T) {
	base := errors.New("boom")
	err := Persistence("get booking", Persistence("select", base))
	if !errors.Is(err, base) {
		t.Fatalf("lost cause")
	}
	if err.Error() != "select: boom" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if Persistence("noop", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}
