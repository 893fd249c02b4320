// Package calendar mirrors bookings into external calendars. Mirroring is
// best effort: the booking store stays the source of truth.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"caresched/backend/internal/domain"
)

var ErrEventNotFound = errors.New("calendar event not found")

type Event struct {
	BookingID   uuid.UUID
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

func EventForBooking(b domain.Booking) Event {
	var desc strings.Builder
	fmt.Fprintf(&desc, "Patient ID: %s\n", b.ClientID)
	fmt.Fprintf(&desc, "Urgency: %d\n", b.Urgency)
	if b.Notes != "" {
		fmt.Fprintf(&desc, "Notes: %s\n", b.Notes)
	}
	return Event{
		BookingID:   b.ID,
		Summary:     "Appointment: " + b.AppointmentType,
		Description: strings.TrimRight(desc.String(), "\n"),
		Start:       b.StartTime.UTC(),
		End:         b.EndTime.UTC(),
	}
}

// Client is an external calendar backend.
type Client interface {
	CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, ev Event) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// Noop is used when no calendar backend is configured.
type Noop struct{}

func (Noop) CreateEvent(context.Context, string, Event) (string, error) { return "", nil }
func (Noop) UpdateEvent(context.Context, string, string, Event) error { return nil }
func (Noop) DeleteEvent(context.Context, string, string) error { return nil }

type SyncError struct {
	Op         string
	CalendarID string
	BookingID  uuid.UUID
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("calendar %s for booking %s on %q: %v", e.Op, e.BookingID, e.CalendarID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
