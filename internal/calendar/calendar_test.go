package calendar

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"caresched/backend/internal/domain"
)

type fakeClient struct {
	createFn func(ctx context.Context, calendarID string, ev Event) (string, error)
	updateFn func(ctx context.Context, calendarID, eventID string, ev Event) error
	deleteFn func(ctx context.Context, calendarID, eventID string) error
}

func (f *fakeClient) CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error) {
	if f.createFn == nil {
		panic("CreateEvent not configured")
	}
	return f.createFn(ctx, calendarID, ev)
}

func (f *fakeClient) UpdateEvent(ctx context.Context, calendarID, eventID string, ev Event) error {
	if f.updateFn == nil {
		panic("UpdateEvent not configured")
	}
	return f.updateFn(ctx, calendarID, eventID, ev)
}

func (f *fakeClient) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if f.deleteFn == nil {
		panic("DeleteEvent not configured")
	}
	return f.deleteFn(ctx, calendarID, eventID)
}

func testBooking() domain.Booking {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return domain.Booking{
		ID:              uuid.MustParse("00000000-0000-0000-0000-000000000301"),
		ClientID:        uuid.MustParse("00000000-0000-0000-0000-000000000302"),
		StartTime:       start,
		EndTime:         start.Add(30 * time.Minute),
		AppointmentType: "follow_up",
		Urgency:         4,
		Notes:           "bring results",
	}
}

func TestEventForBooking(t *testing.T) {
	ev := EventForBooking(testBooking())
	if ev.Summary != "Appointment: follow_up" {
		t.Fatalf("summary = %q", ev.Summary)
	}
	for _, want := range []string{"Patient ID: 00000000-0000-0000-0000-000000000302", "Urgency: 4", "Notes: bring results"} {
		if !strings.Contains(ev.Description, want) {
			t.Fatalf("description %q missing %q", ev.Description, want)
		}
	}
}

func TestMirror_SkipsProvidersWithoutCalendar(t *testing.T) {
	m := NewMirror(&fakeClient{}, time.Second, slog.Default())
	if id, ok := m.Create(context.Background(), domain.Provider{}, testBooking()); ok || id != "" {
		t.Fatalf("Create = %q, %v; want skipped", id, ok)
	}
	b := testBooking()
	if m.Update(context.Background(), domain.Provider{CalendarID: "c"}, b) {
		t.Fatalf("Update without event id must be skipped")
	}
}

func TestMirror_SwallowsFailures(t *testing.T) {
	boom := errors.New("boom")
	m := NewMirror(&fakeClient{
		createFn: func(ctx context.Context, calendarID string, ev Event) (string, error) { return "", boom },
		updateFn: func(ctx context.Context, calendarID, eventID string, ev Event) error { return boom },
		deleteFn: func(ctx context.Context, calendarID, eventID string) error { return boom },
	}, time.Second, slog.Default())

	p := domain.Provider{CalendarID: "cal"}
	b := testBooking()
	b.ExternalEventID = "evt"
	if _, ok := m.Create(context.Background(), p, b); ok {
		t.Fatalf("Create reported success")
	}
	if m.Update(context.Background(), p, b) {
		t.Fatalf("Update reported success")
	}
	if m.Delete(context.Background(), p, b) {
		t.Fatalf("Delete reported success")
	}
}

func TestMirror_DetachesFromCallerCancellation(t *testing.T) {
	var sawDeadline bool
	m := NewMirror(&fakeClient{
		createFn: func(ctx context.Context, calendarID string, ev Event) (string, error) {
			_, sawDeadline = ctx.Deadline()
			return "evt-1", ctx.Err()
		},
	}, 50*time.Millisecond, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	id, ok := m.Create(ctx, domain.Provider{CalendarID: "cal"}, testBooking())
	if !ok || id != "evt-1" {
		t.Fatalf("Create = %q, %v; want evt-1", id, ok)
	}
	if !sawDeadline {
		t.Fatalf("sync context has no deadline")
	}
}

func TestICSDir_CreateUpdateDelete(t *testing.T) {
	dir := t.TempDir()
	d, err := NewICSDir(dir)
	if err != nil {
		t.Fatalf("NewICSDir error: %v", err)
	}
	ctx := context.Background()
	b := testBooking()

	id, err := d.CreateEvent(ctx, "dr/okafor", EventForBooking(b))
	if err != nil {
		t.Fatalf("CreateEvent error: %v", err)
	}

	body, err := os.ReadFile(d.path("dr/okafor"))
	if err != nil {
		t.Fatalf("read calendar: %v", err)
	}
	if !strings.Contains(string(body), "Appointment: follow_up") {
		t.Fatalf("calendar missing summary:\n%s", body)
	}

	b.AppointmentType = "consultation"
	if err := d.UpdateEvent(ctx, "dr/okafor", id, EventForBooking(b)); err != nil {
		t.Fatalf("UpdateEvent error: %v", err)
	}
	body, _ = os.ReadFile(d.path("dr/okafor"))
	if !strings.Contains(string(body), "Appointment: consultation") || strings.Contains(string(body), "follow_up") {
		t.Fatalf("update not applied:\n%s", body)
	}

	if err := d.DeleteEvent(ctx, "dr/okafor", id); err != nil {
		t.Fatalf("DeleteEvent error: %v", err)
	}
	if err := d.DeleteEvent(ctx, "dr/okafor", id); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("second delete err = %v, want %v", err, ErrEventNotFound)
	}
	if err := d.UpdateEvent(ctx, "dr/okafor", id, EventForBooking(b)); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("update after delete err = %v, want %v", err, ErrEventNotFound)
	}
}
