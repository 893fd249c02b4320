package calendar

import (
	"context"
	"log/slog"
	"time"

	"caresched/backend/internal/domain"
)

const defaultSyncTimeout = 5 * time.Second

// Mirror wraps a Client so failures are logged and swallowed. Each call runs
// under its own timeout and survives cancellation of the caller's context.
type Mirror struct {
	client  Client
	timeout time.Duration
	log     *slog.Logger
}

func NewMirror(client Client, timeout time.Duration, log *slog.Logger) *Mirror {
	if client == nil {
		client = Noop{}
	}
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Mirror{
		client:  client,
		timeout: timeout,
		log:     log.With(slog.String("component", "calendar.mirror")),
	}
}

// Create returns the external event id, or false when nothing was mirrored.
func (m *Mirror) Create(ctx context.Context, provider domain.Provider, b domain.Booking) (string, bool) {
	if provider.CalendarID == "" {
		return "", false
	}
	ctx, cancel := m.syncContext(ctx)
	defer cancel()

	id, err := m.client.CreateEvent(ctx, provider.CalendarID, EventForBooking(b))
	if err != nil {
		m.report(&SyncError{Op: "create", CalendarID: provider.CalendarID, BookingID: b.ID, Err: err})
		return "", false
	}
	return id, id != ""
}

func (m *Mirror) Update(ctx context.Context, provider domain.Provider, b domain.Booking) bool {
	if provider.CalendarID == "" || b.ExternalEventID == "" {
		return false
	}
	ctx, cancel := m.syncContext(ctx)
	defer cancel()

	if err := m.client.UpdateEvent(ctx, provider.CalendarID, b.ExternalEventID, EventForBooking(b)); err != nil {
		m.report(&SyncError{Op: "update", CalendarID: provider.CalendarID, BookingID: b.ID, Err: err})
		return false
	}
	return true
}

func (m *Mirror) Delete(ctx context.Context, provider domain.Provider, b domain.Booking) bool {
	if provider.CalendarID == "" || b.ExternalEventID == "" {
		return false
	}
	ctx, cancel := m.syncContext(ctx)
	defer cancel()

	if err := m.client.DeleteEvent(ctx, provider.CalendarID, b.ExternalEventID); err != nil {
		m.report(&SyncError{Op: "delete", CalendarID: provider.CalendarID, BookingID: b.ID, Err: err})
		return false
	}
	return true
}

func (m *Mirror) syncContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
}

func (m *Mirror) report(err *SyncError) {
	m.log.Warn(
		"calendar sync failed",
		slog.String("op", err.Op),
		slog.String("calendar_id", err.CalendarID),
		slog.String("booking_id", err.BookingID.String()),
		slog.Any("err", err.Err),
	)
}
