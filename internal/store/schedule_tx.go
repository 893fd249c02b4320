package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"caresched/backend/internal/domain"
)

type ScheduleTx interface {
	ListBookings(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	// CreateBooking returns the stored row unchanged when b.ID already exists
	// with identical fields, and ErrIdempotencyConflict when it differs.
	CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
	// UpdateBooking writes the mutable fields of b. The external event id is
	// only changed through SetBookingEventID.
	UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
	SetBookingEventID(ctx context.Context, id uuid.UUID, eventID string) error
}

// SameBooking compares the caller-supplied fields of two bookings.
func SameBooking(a, b domain.Booking) bool {
	return a.ProviderID == b.ProviderID &&
		a.ClientID == b.ClientID &&
		a.AppointmentType == b.AppointmentType &&
		a.Urgency == b.Urgency &&
		a.Notes == b.Notes &&
		a.StartTime.Equal(b.StartTime) &&
		a.EndTime.Equal(b.EndTime)
}
