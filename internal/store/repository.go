package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"caresched/backend/internal/domain"
)

type ProviderFilter struct {
	Specialty  string
	ActiveOnly bool
}

// Repository is the read side of scheduling plus the per-provider
// transaction every booking write goes through.
type Repository interface {
	GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error)
	ListProviders(ctx context.Context, filter ProviderFilter) ([]domain.Provider, error)
	GetClient(ctx context.Context, id uuid.UUID) (domain.Client, error)
	ListAvailability(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, error)

	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	ListProviderBookings(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Booking, error)
	// ListClientBookings returns bookings starting at or after from; a zero
	// from returns all of them.
	ListClientBookings(ctx context.Context, clientID uuid.UUID, from time.Time) ([]domain.Booking, error)

	// InProviderTransaction runs fn while holding the provider's booking lock.
	// Writes made through tx are discarded when fn returns an error.
	InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx ScheduleTx) error) error
}

// Admin covers roster maintenance outside the booking flow.
type Admin interface {
	CreateProvider(ctx context.Context, p domain.Provider) (domain.Provider, error)
	// UpdateProviderSettings changes the only provider fields that stay
	// mutable once bookings reference it.
	UpdateProviderSettings(ctx context.Context, id uuid.UUID, active bool, calendarID string) (domain.Provider, error)
	CreateClient(ctx context.Context, c domain.Client) (domain.Client, error)
	ReplaceAvailability(ctx context.Context, providerID uuid.UUID, windows []domain.AvailabilityWindow) ([]domain.AvailabilityWindow, error)
	DeleteBooking(ctx context.Context, id uuid.UUID) error
}

// Store is what a concrete backend provides.
type Store interface {
	Repository
	Admin
}
