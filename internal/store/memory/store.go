// Package memory is an in-process store used by tests, demos and the
// `--store memory` server mode. Every provider has its own booking lock so
// writes to different providers never wait on each other.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"caresched/backend/internal/domain"
	"caresched/backend/internal/store"
)

type Store struct {
	mu        sync.RWMutex
	providers map[uuid.UUID]domain.Provider
	clients   map[uuid.UUID]domain.Client
	windows   map[uuid.UUID][]domain.AvailabilityWindow // provider ID -> rules
	bookings  map[uuid.UUID]domain.Booking

	locksMu sync.Mutex
	locks   map[uuid.UUID]chan struct{}

	now func() time.Time
}

func New() *Store {
	return &Store{
		providers: make(map[uuid.UUID]domain.Provider),
		clients:   make(map[uuid.UUID]domain.Client),
		windows:   make(map[uuid.UUID][]domain.AvailabilityWindow),
		bookings:  make(map[uuid.UUID]domain.Booking),
		locks:     make(map[uuid.UUID]chan struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var (
	_ store.Store      = (*Store)(nil)
	_ store.ScheduleTx = (*scheduleTx)(nil)
)

func (s *Store) GetProvider(_ context.Context, id uuid.UUID) (domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return domain.Provider{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProviders(_ context.Context, filter store.ProviderFilter) ([]domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if filter.ActiveOnly && !p.Active {
			continue
		}
		if filter.Specialty != "" && !strings.EqualFold(p.Specialty, filter.Specialty) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) GetClient(_ context.Context, id uuid.UUID) (domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return domain.Client{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListAvailability(_ context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AvailabilityWindow(nil), s.windows[providerID]...), nil
}

func (s *Store) GetBooking(_ context.Context, id uuid.UUID) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListProviderBookings(_ context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.providerBookingsLocked(providerID, windowStart, windowEnd, nil), nil
}

func (s *Store) ListClientBookings(_ context.Context, clientID uuid.UUID, from time.Time) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Booking
	for _, b := range s.bookings {
		if b.ClientID != clientID {
			continue
		}
		if !from.IsZero() && b.StartTime.Before(from) {
			continue
		}
		out = append(out, b)
	}
	sortByStart(out)
	return out, nil
}

func (s *Store) InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	lock := s.providerLock(providerID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lock }()

	tx := &scheduleTx{s: s, staged: make(map[uuid.UUID]domain.Booking)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range tx.staged {
		s.bookings[id] = b
	}
	return nil
}

func (s *Store) providerLock(providerID uuid.UUID) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[providerID]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[providerID] = l
	}
	return l
}

func (s *Store) providerBookingsLocked(providerID uuid.UUID, windowStart, windowEnd time.Time, staged map[uuid.UUID]domain.Booking) []domain.Booking {
	var out []domain.Booking
	match := func(b domain.Booking) bool {
		return b.ProviderID == providerID && b.StartTime.Before(windowEnd) && b.EndTime.After(windowStart)
	}
	for id, b := range s.bookings {
		if _, shadowed := staged[id]; shadowed {
			continue
		}
		if match(b) {
			out = append(out, b)
		}
	}
	for _, b := range staged {
		if match(b) {
			out = append(out, b)
		}
	}
	sortByStart(out)
	return out
}

func sortByStart(bs []domain.Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].StartTime.Equal(bs[j].StartTime) {
			return bs[i].StartTime.Before(bs[j].StartTime)
		}
		return bs[i].ID.String() < bs[j].ID.String()
	})
}

// scheduleTx buffers writes until InProviderTransaction commits them.
type scheduleTx struct {
	s      *Store
	staged map[uuid.UUID]domain.Booking
}

func (t *scheduleTx) ListBookings(_ context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.providerBookingsLocked(providerID, windowStart, windowEnd, t.staged), nil
}

func (t *scheduleTx) GetBooking(_ context.Context, id uuid.UUID) (domain.Booking, error) {
	if b, ok := t.staged[id]; ok {
		return b, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.s.bookings[id]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (t *scheduleTx) CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if b.ID != uuid.Nil {
		existing, err := t.GetBooking(ctx, b.ID)
		if err == nil {
			if !store.SameBooking(existing, b) {
				return domain.Booking{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		}
	}
	if err := assignID(&b.ID); err != nil {
		return domain.Booking{}, err
	}

	now := t.s.now()
	b.CreatedAt = now
	b.UpdatedAt = now
	t.staged[b.ID] = b
	return b, nil
}

func (t *scheduleTx) UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	existing, err := t.GetBooking(ctx, b.ID)
	if err != nil {
		return domain.Booking{}, err
	}
	b.ExternalEventID = existing.ExternalEventID
	b.UpdatedAt = t.s.now()
	t.staged[b.ID] = b
	return b, nil
}

func (t *scheduleTx) SetBookingEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	b, err := t.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	b.ExternalEventID = eventID
	b.UpdatedAt = t.s.now()
	t.staged[id] = b
	return nil
}
