package memory

import (
	"context"

	"github.com/google/uuid"

	"caresched/backend/internal/domain"
	"caresched/backend/internal/store"
)

func (s *Store) CreateProvider(_ context.Context, p domain.Provider) (domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := assignID(&p.ID); err != nil {
		return domain.Provider{}, err
	}
	if _, exists := s.providers[p.ID]; exists {
		return domain.Provider{}, store.ErrConflict
	}
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.providers[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProviderSettings(_ context.Context, id uuid.UUID, active bool, calendarID string) (domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.providers[id]
	if !ok {
		return domain.Provider{}, store.ErrNotFound
	}
	p.Active = active
	p.CalendarID = calendarID
	p.UpdatedAt = s.now()
	s.providers[id] = p
	return p, nil
}

func (s *Store) CreateClient(_ context.Context, c domain.Client) (domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := assignID(&c.ID); err != nil {
		return domain.Client{}, err
	}
	if _, exists := s.clients[c.ID]; exists {
		return domain.Client{}, store.ErrConflict
	}
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.clients[c.ID] = c
	return c, nil
}

func (s *Store) ReplaceAvailability(_ context.Context, providerID uuid.UUID, windows []domain.AvailabilityWindow) ([]domain.AvailabilityWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.providers[providerID]; !ok {
		return nil, store.ErrNotFound
	}
	out := make([]domain.AvailabilityWindow, 0, len(windows))
	for _, w := range windows {
		if err := assignID(&w.ID); err != nil {
			return nil, err
		}
		w.ProviderID = providerID
		w.CreatedAt = s.now()
		w.UpdatedAt = w.CreatedAt
		out = append(out, w)
	}
	s.windows[providerID] = out
	return append([]domain.AvailabilityWindow(nil), out...), nil
}

func (s *Store) DeleteBooking(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.bookings, id)
	return nil
}

func assignID(id *uuid.UUID) error {
	if *id != uuid.Nil {
		return nil
	}
	v, err := uuid.NewV7()
	if err != nil {
		return err
	}
	*id = v
	return nil
}
