package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/r16a/metis/internal/booking/models"
	"github.com/r16a/metis/pkg/sentinel"
)

type InMemory struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]*models.Booking
}

func NewInMemory() *InMemory {
	return &InMemory{bookings: make(map[uuid.UUID]*models.Booking)}
}

func (s *InMemory) Create(_ context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[booking.ID] = booking.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	booking, ok := s.bookings[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return booking.Clone(), nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID uuid.UUID, offset, limit int) ([]*models.Booking, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Booking
	for _, booking := range s.bookings {
		if booking.TenantID == tenantID {
			matched = append(matched, booking.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartTime.Equal(matched[j].StartTime) {
			return matched[i].StartTime.Before(matched[j].StartTime)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *InMemory) Update(_ context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[booking.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.bookings[booking.ID] = booking.Clone()
	return nil
}

func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.bookings, id)
	return nil
}

func (s *InMemory) CountByTenant(_ context.Context, tenantID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, booking := range s.bookings {
		if booking.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) DeleteByTenant(_ context.Context, tenantID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, booking := range s.bookings {
		if booking.TenantID == tenantID {
			delete(s.bookings, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemory) Checkpoint() (restore func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make(map[uuid.UUID]*models.Booking, len(s.bookings))
	for id, booking := range s.bookings {
		saved[id] = booking.Clone()
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.bookings = saved
	}
}
