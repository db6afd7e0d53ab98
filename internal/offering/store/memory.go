package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/r16a/metis/internal/offering/models"
	"github.com/r16a/metis/pkg/sentinel"
)

type InMemory struct {
	mu        sync.RWMutex
	offerings map[uuid.UUID]*models.Offering
}

func NewInMemory() *InMemory {
	return &InMemory{offerings: make(map[uuid.UUID]*models.Offering)}
}

func (s *InMemory) Create(_ context.Context, offering *models.Offering) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offerings[offering.ID] = offering.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Offering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	offering, ok := s.offerings[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return offering.Clone(), nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID uuid.UUID, offset, limit int) ([]*models.Offering, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Offering
	for _, offering := range s.offerings {
		if offering.TenantID == tenantID {
			matched = append(matched, offering.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
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

func (s *InMemory) Update(_ context.Context, offering *models.Offering) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offerings[offering.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.offerings[offering.ID] = offering.Clone()
	return nil
}

func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offerings[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.offerings, id)
	return nil
}

func (s *InMemory) CountByTenant(_ context.Context, tenantID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, offering := range s.offerings {
		if offering.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) DeleteByTenant(_ context.Context, tenantID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, offering := range s.offerings {
		if offering.TenantID == tenantID {
			delete(s.offerings, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemory) Checkpoint() (restore func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make(map[uuid.UUID]*models.Offering, len(s.offerings))
	for id, offering := range s.offerings {
		saved[id] = offering.Clone()
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.offerings = saved
	}
}
