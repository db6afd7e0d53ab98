package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/r16a/metis/internal/tenant/models"
	"github.com/r16a/metis/pkg/sentinel"
)

// InMemory keeps tenants in a map guarded by a mutex. Used by unit tests and
// demo mode; behavior mirrors the postgres store, including domain
// uniqueness.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*models.Tenant
}

func NewInMemory() *InMemory {
	return &InMemory{tenants: make(map[uuid.UUID]*models.Tenant)}
}

func (s *InMemory) Create(_ context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tenants {
		if strings.EqualFold(existing.Domain, tenant.Domain) {
			return sentinel.ErrAlreadyUsed
		}
	}
	c := *tenant
	s.tenants[tenant.ID] = &c
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tenant, ok := s.tenants[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *tenant
	return &c, nil
}

func (s *InMemory) FindByDomain(_ context.Context, domain string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tenant := range s.tenants {
		if strings.EqualFold(tenant.Domain, domain) {
			c := *tenant
			return &c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) List(_ context.Context, q string, offset, limit int) ([]*models.Tenant, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q = strings.ToLower(q)
	var matched []*models.Tenant
	for _, tenant := range s.tenants {
		if q == "" ||
			strings.EqualFold(tenant.ID.String(), q) ||
			strings.Contains(strings.ToLower(tenant.Name), q) ||
			strings.Contains(strings.ToLower(tenant.Domain), q) {
			c := *tenant
			matched = append(matched, &c)
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

func (s *InMemory) Update(_ context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenant.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for id, existing := range s.tenants {
		if id != tenant.ID && strings.EqualFold(existing.Domain, tenant.Domain) {
			return sentinel.ErrAlreadyUsed
		}
	}
	c := *tenant
	s.tenants[tenant.ID] = &c
	return nil
}

func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.tenants, id)
	return nil
}

// Checkpoint snapshots the current state and returns a restore closure for
// the in-memory transaction runner.
func (s *InMemory) Checkpoint() (restore func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make(map[uuid.UUID]*models.Tenant, len(s.tenants))
	for id, tenant := range s.tenants {
		c := *tenant
		saved[id] = &c
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.tenants = saved
	}
}
