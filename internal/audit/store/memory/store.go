package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/r16a/metis/internal/audit"
)

// InMemoryStore keeps audit records in insertion order. Concurrent appends
// are safe; records are copied on the way out so callers can never mutate a
// persisted entry.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []audit.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, record audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	s.records = append(s.records, record)
	return nil
}

func (s *InMemoryStore) FindAll(_ context.Context, page audit.PageRequest) (audit.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.records, page), nil
}

func (s *InMemoryStore) FindByEntity(_ context.Context, entityType string, entityID uuid.UUID) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool {
		return r.EntityType == entityType && r.EntityID != nil && *r.EntityID == entityID
	}), nil
}

func (s *InMemoryStore) FindByTenant(_ context.Context, tenantID string, page audit.PageRequest) (audit.Page, error) {
	matched := s.filter(func(r audit.Record) bool {
		return r.TenantID == tenantID
	})
	return paginate(matched, page), nil
}

func (s *InMemoryStore) FindByActor(_ context.Context, performedBy string) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool {
		return r.PerformedBy == performedBy
	}), nil
}

func (s *InMemoryStore) FindByOperation(_ context.Context, op audit.Operation) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool {
		return r.Operation == op
	}), nil
}

func (s *InMemoryStore) FindByTimeRange(_ context.Context, start, end time.Time, page audit.PageRequest) (audit.Page, error) {
	matched := s.filter(func(r audit.Record) bool {
		return inRange(r.Timestamp, start, end)
	})
	return paginate(matched, page), nil
}

func (s *InMemoryStore) FindByTenantAndTimeRange(_ context.Context, tenantID string, start, end time.Time, page audit.PageRequest) (audit.Page, error) {
	matched := s.filter(func(r audit.Record) bool {
		return r.TenantID == tenantID && inRange(r.Timestamp, start, end)
	})
	return paginate(matched, page), nil
}

func (s *InMemoryStore) FindByEntityTypeAndTenant(_ context.Context, entityType, tenantID string) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool {
		return r.EntityType == entityType && r.TenantID == tenantID
	}), nil
}

// Count returns the number of records ever appended.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *InMemoryStore) filter(keep func(audit.Record) bool) []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []audit.Record
	for _, r := range s.records {
		if keep(r) {
			matched = append(matched, r)
		}
	}
	return matched
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func paginate(records []audit.Record, page audit.PageRequest) audit.Page {
	page = page.Normalize()
	total := len(records)

	start := page.Offset
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}

	window := make([]audit.Record, end-start)
	copy(window, records[start:end])

	return audit.Page{
		Records:    window,
		TotalCount: total,
		Offset:     page.Offset,
		Limit:      page.Limit,
	}
}
