// Package audit records every create/update/delete of a tracked entity as an
// immutable before/after snapshot attributed to an actor and a tenant. The
// trail is append-only: records are never updated or deleted by the system.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Operation classifies what happened to the entity. Bulk deletions reuse
// OperationDelete with a nil entity ID.
type Operation string

const (
	OperationCreate Operation = "CREATE"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// Record is one entry in the audit trail.
//
// Invariants:
//   - immutable once appended
//   - OldValues is empty for CREATE, NewValues is empty for DELETE,
//     both are empty for a bulk summary record
//   - EntityID is nil only for bulk/multi-entity operations
//   - Timestamp is assigned at append time when left zero
//
// OldValues/NewValues hold opaque serialized snapshots; consumers must
// tolerate arbitrary entity shapes across versions.
type Record struct {
	ID          uuid.UUID  `json:"id"`
	Operation   Operation  `json:"operation"`
	EntityType  string     `json:"entity_type"`
	EntityID    *uuid.UUID `json:"entity_id,omitempty"`
	OldValues   string     `json:"old_values,omitempty"`
	NewValues   string     `json:"new_values,omitempty"`
	PerformedBy string     `json:"performed_by"`
	TenantID    string     `json:"tenant_id,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	Description string     `json:"description"`
}

// PageRequest selects a stable window of a paginated query.
type PageRequest struct {
	Offset int
	Limit  int
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Normalize clamps the request to sane bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

// Page is one window of records plus total-count metadata for client-side
// pagination.
type Page struct {
	Records    []Record `json:"records"`
	TotalCount int      `json:"total_count"`
	Offset     int      `json:"offset"`
	Limit      int      `json:"limit"`
}
