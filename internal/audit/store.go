package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the append-only persistence surface for audit records. There is
// deliberately no update or delete: append-only by contract, not merely by
// convention. Paginated queries order by (timestamp, id) ascending so
// repeated calls see a stable window.
type Store interface {
	Append(ctx context.Context, record Record) error

	FindAll(ctx context.Context, page PageRequest) (Page, error)
	FindByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]Record, error)
	FindByTenant(ctx context.Context, tenantID string, page PageRequest) (Page, error)
	FindByActor(ctx context.Context, performedBy string) ([]Record, error)
	FindByOperation(ctx context.Context, op Operation) ([]Record, error)
	FindByTimeRange(ctx context.Context, start, end time.Time, page PageRequest) (Page, error)
	FindByTenantAndTimeRange(ctx context.Context, tenantID string, start, end time.Time, page PageRequest) (Page, error)
	FindByEntityTypeAndTenant(ctx context.Context, entityType, tenantID string) ([]Record, error)
}
