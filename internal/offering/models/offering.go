package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "github.com/r16a/metis/pkg/domain-errors"
)

// Offering is a bookable service a tenant sells (a haircut, a consultation).
// Audit records keep the historical "TenantService" entity type tag for wire
// compatibility with existing trail consumers.
type Offering struct {
	ID              uuid.UUID `json:"id"`
	TenantID        uuid.UUID `json:"tenant_id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           float64   `json:"price"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EntityType is the audit classification tag for offerings.
const EntityType = "TenantService"

func NewOffering(id, tenantID uuid.UUID, name string, durationMinutes int, price float64, now time.Time) (*Offering, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "offering name cannot be empty")
	}
	if durationMinutes <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "offering duration must be positive")
	}
	if price < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "offering price cannot be negative")
	}
	return &Offering{
		ID:              id,
		TenantID:        tenantID,
		Name:            name,
		DurationMinutes: durationMinutes,
		Price:           price,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// AuditSnapshot returns the flat field whitelist stored in audit records.
func (o *Offering) AuditSnapshot() map[string]any {
	return map[string]any{
		"id":               o.ID.String(),
		"tenant_id":        o.TenantID.String(),
		"name":             o.Name,
		"duration_minutes": o.DurationMinutes,
		"price":            o.Price,
	}
}

// Clone returns a copy for before/after audit snapshots.
func (o *Offering) Clone() *Offering {
	c := *o
	return &c
}
