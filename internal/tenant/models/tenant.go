package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "github.com/r16a/metis/pkg/domain-errors"
)

// Tenant is the isolation boundary for a customer organization. It owns
// users, offerings, and bookings; deleting a tenant cascades over all of
// them.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenantDetails is the admin-facing read model with per-role user counts.
type TenantDetails struct {
	*Tenant
	AdminCount    int `json:"admin_count"`
	EmployeeCount int `json:"employee_count"`
	CustomerCount int `json:"customer_count"`
}

func NewTenant(tenantID uuid.UUID, name, domain string, now time.Time) (*Tenant, error) {
	name = strings.TrimSpace(name)
	domain = strings.ToLower(strings.TrimSpace(domain))
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name must be 128 characters or less")
	}
	if domain == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant domain cannot be empty")
	}
	return &Tenant{
		ID:        tenantID,
		Name:      name,
		Domain:    domain,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// AuditSnapshot returns the flat field whitelist stored in audit records.
// Owned collections are deliberately absent; they serialize under their own
// entity types.
func (t *Tenant) AuditSnapshot() map[string]any {
	return map[string]any{
		"id":         t.ID.String(),
		"name":       t.Name,
		"domain":     t.Domain,
		"created_at": t.CreatedAt,
		"updated_at": t.UpdatedAt,
	}
}

// Clone returns a copy for before/after audit snapshots.
func (t *Tenant) Clone() *Tenant {
	c := *t
	return &c
}
