package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "github.com/r16a/metis/pkg/domain-errors"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Booking is a client appointment for one offering with one employee, scoped
// to a tenant.
type Booking struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	EmployeeID  uuid.UUID `json:"employee_id"`
	OfferingID  uuid.UUID `json:"offering_id"`
	ClientName  string    `json:"client_name"`
	ClientEmail string    `json:"client_email"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewBooking(id, tenantID, employeeID, offeringID uuid.UUID, clientName, clientEmail string, start, end time.Time, now time.Time) (*Booking, error) {
	clientName = strings.TrimSpace(clientName)
	clientEmail = strings.ToLower(strings.TrimSpace(clientEmail))
	if clientName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client name cannot be empty")
	}
	if clientEmail == "" || !strings.Contains(clientEmail, "@") {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client email must be valid")
	}
	if !end.After(start) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "booking must end after it starts")
	}
	return &Booking{
		ID:          id,
		TenantID:    tenantID,
		EmployeeID:  employeeID,
		OfferingID:  offeringID,
		ClientName:  clientName,
		ClientEmail: clientEmail,
		StartTime:   start,
		EndTime:     end,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// AuditSnapshot returns the flat field whitelist stored in audit records.
// Related entities contribute only their ids, which keeps the cyclic
// tenant ↔ user ↔ booking graph out of the trail.
func (b *Booking) AuditSnapshot() map[string]any {
	return map[string]any{
		"id":           b.ID.String(),
		"tenant_id":    b.TenantID.String(),
		"employee_id":  b.EmployeeID.String(),
		"offering_id":  b.OfferingID.String(),
		"client_name":  b.ClientName,
		"client_email": b.ClientEmail,
		"start_time":   b.StartTime,
		"end_time":     b.EndTime,
		"status":       string(b.Status),
	}
}

// Clone returns a copy for before/after audit snapshots.
func (b *Booking) Clone() *Booking {
	c := *b
	return &c
}
