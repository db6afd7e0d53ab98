package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "github.com/r16a/metis/pkg/domain-errors"
)

// Role names live in a shared catalog; users link to them through
// role-assignment rows. Deleting a user removes the links, never the
// catalog entries.
type Role string

const (
	RoleGlobalAdmin Role = "GLOBAL_ADMIN"
	RoleAdmin       Role = "ADMIN"
	RoleEmployee    Role = "EMPLOYEE"
	RoleUser        Role = "USER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleGlobalAdmin, RoleAdmin, RoleEmployee, RoleUser:
		return true
	}
	return false
}

// User is an account scoped to a tenant. TenantID is nil only for global
// administrators operating outside any tenant.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Surname      string     `json:"surname"`
	PasswordHash string     `json:"-"`
	TenantID     *uuid.UUID `json:"tenant_id,omitempty"`
	Roles        []Role     `json:"roles"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func NewUser(id uuid.UUID, email, name, surname string, tenantID *uuid.UUID, roles []Role, now time.Time) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user email must be valid")
	}
	if len(roles) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user needs at least one role")
	}
	for _, r := range roles {
		if !r.Valid() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown role: "+string(r))
		}
	}
	return &User{
		ID:        id,
		Email:     email,
		Name:      strings.TrimSpace(name),
		Surname:   strings.TrimSpace(surname),
		TenantID:  tenantID,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuditSnapshot returns the flat field whitelist stored in audit records.
// The password hash never enters the trail; the owning tenant contributes
// only its id.
func (u *User) AuditSnapshot() map[string]any {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	snapshot := map[string]any{
		"id":         u.ID.String(),
		"email":      u.Email,
		"name":       u.Name,
		"surname":    u.Surname,
		"roles":      roles,
		"created_at": u.CreatedAt,
		"updated_at": u.UpdatedAt,
	}
	if u.TenantID != nil {
		snapshot["tenant_id"] = u.TenantID.String()
	}
	return snapshot
}

// Clone returns a copy for before/after audit snapshots.
func (u *User) Clone() *User {
	c := *u
	c.Roles = append([]Role(nil), u.Roles...)
	return &c
}
