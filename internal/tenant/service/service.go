package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/r16a/metis/internal/audit"
	tenantmetrics "github.com/r16a/metis/internal/tenant/metrics"
	"github.com/r16a/metis/internal/tenant/models"
	usermodels "github.com/r16a/metis/internal/user/models"
	dErrors "github.com/r16a/metis/pkg/domain-errors"
	"github.com/r16a/metis/pkg/requestcontext"
	"github.com/r16a/metis/pkg/sentinel"
)

// TenantStore persists tenants. Implementations return sentinel errors for
// infrastructure facts; the service translates them into coded errors.
type TenantStore interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	FindByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	List(ctx context.Context, q string, offset, limit int) ([]*models.Tenant, int, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserCleaner is the slice of the user store the cascade needs.
type UserCleaner interface {
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
	CountByTenantAndRole(ctx context.Context, tenantID uuid.UUID, role usermodels.Role) (int, error)
	DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// OfferingCleaner is the slice of the offering store the cascade needs.
type OfferingCleaner interface {
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
	DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// BookingCleaner is the slice of the booking store the cascade needs.
type BookingCleaner interface {
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
	DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// AuditLogger is the audit write surface consumed by this service.
type AuditLogger interface {
	LogCreate(ctx context.Context, entityType string, entityID uuid.UUID, entity audit.Snapshotter, tenantID string)
	LogUpdate(ctx context.Context, entityType string, entityID uuid.UUID, oldEntity, newEntity audit.Snapshotter, tenantID string)
	LogBulkDelete(ctx context.Context, entityType string, description string, tenantID string)
}

// TxRunner executes fn inside one atomic transaction scope. Postgres wires a
// real BEGIN/COMMIT; the in-memory runner uses checkpoints.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service orchestrates tenant lifecycle management, including the cascade
// deletion of everything a tenant owns.
type Service struct {
	tenants   TenantStore
	users     UserCleaner
	offerings OfferingCleaner
	bookings  BookingCleaner
	tx        TxRunner
	auditLog  AuditLogger
	logger    *slog.Logger
	metrics   *tenantmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditLogger(auditLog AuditLogger) Option {
	return func(s *Service) {
		s.auditLog = auditLog
	}
}

func WithMetrics(m *tenantmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

// New constructs a Service.
func New(tenants TenantStore, users UserCleaner, offerings OfferingCleaner, bookings BookingCleaner, opts ...Option) *Service {
	s := &Service{
		tenants:   tenants,
		users:     users,
		offerings: offerings,
		bookings:  bookings,
		tx:        passthroughTx{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTenant registers a new tenant organization.
func (s *Service) CreateTenant(ctx context.Context, name, domain string) (*models.Tenant, error) {
	t, err := models.NewTenant(uuid.New(), name, domain, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.tenants.Create(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "tenant domain must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
	}

	if s.auditLog != nil {
		// Tenant-level entities are scoped by their own id.
		s.auditLog.LogCreate(ctx, "Tenant", t.ID, t, t.ID.String())
	}
	s.logger.InfoContext(ctx, "created tenant", "tenant_id", t.ID, "name", t.Name)
	if s.metrics != nil {
		s.metrics.TenantsCreated.Inc()
	}
	return t, nil
}

// GetTenant fetches tenant metadata with per-role user counts.
func (s *Service) GetTenant(ctx context.Context, id uuid.UUID) (*models.TenantDetails, error) {
	tenant, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, wrapTenantErr(err)
	}
	return s.details(ctx, tenant)
}

// GetTenantByDomain resolves a tenant from its domain (case-insensitive).
func (s *Service) GetTenantByDomain(ctx context.Context, domain string) (*models.TenantDetails, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "domain is required")
	}
	tenant, err := s.tenants.FindByDomain(ctx, domain)
	if err != nil {
		return nil, wrapTenantErr(err)
	}
	return s.details(ctx, tenant)
}

// ListTenants returns a page of tenants, optionally filtered by a free-form
// query matched against id, name, and domain.
func (s *Service) ListTenants(ctx context.Context, q string, offset, limit int) ([]*models.Tenant, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	tenants, total, err := s.tenants.List(ctx, strings.TrimSpace(q), offset, limit)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tenants")
	}
	return tenants, total, nil
}

// UpdateTenant changes a tenant's name and domain, auditing before/after.
func (s *Service) UpdateTenant(ctx context.Context, id uuid.UUID, name, domain string) (*models.Tenant, error) {
	tenant, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, wrapTenantErr(err)
	}

	old := tenant.Clone()

	updated, err := models.NewTenant(tenant.ID, name, domain, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	tenant.Name = updated.Name
	tenant.Domain = updated.Domain
	tenant.UpdatedAt = updated.UpdatedAt

	if err := s.tenants.Update(ctx, tenant); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "tenant domain must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update tenant")
	}

	if s.auditLog != nil {
		s.auditLog.LogUpdate(ctx, "Tenant", tenant.ID, old, tenant, tenant.ID.String())
	}
	s.logger.InfoContext(ctx, "updated tenant", "tenant_id", tenant.ID, "name", tenant.Name)
	return tenant, nil
}

// Exists reports whether a tenant with the given id is registered.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.tenants.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) details(ctx context.Context, tenant *models.Tenant) (*models.TenantDetails, error) {
	details := &models.TenantDetails{Tenant: tenant}
	counts := []struct {
		role usermodels.Role
		dst  *int
	}{
		{usermodels.RoleAdmin, &details.AdminCount},
		{usermodels.RoleEmployee, &details.EmployeeCount},
		{usermodels.RoleUser, &details.CustomerCount},
	}
	for _, c := range counts {
		n, err := s.users.CountByTenantAndRole(ctx, tenant.ID, c.role)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count users")
		}
		*c.dst = n
	}
	return details, nil
}

func wrapTenantErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
}
