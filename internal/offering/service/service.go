package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/r16a/metis/internal/audit"
	"github.com/r16a/metis/internal/offering/models"
	dErrors "github.com/r16a/metis/pkg/domain-errors"
	"github.com/r16a/metis/pkg/requestcontext"
	"github.com/r16a/metis/pkg/sentinel"
)

// Store persists service offerings.
type Store interface {
	Create(ctx context.Context, offering *models.Offering) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offering, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*models.Offering, int, error)
	Update(ctx context.Context, offering *models.Offering) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TenantChecker verifies that a tenant id refers to an existing tenant.
type TenantChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// AuditLogger is the audit write surface consumed by this service.
type AuditLogger interface {
	LogCreate(ctx context.Context, entityType string, entityID uuid.UUID, entity audit.Snapshotter, tenantID string)
	LogUpdate(ctx context.Context, entityType string, entityID uuid.UUID, oldEntity, newEntity audit.Snapshotter, tenantID string)
	LogDelete(ctx context.Context, entityType string, entityID uuid.UUID, entity audit.Snapshotter, tenantID string)
}

type Service struct {
	store    Store
	tenants  TenantChecker
	auditLog AuditLogger
	logger   *slog.Logger
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

func WithTenantChecker(tenants TenantChecker) Option {
	return func(s *Service) {
		s.tenants = tenants
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOffering adds a bookable service to a tenant's catalog.
func (s *Service) CreateOffering(ctx context.Context, tenantID uuid.UUID, name string, durationMinutes int, price float64) (*models.Offering, error) {
	offering, err := models.NewOffering(uuid.New(), tenantID, name, durationMinutes, price, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if s.tenants != nil {
		ok, err := s.tenants.Exists(ctx, tenantID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check tenant")
		}
		if !ok {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
	}

	if err := s.store.Create(ctx, offering); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create service")
	}

	if s.auditLog != nil {
		s.auditLog.LogCreate(ctx, models.EntityType, offering.ID, offering, offering.TenantID.String())
	}
	s.logger.InfoContext(ctx, "created service", "service_id", offering.ID, "tenant_id", offering.TenantID)
	return offering, nil
}

func (s *Service) GetOffering(ctx context.Context, id uuid.UUID) (*models.Offering, error) {
	offering, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapOfferingErr(err)
	}
	return offering, nil
}

func (s *Service) ListOfferingsByTenant(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*models.Offering, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	offerings, total, err := s.store.ListByTenant(ctx, tenantID, offset, limit)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list services")
	}
	return offerings, total, nil
}

// UpdateOffering replaces the mutable fields of an offering.
func (s *Service) UpdateOffering(ctx context.Context, id uuid.UUID, name string, durationMinutes int, price float64) (*models.Offering, error) {
	offering, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapOfferingErr(err)
	}

	old := offering.Clone()

	updated, err := models.NewOffering(offering.ID, offering.TenantID, name, durationMinutes, price, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	offering.Name = updated.Name
	offering.DurationMinutes = updated.DurationMinutes
	offering.Price = updated.Price
	offering.UpdatedAt = updated.UpdatedAt

	if err := s.store.Update(ctx, offering); err != nil {
		return nil, wrapOfferingErr(err)
	}

	if s.auditLog != nil {
		s.auditLog.LogUpdate(ctx, models.EntityType, offering.ID, old, offering, offering.TenantID.String())
	}
	s.logger.InfoContext(ctx, "updated service", "service_id", offering.ID)
	return offering, nil
}

// DeleteOffering removes a single offering, auditing its final state.
func (s *Service) DeleteOffering(ctx context.Context, id uuid.UUID) error {
	offering, err := s.store.FindByID(ctx, id)
	if err != nil {
		return wrapOfferingErr(err)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return wrapOfferingErr(err)
	}

	if s.auditLog != nil {
		s.auditLog.LogDelete(ctx, models.EntityType, offering.ID, offering, offering.TenantID.String())
	}
	s.logger.InfoContext(ctx, "deleted service", "service_id", offering.ID)
	return nil
}

func wrapOfferingErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "service not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load service")
}
