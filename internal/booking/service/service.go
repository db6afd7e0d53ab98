package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/r16a/metis/internal/audit"
	"github.com/r16a/metis/internal/booking/models"
	offeringmodels "github.com/r16a/metis/internal/offering/models"
	usermodels "github.com/r16a/metis/internal/user/models"
	dErrors "github.com/r16a/metis/pkg/domain-errors"
	"github.com/r16a/metis/pkg/requestcontext"
	"github.com/r16a/metis/pkg/sentinel"
)

const entityType = "Booking"

// Store persists bookings.
type Store interface {
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*models.Booking, int, error)
	Update(ctx context.Context, booking *models.Booking) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// OfferingGetter resolves the offering a booking is made for.
type OfferingGetter interface {
	FindByID(ctx context.Context, id uuid.UUID) (*offeringmodels.Offering, error)
}

// EmployeeGetter resolves the employee assigned to a booking.
type EmployeeGetter interface {
	FindByID(ctx context.Context, id uuid.UUID) (*usermodels.User, error)
}

// AuditLogger is the audit write surface consumed by this service.
type AuditLogger interface {
	LogCreate(ctx context.Context, entityType string, entityID uuid.UUID, entity audit.Snapshotter, tenantID string)
	LogUpdate(ctx context.Context, entityType string, entityID uuid.UUID, oldEntity, newEntity audit.Snapshotter, tenantID string)
	LogDelete(ctx context.Context, entityType string, entityID uuid.UUID, entity audit.Snapshotter, tenantID string)
}

type Service struct {
	store     Store
	offerings OfferingGetter
	employees EmployeeGetter
	auditLog  AuditLogger
	logger    *slog.Logger
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

func New(store Store, offerings OfferingGetter, employees EmployeeGetter, opts ...Option) *Service {
	s := &Service{
		store:     store,
		offerings: offerings,
		employees: employees,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBookingInput carries the fields accepted when booking an appointment.
type CreateBookingInput struct {
	TenantID    uuid.UUID
	OfferingID  uuid.UUID
	EmployeeID  uuid.UUID
	ClientName  string
	ClientEmail string
	StartTime   time.Time
}

// CreateBooking books an appointment. The offering and the employee must both
// belong to the booking's tenant; the end time follows from the offering's
// duration.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	offering, err := s.offerings.FindByID(ctx, in.OfferingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "service not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load service")
	}
	if offering.TenantID != in.TenantID {
		return nil, dErrors.New(dErrors.CodeForbidden, "service belongs to a different tenant")
	}

	employee, err := s.employees.FindByID(ctx, in.EmployeeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "employee not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load employee")
	}
	if employee.TenantID == nil || *employee.TenantID != in.TenantID {
		return nil, dErrors.New(dErrors.CodeForbidden, "employee belongs to a different tenant")
	}
	if !employee.HasRole(usermodels.RoleEmployee) && !employee.HasRole(usermodels.RoleAdmin) {
		return nil, dErrors.New(dErrors.CodeValidation, "assigned user cannot take bookings")
	}

	end := in.StartTime.Add(time.Duration(offering.DurationMinutes) * time.Minute)
	booking, err := models.NewBooking(uuid.New(), in.TenantID, in.EmployeeID, in.OfferingID,
		in.ClientName, in.ClientEmail, in.StartTime, end, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.Create(ctx, booking); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create booking")
	}

	if s.auditLog != nil {
		s.auditLog.LogCreate(ctx, entityType, booking.ID, booking, booking.TenantID.String())
	}
	s.logger.InfoContext(ctx, "created booking", "booking_id", booking.ID, "tenant_id", booking.TenantID)
	return booking, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	booking, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapBookingErr(err)
	}
	return booking, nil
}

func (s *Service) ListBookingsByTenant(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*models.Booking, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	bookings, total, err := s.store.ListByTenant(ctx, tenantID, offset, limit)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list bookings")
	}
	return bookings, total, nil
}

// UpdateStatus moves a booking through its lifecycle. Cancelled bookings are
// terminal.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Booking, error) {
	if !status.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown booking status: "+string(status))
	}

	booking, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapBookingErr(err)
	}
	if booking.Status == models.StatusCancelled {
		return nil, dErrors.New(dErrors.CodeConflict, "booking is already cancelled")
	}

	old := booking.Clone()
	booking.Status = status
	booking.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Update(ctx, booking); err != nil {
		return nil, wrapBookingErr(err)
	}

	if s.auditLog != nil {
		s.auditLog.LogUpdate(ctx, entityType, booking.ID, old, booking, booking.TenantID.String())
	}
	s.logger.InfoContext(ctx, "updated booking status", "booking_id", booking.ID, "status", booking.Status)
	return booking, nil
}

// DeleteBooking removes a single booking, auditing its final state.
func (s *Service) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	booking, err := s.store.FindByID(ctx, id)
	if err != nil {
		return wrapBookingErr(err)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return wrapBookingErr(err)
	}

	if s.auditLog != nil {
		s.auditLog.LogDelete(ctx, entityType, booking.ID, booking, booking.TenantID.String())
	}
	s.logger.InfoContext(ctx, "deleted booking", "booking_id", booking.ID)
	return nil
}

func wrapBookingErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "booking not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load booking")
}
