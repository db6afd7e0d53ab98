package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/r16a/metis/internal/tenant/models"
)

// DeleteTenant removes a tenant and everything transitively owned by it, as
// one atomic unit.
//
// Dependency order matters: bookings reference both users and offerings, so
// they go first; user deletion also removes role-assignment links but never
// rows in the shared role catalog; the tenant row goes last. Counts are
// captured before any deletion so the summary reflects what was removed.
//
// Exactly one bulk-delete audit record summarizes the cascade — never one
// record per deleted row — and it is written only after the transaction
// commits. A failed cascade rolls everything back and logs nothing.
func (s *Service) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	var (
		tenant        *models.Tenant
		bookingCount  int
		userCount     int
		offeringCount int
	)

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		tenant, err = s.tenants.FindByID(txCtx, id)
		if err != nil {
			return wrapTenantErr(err)
		}

		if bookingCount, err = s.bookings.CountByTenant(txCtx, id); err != nil {
			return fmt.Errorf("count bookings: %w", err)
		}
		if offeringCount, err = s.offerings.CountByTenant(txCtx, id); err != nil {
			return fmt.Errorf("count services: %w", err)
		}
		if userCount, err = s.users.CountByTenant(txCtx, id); err != nil {
			return fmt.Errorf("count users: %w", err)
		}

		if _, err = s.bookings.DeleteByTenant(txCtx, id); err != nil {
			return fmt.Errorf("delete bookings: %w", err)
		}
		if _, err = s.users.DeleteByTenant(txCtx, id); err != nil {
			return fmt.Errorf("delete users: %w", err)
		}
		if _, err = s.offerings.DeleteByTenant(txCtx, id); err != nil {
			return fmt.Errorf("delete services: %w", err)
		}
		if err = s.tenants.Delete(txCtx, id); err != nil {
			return fmt.Errorf("delete tenant: %w", err)
		}
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.CascadeFailures.Inc()
		}
		s.logger.ErrorContext(ctx, "cascade deletion failed",
			"tenant_id", id,
			"error", err.Error(),
		)
		return err
	}

	description := fmt.Sprintf("Deleted tenant '%s' and all related data: %d users, %d services, %d bookings",
		tenant.Name, userCount, offeringCount, bookingCount)
	if s.auditLog != nil {
		s.auditLog.LogBulkDelete(ctx, "Tenant", description, id.String())
	}

	s.logger.InfoContext(ctx, "completed cascade deletion",
		"tenant_id", id,
		"bookings", bookingCount,
		"users", userCount,
		"services", offeringCount,
	)
	if s.metrics != nil {
		s.metrics.TenantsDeleted.Inc()
		s.metrics.CascadeRowsDeleted.WithLabelValues("booking").Add(float64(bookingCount))
		s.metrics.CascadeRowsDeleted.WithLabelValues("user").Add(float64(userCount))
		s.metrics.CascadeRowsDeleted.WithLabelValues("service").Add(float64(offeringCount))
	}
	return nil
}
