package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/r16a/metis/internal/audit"
	auditmemory "github.com/r16a/metis/internal/audit/store/memory"
	bookingmodels "github.com/r16a/metis/internal/booking/models"
	bookingstore "github.com/r16a/metis/internal/booking/store"
	offeringmodels "github.com/r16a/metis/internal/offering/models"
	offeringstore "github.com/r16a/metis/internal/offering/store"
	"github.com/r16a/metis/internal/tenant/service"
	tenantstore "github.com/r16a/metis/internal/tenant/store"
	usermodels "github.com/r16a/metis/internal/user/models"
	userstore "github.com/r16a/metis/internal/user/store"
	dErrors "github.com/r16a/metis/pkg/domain-errors"
	"github.com/r16a/metis/pkg/requestcontext"
)

type CascadeSuite struct {
	suite.Suite
	tenants    *tenantstore.InMemory
	users      *userstore.InMemory
	offerings  *offeringstore.InMemory
	bookings   *bookingstore.InMemory
	auditStore *auditmemory.InMemoryStore
	service    *service.Service
}

func TestCascadeSuite(t *testing.T) {
	suite.Run(t, new(CascadeSuite))
}

func (s *CascadeSuite) SetupTest() {
	s.tenants = tenantstore.NewInMemory()
	s.users = userstore.NewInMemory()
	s.offerings = offeringstore.NewInMemory()
	s.bookings = bookingstore.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()

	writer := audit.NewWriter(s.auditStore)
	s.service = service.New(s.tenants, s.users, s.offerings, s.bookings,
		service.WithAuditLogger(writer),
		service.WithTxRunner(service.NewMemoryTxRunner(s.tenants, s.users, s.offerings, s.bookings)),
	)
}

// seed builds a tenant with 3 users, 2 services, and 2 bookings, then clears
// the audit trail so each test starts from a clean slate.
func (s *CascadeSuite) seed() uuid.UUID {
	ctx := context.Background()

	tenant, err := s.service.CreateTenant(ctx, "Acme Clinic", "acme.example")
	s.Require().NoError(err)

	var employeeID uuid.UUID
	for i, role := range []usermodels.Role{usermodels.RoleAdmin, usermodels.RoleEmployee, usermodels.RoleUser} {
		user, err := usermodels.NewUser(uuid.New(), fmt.Sprintf("u%d@acme.example", i), "Test", "User",
			&tenant.ID, []usermodels.Role{role}, time.Now())
		s.Require().NoError(err)
		s.Require().NoError(s.users.Create(ctx, user))
		if role == usermodels.RoleEmployee {
			employeeID = user.ID
		}
	}

	var offeringIDs []uuid.UUID
	for i := 0; i < 2; i++ {
		offering, err := offeringModels(tenant.ID, fmt.Sprintf("Service %d", i))
		s.Require().NoError(err)
		s.Require().NoError(s.offerings.Create(ctx, offering))
		offeringIDs = append(offeringIDs, offering.ID)
	}

	for i := 0; i < 2; i++ {
		booking, err := bookingModels(tenant.ID, employeeID, offeringIDs[i])
		s.Require().NoError(err)
		s.Require().NoError(s.bookings.Create(ctx, booking))
	}

	s.auditStore = auditmemory.NewInMemoryStore()
	writer := audit.NewWriter(s.auditStore)
	s.service = service.New(s.tenants, s.users, s.offerings, s.bookings,
		service.WithAuditLogger(writer),
		service.WithTxRunner(service.NewMemoryTxRunner(s.tenants, s.users, s.offerings, s.bookings)),
	)
	return tenant.ID
}

func (s *CascadeSuite) counts(tenantID uuid.UUID) (users, offerings, bookings int) {
	ctx := context.Background()
	var err error
	users, err = s.users.CountByTenant(ctx, tenantID)
	s.Require().NoError(err)
	offerings, err = s.offerings.CountByTenant(ctx, tenantID)
	s.Require().NoError(err)
	bookings, err = s.bookings.CountByTenant(ctx, tenantID)
	s.Require().NoError(err)
	return users, offerings, bookings
}

func (s *CascadeSuite) TestDeleteTenantRemovesEverything() {
	tenantID := s.seed()

	s.Require().NoError(s.service.DeleteTenant(context.Background(), tenantID))

	users, offerings, bookings := s.counts(tenantID)
	s.Zero(users)
	s.Zero(offerings)
	s.Zero(bookings)

	_, err := s.tenants.FindByID(context.Background(), tenantID)
	s.Error(err)
}

func (s *CascadeSuite) TestDeleteTenantWritesExactlyOneAuditRecord() {
	tenantID := s.seed()
	ctx := requestcontext.WithActor(context.Background(), "admin@platform.example")

	s.Require().NoError(s.service.DeleteTenant(ctx, tenantID))

	page, err := s.auditStore.FindAll(context.Background(), audit.PageRequest{})
	s.Require().NoError(err)
	s.Require().Equal(1, page.TotalCount)

	r := page.Records[0]
	s.Equal(audit.OperationDelete, r.Operation)
	s.Equal("Tenant", r.EntityType)
	s.Nil(r.EntityID)
	s.Equal(tenantID.String(), r.TenantID)
	s.Equal("admin@platform.example", r.PerformedBy)
	s.Equal("Deleted tenant 'Acme Clinic' and all related data: 3 users, 2 services, 2 bookings", r.Description)
	s.Empty(r.OldValues)
	s.Empty(r.NewValues)
}

func (s *CascadeSuite) TestDeleteUnknownTenant() {
	err := s.service.DeleteTenant(context.Background(), uuid.New())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Zero(s.auditStore.Count())
}

func (s *CascadeSuite) TestFailedCascadeRollsBackAndAuditsNothing() {
	tenantID := s.seed()

	// Swap in an offering cleaner that fails mid-cascade, after bookings and
	// users have already been deleted inside the transaction.
	failing := &failingOfferings{inner: s.offerings}
	svc := service.New(s.tenants, s.users, failing, s.bookings,
		service.WithAuditLogger(audit.NewWriter(s.auditStore)),
		service.WithTxRunner(service.NewMemoryTxRunner(s.tenants, s.users, s.offerings, s.bookings)),
	)

	err := svc.DeleteTenant(context.Background(), tenantID)
	s.Require().Error(err)

	users, offerings, bookings := s.counts(tenantID)
	s.Equal(3, users)
	s.Equal(2, offerings)
	s.Equal(2, bookings)

	tenant, err := s.tenants.FindByID(context.Background(), tenantID)
	s.Require().NoError(err)
	s.Equal("Acme Clinic", tenant.Name)

	s.Zero(s.auditStore.Count())
}

func (s *CascadeSuite) TestOtherTenantsUnaffected() {
	tenantID := s.seed()
	other, err := s.service.CreateTenant(context.Background(), "Bright Dental", "bright.example")
	s.Require().NoError(err)
	otherUser, err := usermodels.NewUser(uuid.New(), "keep@bright.example", "Keep", "Me",
		&other.ID, []usermodels.Role{usermodels.RoleAdmin}, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.users.Create(context.Background(), otherUser))

	s.Require().NoError(s.service.DeleteTenant(context.Background(), tenantID))

	kept, err := s.users.FindByID(context.Background(), otherUser.ID)
	s.Require().NoError(err)
	s.Equal("keep@bright.example", kept.Email)

	_, err = s.tenants.FindByID(context.Background(), other.ID)
	s.NoError(err)
}

type failingOfferings struct {
	inner service.OfferingCleaner
}

func (f *failingOfferings) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	return f.inner.CountByTenant(ctx, tenantID)
}

func (f *failingOfferings) DeleteByTenant(context.Context, uuid.UUID) (int, error) {
	return 0, errors.New("storage failure")
}

func offeringModels(tenantID uuid.UUID, name string) (*offeringmodels.Offering, error) {
	return offeringmodels.NewOffering(uuid.New(), tenantID, name, 30, 25.0, time.Now())
}

func bookingModels(tenantID, employeeID, offeringID uuid.UUID) (*bookingmodels.Booking, error) {
	start := time.Now().Add(24 * time.Hour)
	return bookingmodels.NewBooking(uuid.New(), tenantID, employeeID, offeringID,
		"Client", "client@example.com", start, start.Add(30*time.Minute), time.Now())
}
