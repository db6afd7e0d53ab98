package service_test

import (
	"context"
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
	"github.com/r16a/metis/internal/tenant/models"
	"github.com/r16a/metis/internal/tenant/service"
	tenantstore "github.com/r16a/metis/internal/tenant/store"
	usermodels "github.com/r16a/metis/internal/user/models"
	userstore "github.com/r16a/metis/internal/user/store"
	dErrors "github.com/r16a/metis/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	tenants    *tenantstore.InMemory
	users      *userstore.InMemory
	offerings  *offeringstore.InMemory
	bookings   *bookingstore.InMemory
	auditStore *auditmemory.InMemoryStore
	service    *service.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
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

func (s *ServiceSuite) seedTenant(name, domain string) *models.Tenant {
	tenant, err := s.service.CreateTenant(context.Background(), name, domain)
	s.Require().NoError(err)
	return tenant
}

func (s *ServiceSuite) seedUser(tenantID uuid.UUID, email string, roles ...usermodels.Role) *usermodels.User {
	user, err := usermodels.NewUser(uuid.New(), email, "Test", "User", &tenantID, roles, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.users.Create(context.Background(), user))
	return user
}

func (s *ServiceSuite) seedOffering(tenantID uuid.UUID, name string) *offeringmodels.Offering {
	offering, err := offeringmodels.NewOffering(uuid.New(), tenantID, name, 30, 25.0, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.offerings.Create(context.Background(), offering))
	return offering
}

func (s *ServiceSuite) seedBooking(tenantID, employeeID, offeringID uuid.UUID) *bookingmodels.Booking {
	start := time.Now().Add(24 * time.Hour)
	booking, err := bookingmodels.NewBooking(uuid.New(), tenantID, employeeID, offeringID,
		"Client", "client@example.com", start, start.Add(30*time.Minute), time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.bookings.Create(context.Background(), booking))
	return booking
}

func (s *ServiceSuite) auditRecords() []audit.Record {
	page, err := s.auditStore.FindAll(context.Background(), audit.PageRequest{})
	s.Require().NoError(err)
	return page.Records
}

func (s *ServiceSuite) TestCreateTenantWritesAuditRecord() {
	tenant := s.seedTenant("Acme Clinic", "Acme.Example")

	s.Equal("acme.example", tenant.Domain)

	records := s.auditRecords()
	s.Require().Len(records, 1)
	s.Equal(audit.OperationCreate, records[0].Operation)
	s.Equal("Tenant", records[0].EntityType)
	s.Equal(tenant.ID.String(), records[0].TenantID)
	s.Contains(records[0].NewValues, "Acme Clinic")
}

func (s *ServiceSuite) TestCreateTenantRejectsDuplicateDomain() {
	s.seedTenant("Acme", "acme.example")

	_, err := s.service.CreateTenant(context.Background(), "Other", "acme.example")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Len(s.auditRecords(), 1)
}

func (s *ServiceSuite) TestCreateTenantRejectsInvalidInput() {
	_, err := s.service.CreateTenant(context.Background(), "", "acme.example")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Empty(s.auditRecords())
}

func (s *ServiceSuite) TestGetTenantCountsUsersByRole() {
	tenant := s.seedTenant("Acme", "acme.example")
	s.seedUser(tenant.ID, "admin@acme.example", usermodels.RoleAdmin)
	s.seedUser(tenant.ID, "emp1@acme.example", usermodels.RoleEmployee)
	s.seedUser(tenant.ID, "emp2@acme.example", usermodels.RoleEmployee)
	s.seedUser(tenant.ID, "client@acme.example", usermodels.RoleUser)

	details, err := s.service.GetTenant(context.Background(), tenant.ID)
	s.Require().NoError(err)
	s.Equal(1, details.AdminCount)
	s.Equal(2, details.EmployeeCount)
	s.Equal(1, details.CustomerCount)
}

func (s *ServiceSuite) TestGetTenantNotFound() {
	_, err := s.service.GetTenant(context.Background(), uuid.New())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestGetTenantByDomainIsCaseInsensitive() {
	tenant := s.seedTenant("Acme", "acme.example")

	details, err := s.service.GetTenantByDomain(context.Background(), "ACME.Example")
	s.Require().NoError(err)
	s.Equal(tenant.ID, details.Tenant.ID)
}

func (s *ServiceSuite) TestListTenantsFiltersByQuery() {
	s.seedTenant("Acme Clinic", "acme.example")
	s.seedTenant("Bright Dental", "bright.example")

	tenants, total, err := s.service.ListTenants(context.Background(), "acme", 0, 10)
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Require().Len(tenants, 1)
	s.Equal("Acme Clinic", tenants[0].Name)
}

func (s *ServiceSuite) TestUpdateTenantAuditsBeforeAndAfter() {
	tenant := s.seedTenant("Acme", "acme.example")

	updated, err := s.service.UpdateTenant(context.Background(), tenant.ID, "Acme Health", "acme-health.example")
	s.Require().NoError(err)
	s.Equal("Acme Health", updated.Name)

	records := s.auditRecords()
	s.Require().Len(records, 2)
	r := records[1]
	s.Equal(audit.OperationUpdate, r.Operation)
	s.Contains(r.OldValues, "acme.example")
	s.Contains(r.NewValues, "acme-health.example")
}

func (s *ServiceSuite) TestExists() {
	tenant := s.seedTenant("Acme", "acme.example")

	ok, err := s.service.Exists(context.Background(), tenant.ID)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.service.Exists(context.Background(), uuid.New())
	s.Require().NoError(err)
	s.False(ok)
}
