package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/r16a/metis/internal/audit"
	auditmemory "github.com/r16a/metis/internal/audit/store/memory"
	"github.com/r16a/metis/internal/offering/models"
	"github.com/r16a/metis/internal/offering/service"
	offeringstore "github.com/r16a/metis/internal/offering/store"
	dErrors "github.com/r16a/metis/pkg/domain-errors"
)

type allowAllTenants struct{}

func (allowAllTenants) Exists(context.Context, uuid.UUID) (bool, error) { return true, nil }

type OfferingServiceSuite struct {
	suite.Suite
	store      *offeringstore.InMemory
	auditStore *auditmemory.InMemoryStore
	service    *service.Service
	tenantID   uuid.UUID
}

func TestOfferingServiceSuite(t *testing.T) {
	suite.Run(t, new(OfferingServiceSuite))
}

func (s *OfferingServiceSuite) SetupTest() {
	s.store = offeringstore.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.service = service.New(s.store,
		service.WithAuditLogger(audit.NewWriter(s.auditStore)),
		service.WithTenantChecker(allowAllTenants{}),
	)
	s.tenantID = uuid.New()
}

func (s *OfferingServiceSuite) TestCreateOfferingAuditsWithTenantScope() {
	offering, err := s.service.CreateOffering(context.Background(), s.tenantID, "Checkup", 30, 49.99)
	s.Require().NoError(err)
	s.Equal(s.tenantID, offering.TenantID)

	records, err := s.auditStore.FindByEntityTypeAndTenant(context.Background(), models.EntityType, s.tenantID.String())
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(audit.OperationCreate, records[0].Operation)
	s.Contains(records[0].NewValues, "Checkup")
}

func (s *OfferingServiceSuite) TestCreateOfferingValidation() {
	_, err := s.service.CreateOffering(context.Background(), s.tenantID, "", 30, 10)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.CreateOffering(context.Background(), s.tenantID, "Checkup", 0, 10)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.CreateOffering(context.Background(), s.tenantID, "Checkup", 30, -1)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Zero(s.auditStore.Count())
}

func (s *OfferingServiceSuite) TestUpdateOfferingAuditsBeforeAndAfter() {
	offering, err := s.service.CreateOffering(context.Background(), s.tenantID, "Checkup", 30, 49.99)
	s.Require().NoError(err)

	updated, err := s.service.UpdateOffering(context.Background(), offering.ID, "Extended Checkup", 60, 89.99)
	s.Require().NoError(err)
	s.Equal(60, updated.DurationMinutes)

	records, err := s.auditStore.FindByOperation(context.Background(), audit.OperationUpdate)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Contains(records[0].OldValues, "Checkup")
	s.Contains(records[0].NewValues, "Extended Checkup")
}

func (s *OfferingServiceSuite) TestDeleteOffering() {
	offering, err := s.service.CreateOffering(context.Background(), s.tenantID, "Checkup", 30, 49.99)
	s.Require().NoError(err)

	s.Require().NoError(s.service.DeleteOffering(context.Background(), offering.ID))

	_, err = s.service.GetOffering(context.Background(), offering.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	records, err := s.auditStore.FindByOperation(context.Background(), audit.OperationDelete)
	s.Require().NoError(err)
	s.Len(records, 1)
}
