//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/r16a/metis/internal/audit"
	"github.com/r16a/metis/internal/audit/store/postgres"
	"github.com/r16a/metis/pkg/testutil"
	"github.com/r16a/metis/pkg/tx"
)

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	store *postgres.Store
	base  time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.db = testutil.StartPostgres(s.T())
	s.store = postgres.New(s.db)
	s.base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	testutil.TruncateTables(s.T(), s.db, "audit_records")
}

func (s *PostgresStoreSuite) append(op audit.Operation, entityType, tenantID string, entityID *uuid.UUID, at time.Time) audit.Record {
	r := audit.Record{
		ID:          uuid.New(),
		Operation:   op,
		EntityType:  entityType,
		EntityID:    entityID,
		PerformedBy: "SYSTEM",
		TenantID:    tenantID,
		Timestamp:   at,
		Description: "test record",
	}
	s.Require().NoError(s.store.Append(context.Background(), r))
	return r
}

func (s *PostgresStoreSuite) TestAppendAndFindAll() {
	id := uuid.New()
	s.append(audit.OperationCreate, "Tenant", "t1", &id, s.base)
	s.append(audit.OperationUpdate, "Tenant", "t1", &id, s.base.Add(time.Minute))

	page, err := s.store.FindAll(context.Background(), audit.PageRequest{})
	s.Require().NoError(err)
	s.Equal(2, page.TotalCount)
	s.Require().Len(page.Records, 2)
	s.Equal(audit.OperationCreate, page.Records[0].Operation)
	s.Equal(audit.OperationUpdate, page.Records[1].Operation)
}

func (s *PostgresStoreSuite) TestBulkRecordRoundTrip() {
	r := audit.Record{
		ID:          uuid.New(),
		Operation:   audit.OperationDelete,
		EntityType:  "Tenant",
		PerformedBy: "admin@platform.example",
		TenantID:    "t1",
		Timestamp:   s.base,
		Description: "Deleted tenant 'Acme' and all related data: 2 users, 1 services, 0 bookings",
	}
	s.Require().NoError(s.store.Append(context.Background(), r))

	page, err := s.store.FindAll(context.Background(), audit.PageRequest{})
	s.Require().NoError(err)
	s.Require().Len(page.Records, 1)
	got := page.Records[0]
	s.Nil(got.EntityID)
	s.Empty(got.OldValues)
	s.Empty(got.NewValues)
	s.Equal(r.Description, got.Description)
}

func (s *PostgresStoreSuite) TestGlobalRecordHasEmptyTenant() {
	id := uuid.New()
	s.append(audit.OperationCreate, "User", "", &id, s.base)

	page, err := s.store.FindAll(context.Background(), audit.PageRequest{})
	s.Require().NoError(err)
	s.Require().Len(page.Records, 1)
	s.Empty(page.Records[0].TenantID)
}

func (s *PostgresStoreSuite) TestPagination() {
	for i := 0; i < 5; i++ {
		id := uuid.New()
		s.append(audit.OperationCreate, "User", "t1", &id, s.base.Add(time.Duration(i)*time.Second))
	}

	page, err := s.store.FindAll(context.Background(), audit.PageRequest{Offset: 3, Limit: 10})
	s.Require().NoError(err)
	s.Equal(5, page.TotalCount)
	s.Len(page.Records, 2)
}

func (s *PostgresStoreSuite) TestFindByTenantAndTimeRange() {
	id := uuid.New()
	s.append(audit.OperationCreate, "User", "t1", &id, s.base)
	s.append(audit.OperationCreate, "User", "t2", &id, s.base)
	s.append(audit.OperationCreate, "User", "t1", &id, s.base.Add(3*time.Hour))

	page, err := s.store.FindByTenantAndTimeRange(context.Background(), "t1",
		s.base.Add(-time.Minute), s.base.Add(time.Minute), audit.PageRequest{})
	s.Require().NoError(err)
	s.Equal(1, page.TotalCount)
}

// Appends run on the store's own pool, so a rollback of the surrounding
// business transaction leaves the audit record in place.
func (s *PostgresStoreSuite) TestAppendSurvivesCallerRollback() {
	runner := tx.NewRunner(s.db, time.Minute)
	id := uuid.New()

	boom := errors.New("boom")
	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		// ctx carries the doomed transaction; the audit store must not join it.
		return errors.Join(s.store.Append(ctx, audit.Record{
			ID:          uuid.New(),
			Operation:   audit.OperationCreate,
			EntityType:  "Tenant",
			EntityID:    &id,
			PerformedBy: "SYSTEM",
			TenantID:    "t1",
			Timestamp:   s.base,
		}), boom)
	})
	s.Require().ErrorIs(err, boom)

	records, err := s.store.FindByEntity(context.Background(), "Tenant", id)
	s.Require().NoError(err)
	s.Len(records, 1)
}
