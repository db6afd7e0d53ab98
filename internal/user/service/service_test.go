package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/r16a/metis/internal/audit"
	auditmemory "github.com/r16a/metis/internal/audit/store/memory"
	"github.com/r16a/metis/internal/user/models"
	"github.com/r16a/metis/internal/user/service"
	userstore "github.com/r16a/metis/internal/user/store"
	dErrors "github.com/r16a/metis/pkg/domain-errors"
)

type allowAllTenants struct{}

func (allowAllTenants) Exists(context.Context, uuid.UUID) (bool, error) { return true, nil }

type noTenants struct{}

func (noTenants) Exists(context.Context, uuid.UUID) (bool, error) { return false, nil }

type UserServiceSuite struct {
	suite.Suite
	store      *userstore.InMemory
	auditStore *auditmemory.InMemoryStore
	service    *service.Service
}

func TestUserServiceSuite(t *testing.T) {
	suite.Run(t, new(UserServiceSuite))
}

func (s *UserServiceSuite) SetupTest() {
	s.store = userstore.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.service = service.New(s.store,
		service.WithAuditLogger(audit.NewWriter(s.auditStore)),
		service.WithTenantChecker(allowAllTenants{}),
	)
}

func (s *UserServiceSuite) createUser(email string, roles ...models.Role) *models.User {
	tenantID := uuid.New()
	user, err := s.service.CreateUser(context.Background(), service.CreateUserInput{
		Email:    email,
		Name:     "Test",
		Surname:  "User",
		Password: "correct horse battery",
		TenantID: &tenantID,
		Roles:    roles,
	})
	s.Require().NoError(err)
	return user
}

func (s *UserServiceSuite) auditRecords() []audit.Record {
	page, err := s.auditStore.FindAll(context.Background(), audit.PageRequest{})
	s.Require().NoError(err)
	return page.Records
}

func (s *UserServiceSuite) TestCreateUserHashesPassword() {
	user := s.createUser("alice@acme.example", models.RoleEmployee)

	s.NotEqual("correct horse battery", user.PasswordHash)
	s.NoError(bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse battery")))
}

func (s *UserServiceSuite) TestCreateUserAuditSnapshotOmitsPassword() {
	s.createUser("alice@acme.example", models.RoleEmployee)

	records := s.auditRecords()
	s.Require().Len(records, 1)
	s.Equal("User", records[0].EntityType)
	s.NotContains(records[0].NewValues, "password")
	s.Contains(records[0].NewValues, "alice@acme.example")
}

func (s *UserServiceSuite) TestCreateUserRejectsShortPassword() {
	_, err := s.service.CreateUser(context.Background(), service.CreateUserInput{
		Email:    "alice@acme.example",
		Password: "short",
		Roles:    []models.Role{models.RoleUser},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Empty(s.auditRecords())
}

func (s *UserServiceSuite) TestCreateUserRejectsDuplicateEmail() {
	s.createUser("alice@acme.example", models.RoleEmployee)

	_, err := s.service.CreateUser(context.Background(), service.CreateUserInput{
		Email:    "ALICE@acme.example",
		Password: "correct horse battery",
		Roles:    []models.Role{models.RoleUser},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *UserServiceSuite) TestCreateUserRejectsUnknownTenant() {
	svc := service.New(s.store, service.WithTenantChecker(noTenants{}))
	tenantID := uuid.New()

	_, err := svc.CreateUser(context.Background(), service.CreateUserInput{
		Email:    "alice@acme.example",
		Password: "correct horse battery",
		TenantID: &tenantID,
		Roles:    []models.Role{models.RoleUser},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *UserServiceSuite) TestGlobalUserHasNoTenantScope() {
	user, err := s.service.CreateUser(context.Background(), service.CreateUserInput{
		Email:    "root@platform.example",
		Password: "correct horse battery",
		Roles:    []models.Role{models.RoleGlobalAdmin},
	})
	s.Require().NoError(err)
	s.Nil(user.TenantID)

	records := s.auditRecords()
	s.Require().Len(records, 1)
	s.Empty(records[0].TenantID)
}

func (s *UserServiceSuite) TestUpdateUserAuditsBeforeAndAfter() {
	user := s.createUser("alice@acme.example", models.RoleEmployee)

	name := "Alicia"
	updated, err := s.service.UpdateUser(context.Background(), user.ID, service.UpdateUserInput{
		Name:  &name,
		Roles: []models.Role{models.RoleAdmin},
	})
	s.Require().NoError(err)
	s.Equal("Alicia", updated.Name)
	s.True(updated.HasRole(models.RoleAdmin))

	records := s.auditRecords()
	s.Require().Len(records, 2)
	s.Equal(audit.OperationUpdate, records[1].Operation)
	s.Contains(records[1].OldValues, "EMPLOYEE")
	s.Contains(records[1].NewValues, "ADMIN")
}

func (s *UserServiceSuite) TestUpdateUserRejectsUnknownRole() {
	user := s.createUser("alice@acme.example", models.RoleEmployee)

	_, err := s.service.UpdateUser(context.Background(), user.ID, service.UpdateUserInput{
		Roles: []models.Role{"SUPERUSER"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *UserServiceSuite) TestDeleteUserAuditsOldState() {
	user := s.createUser("alice@acme.example", models.RoleEmployee)

	s.Require().NoError(s.service.DeleteUser(context.Background(), user.ID))

	_, err := s.service.GetUser(context.Background(), user.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	records := s.auditRecords()
	s.Require().Len(records, 2)
	s.Equal(audit.OperationDelete, records[1].Operation)
	s.Contains(records[1].OldValues, "alice@acme.example")
	s.Empty(records[1].NewValues)
}

func (s *UserServiceSuite) TestAuthenticate() {
	s.createUser("alice@acme.example", models.RoleEmployee)

	user, err := s.service.Authenticate(context.Background(), "Alice@acme.example", "correct horse battery")
	s.Require().NoError(err)
	s.Equal("alice@acme.example", user.Email)

	_, err = s.service.Authenticate(context.Background(), "alice@acme.example", "wrong")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.Authenticate(context.Background(), "nobody@acme.example", "correct horse battery")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
