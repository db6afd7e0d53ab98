package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/r16a/metis/internal/audit"
	"github.com/r16a/metis/internal/user/models"
	dErrors "github.com/r16a/metis/pkg/domain-errors"
	"github.com/r16a/metis/pkg/requestcontext"
	"github.com/r16a/metis/pkg/sentinel"
)

const entityType = "User"

// Store persists users.
type Store interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*models.User, int, error)
	Update(ctx context.Context, user *models.User) error
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

// CreateUserInput carries the fields accepted on registration.
type CreateUserInput struct {
	Email    string
	Name     string
	Surname  string
	Password string
	TenantID *uuid.UUID
	Roles    []models.Role
}

// CreateUser registers a user, hashing the password and linking roles.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if len(in.Password) < 8 {
		return nil, dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user, err := models.NewUser(uuid.New(), in.Email, in.Name, in.Surname,
		in.TenantID, in.Roles, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	user.PasswordHash = string(hash)

	if in.TenantID != nil && s.tenants != nil {
		ok, err := s.tenants.Exists(ctx, *in.TenantID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check tenant")
		}
		if !ok {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
	}

	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	if s.auditLog != nil {
		s.auditLog.LogCreate(ctx, entityType, user.ID, user, tenantScope(user))
	}
	s.logger.InfoContext(ctx, "created user", "user_id", user.ID, "email", user.Email)
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapUserErr(err)
	}
	return user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "email is required")
	}
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, wrapUserErr(err)
	}
	return user, nil
}

func (s *Service) ListUsersByTenant(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*models.User, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	users, total, err := s.store.ListByTenant(ctx, tenantID, offset, limit)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return users, total, nil
}

// UpdateUserInput carries the mutable profile fields. Nil means unchanged.
type UpdateUserInput struct {
	Name    *string
	Surname *string
	Roles   []models.Role
}

// UpdateUser applies a partial profile update, auditing before/after state.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*models.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapUserErr(err)
	}

	old := user.Clone()

	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Surname != nil {
		user.Surname = strings.TrimSpace(*in.Surname)
	}
	if in.Roles != nil {
		for _, role := range in.Roles {
			if !role.Valid() {
				return nil, dErrors.New(dErrors.CodeValidation, "unknown role: "+string(role))
			}
		}
		user.Roles = append([]models.Role(nil), in.Roles...)
	}
	user.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Update(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
	}

	if s.auditLog != nil {
		s.auditLog.LogUpdate(ctx, entityType, user.ID, old, user, tenantScope(user))
	}
	s.logger.InfoContext(ctx, "updated user", "user_id", user.ID)
	return user, nil
}

// DeleteUser removes a single user and writes a DELETE audit record carrying
// the pre-deletion state.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return wrapUserErr(err)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return wrapUserErr(err)
	}

	if s.auditLog != nil {
		s.auditLog.LogDelete(ctx, entityType, user.ID, user, tenantScope(user))
	}
	s.logger.InfoContext(ctx, "deleted user", "user_id", user.ID)
	return nil
}

// Authenticate checks credentials and returns the user on success.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return user, nil
}

// tenantScope returns the audit tenant scope, empty for global users.
func tenantScope(user *models.User) string {
	if user.TenantID == nil {
		return ""
	}
	return user.TenantID.String()
}

func wrapUserErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
}
