package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/r16a/metis/internal/user/models"
	"github.com/r16a/metis/pkg/sentinel"
	"github.com/r16a/metis/pkg/tx"
)

const uniqueViolation = "23505"

// Postgres persists users across three tables: users, the roles catalog, and
// the user_roles link table. The catalog is seeded by migrations and is never
// written here; only link rows are inserted and removed.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) querier {
	if t := tx.From(ctx); t != nil {
		return t
	}
	return s.db
}

const userColumns = "u.id, u.email, u.name, u.surname, u.password_hash, u.tenant_id, u.created_at, u.updated_at"

func (s *Postgres) Create(ctx context.Context, user *models.User) error {
	q := s.execer(ctx)
	_, err := q.ExecContext(ctx,
		"INSERT INTO users (id, email, name, surname, password_hash, tenant_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		user.ID, user.Email, user.Name, user.Surname, user.PasswordHash, user.TenantID, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return s.replaceRoles(ctx, q, user.ID, user.Roles)
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users u WHERE u.id = $1", userColumns)
	user, err := s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users u WHERE lower(u.email) = lower($1)", userColumns)
	user, err := s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, err
	}
	if err := s.loadRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*models.User, int, error) {
	var total int
	if err := s.execer(ctx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE tenant_id = $1", tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM users u WHERE u.tenant_id = $1 ORDER BY u.created_at, u.id LIMIT $2 OFFSET $3", userColumns)
	rows, err := s.execer(ctx).QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, user := range users {
		if err := s.loadRoles(ctx, user); err != nil {
			return nil, 0, err
		}
	}
	return users, total, nil
}

func (s *Postgres) Update(ctx context.Context, user *models.User) error {
	q := s.execer(ctx)
	res, err := q.ExecContext(ctx,
		"UPDATE users SET email = $2, name = $3, surname = $4, password_hash = $5, updated_at = $6 WHERE id = $1",
		user.ID, user.Email, user.Name, user.Surname, user.PasswordHash, user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id = $1", user.ID); err != nil {
		return fmt.Errorf("clear user roles: %w", err)
	}
	return s.replaceRoles(ctx, q, user.ID, user.Roles)
}

func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	q := s.execer(ctx)
	if _, err := q.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id = $1", id); err != nil {
		return fmt.Errorf("delete user roles: %w", err)
	}
	res, err := q.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE tenant_id = $1", tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users by tenant: %w", err)
	}
	return count, nil
}

func (s *Postgres) CountByTenantAndRole(ctx context.Context, tenantID uuid.UUID, role models.Role) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT u.id) FROM users u
		 JOIN user_roles ur ON ur.user_id = u.id
		 JOIN roles r ON r.id = ur.role_id
		 WHERE u.tenant_id = $1 AND r.name = $2`, tenantID, string(role)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return count, nil
}

// DeleteByTenant removes the tenant's users together with their role links.
// The roles catalog itself is shared across tenants and stays intact.
func (s *Postgres) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	q := s.execer(ctx)
	_, err := q.ExecContext(ctx,
		"DELETE FROM user_roles WHERE user_id IN (SELECT id FROM users WHERE tenant_id = $1)", tenantID)
	if err != nil {
		return 0, fmt.Errorf("delete user roles by tenant: %w", err)
	}
	res, err := q.ExecContext(ctx, "DELETE FROM users WHERE tenant_id = $1", tenantID)
	if err != nil {
		return 0, fmt.Errorf("delete users by tenant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (s *Postgres) replaceRoles(ctx context.Context, q querier, userID uuid.UUID, roles []models.Role) error {
	for _, role := range roles {
		res, err := q.ExecContext(ctx,
			"INSERT INTO user_roles (user_id, role_id) SELECT $1, id FROM roles WHERE name = $2",
			userID, string(role))
		if err != nil {
			return fmt.Errorf("link role %s: %w", role, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("link role %s: role not in catalog", role)
		}
	}
	return nil
}

func (s *Postgres) loadRoles(ctx context.Context, user *models.User) error {
	rows, err := s.execer(ctx).QueryContext(ctx,
		"SELECT r.name FROM roles r JOIN user_roles ur ON ur.role_id = r.id WHERE ur.user_id = $1 ORDER BY r.name",
		user.ID)
	if err != nil {
		return fmt.Errorf("load roles: %w", err)
	}
	defer rows.Close()
	user.Roles = nil
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan role: %w", err)
		}
		user.Roles = append(user.Roles, models.Role(name))
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanOne(row *sql.Row) (*models.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return user, err
}

func scanUser(r rowScanner) (*models.User, error) {
	var user models.User
	var tenantID uuid.NullUUID
	err := r.Scan(&user.ID, &user.Email, &user.Name, &user.Surname, &user.PasswordHash,
		&tenantID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if tenantID.Valid {
		user.TenantID = &tenantID.UUID
	}
	return &user, nil
}
