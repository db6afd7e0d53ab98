package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/r16a/metis/internal/tenant/models"
	"github.com/r16a/metis/pkg/sentinel"
	"github.com/r16a/metis/pkg/tx"
)

const uniqueViolation = "23505"

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

// execer returns the transaction carried by ctx when present so that
// multi-store operations share a single transaction.
func (s *Postgres) execer(ctx context.Context) querier {
	if t := tx.From(ctx); t != nil {
		return t
	}
	return s.db
}

const tenantColumns = "id, name, domain, created_at, updated_at"

func (s *Postgres) Create(ctx context.Context, tenant *models.Tenant) error {
	query := fmt.Sprintf("INSERT INTO tenants (%s) VALUES ($1, $2, $3, $4, $5)", tenantColumns)
	_, err := s.execer(ctx).ExecContext(ctx, query,
		tenant.ID, tenant.Name, tenant.Domain, tenant.CreatedAt, tenant.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := fmt.Sprintf("SELECT %s FROM tenants WHERE id = $1", tenantColumns)
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, id))
}

func (s *Postgres) FindByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	query := fmt.Sprintf("SELECT %s FROM tenants WHERE lower(domain) = lower($1)", tenantColumns)
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, domain))
}

func (s *Postgres) List(ctx context.Context, q string, offset, limit int) ([]*models.Tenant, int, error) {
	where := ""
	args := []any{}
	if q != "" {
		where = "WHERE name ILIKE $1 OR domain ILIKE $1 OR id::text = $2"
		args = append(args, "%"+q+"%", q)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM tenants " + where
	if err := s.execer(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM tenants %s ORDER BY created_at, id LIMIT $%d OFFSET $%d",
		tenantColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		var tenant models.Tenant
		if err := rows.Scan(&tenant.ID, &tenant.Name, &tenant.Domain, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, &tenant)
	}
	return tenants, total, rows.Err()
}

func (s *Postgres) Update(ctx context.Context, tenant *models.Tenant) error {
	query := "UPDATE tenants SET name = $2, domain = $3, updated_at = $4 WHERE id = $1"
	res, err := s.execer(ctx).ExecContext(ctx, query,
		tenant.ID, tenant.Name, tenant.Domain, tenant.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update tenant: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.execer(ctx).ExecContext(ctx, "DELETE FROM tenants WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) scanOne(row *sql.Row) (*models.Tenant, error) {
	var tenant models.Tenant
	err := row.Scan(&tenant.ID, &tenant.Name, &tenant.Domain, &tenant.CreatedAt, &tenant.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	return &tenant, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
