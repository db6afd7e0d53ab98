package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/r16a/metis/internal/offering/models"
	"github.com/r16a/metis/pkg/sentinel"
	"github.com/r16a/metis/pkg/tx"
)

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

const offeringColumns = "id, tenant_id, name, duration_minutes, price, created_at, updated_at"

func (s *Postgres) Create(ctx context.Context, offering *models.Offering) error {
	query := fmt.Sprintf("INSERT INTO services (%s) VALUES ($1, $2, $3, $4, $5, $6, $7)", offeringColumns)
	_, err := s.execer(ctx).ExecContext(ctx, query,
		offering.ID, offering.TenantID, offering.Name, offering.DurationMinutes,
		offering.Price, offering.CreatedAt, offering.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Offering, error) {
	query := fmt.Sprintf("SELECT %s FROM services WHERE id = $1", offeringColumns)
	var offering models.Offering
	err := s.execer(ctx).QueryRowContext(ctx, query, id).Scan(
		&offering.ID, &offering.TenantID, &offering.Name, &offering.DurationMinutes,
		&offering.Price, &offering.CreatedAt, &offering.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan service: %w", err)
	}
	return &offering, nil
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*models.Offering, int, error) {
	var total int
	if err := s.execer(ctx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM services WHERE tenant_id = $1", tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count services: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM services WHERE tenant_id = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3", offeringColumns)
	rows, err := s.execer(ctx).QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var offerings []*models.Offering
	for rows.Next() {
		var offering models.Offering
		if err := rows.Scan(&offering.ID, &offering.TenantID, &offering.Name, &offering.DurationMinutes,
			&offering.Price, &offering.CreatedAt, &offering.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan service: %w", err)
		}
		offerings = append(offerings, &offering)
	}
	return offerings, total, rows.Err()
}

func (s *Postgres) Update(ctx context.Context, offering *models.Offering) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		"UPDATE services SET name = $2, duration_minutes = $3, price = $4, updated_at = $5 WHERE id = $1",
		offering.ID, offering.Name, offering.DurationMinutes, offering.Price, offering.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.execer(ctx).ExecContext(ctx, "DELETE FROM services WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM services WHERE tenant_id = $1", tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count services by tenant: %w", err)
	}
	return count, nil
}

func (s *Postgres) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, "DELETE FROM services WHERE tenant_id = $1", tenantID)
	if err != nil {
		return 0, fmt.Errorf("delete services by tenant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
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
