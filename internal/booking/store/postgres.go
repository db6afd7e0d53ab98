package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/r16a/metis/internal/booking/models"
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

const bookingColumns = "id, tenant_id, employee_id, service_id, client_name, client_email, start_time, end_time, status, created_at, updated_at"

func (s *Postgres) Create(ctx context.Context, booking *models.Booking) error {
	query := fmt.Sprintf("INSERT INTO bookings (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)", bookingColumns)
	_, err := s.execer(ctx).ExecContext(ctx, query,
		booking.ID, booking.TenantID, booking.EmployeeID, booking.OfferingID,
		booking.ClientName, booking.ClientEmail, booking.StartTime, booking.EndTime,
		string(booking.Status), booking.CreatedAt, booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings WHERE id = $1", bookingColumns)
	booking, err := scanBooking(s.execer(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return booking, err
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*models.Booking, int, error) {
	var total int
	if err := s.execer(ctx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE tenant_id = $1", tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM bookings WHERE tenant_id = $1 ORDER BY start_time, id LIMIT $2 OFFSET $3", bookingColumns)
	rows, err := s.execer(ctx).QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, total, rows.Err()
}

func (s *Postgres) Update(ctx context.Context, booking *models.Booking) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		"UPDATE bookings SET employee_id = $2, service_id = $3, client_name = $4, client_email = $5, start_time = $6, end_time = $7, status = $8, updated_at = $9 WHERE id = $1",
		booking.ID, booking.EmployeeID, booking.OfferingID, booking.ClientName, booking.ClientEmail,
		booking.StartTime, booking.EndTime, string(booking.Status), booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.execer(ctx).ExecContext(ctx, "DELETE FROM bookings WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE tenant_id = $1", tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count bookings by tenant: %w", err)
	}
	return count, nil
}

func (s *Postgres) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, "DELETE FROM bookings WHERE tenant_id = $1", tenantID)
	if err != nil {
		return 0, fmt.Errorf("delete bookings by tenant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(r rowScanner) (*models.Booking, error) {
	var booking models.Booking
	var status string
	err := r.Scan(&booking.ID, &booking.TenantID, &booking.EmployeeID, &booking.OfferingID,
		&booking.ClientName, &booking.ClientEmail, &booking.StartTime, &booking.EndTime,
		&status, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return nil, err
	}
	booking.Status = models.Status(status)
	return &booking, nil
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
