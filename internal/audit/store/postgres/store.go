package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/r16a/metis/internal/audit"
)

// Store persists audit records in the audit_records table.
//
// Unlike every other store in this repository, Store never picks up an
// ambient transaction from context: appends always run on the store's own
// connection pool so an audit record commits independently of whatever
// business transaction is in flight. Callers rolling back cannot unwind an
// appended record, and a failed append cannot poison a caller's transaction.
type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const recordColumns = `id, operation, entity_type, entity_id, old_values, new_values, performed_by, tenant_id, "timestamp", description`

func (s *Store) Append(ctx context.Context, record audit.Record) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	query := `
		INSERT INTO audit_records (id, operation, entity_type, entity_id, old_values, new_values, performed_by, tenant_id, "timestamp", description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		string(record.Operation),
		record.EntityType,
		record.EntityID,
		nullString(record.OldValues),
		nullString(record.NewValues),
		record.PerformedBy,
		nullString(record.TenantID),
		record.Timestamp,
		record.Description,
	)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (s *Store) FindAll(ctx context.Context, page audit.PageRequest) (audit.Page, error) {
	return s.findPage(ctx, page, "", nil)
}

func (s *Store) FindByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]audit.Record, error) {
	return s.findList(ctx, "WHERE entity_type = $1 AND entity_id = $2", entityType, entityID)
}

func (s *Store) FindByTenant(ctx context.Context, tenantID string, page audit.PageRequest) (audit.Page, error) {
	return s.findPage(ctx, page, "WHERE tenant_id = $1", []any{tenantID})
}

func (s *Store) FindByActor(ctx context.Context, performedBy string) ([]audit.Record, error) {
	return s.findList(ctx, "WHERE performed_by = $1", performedBy)
}

func (s *Store) FindByOperation(ctx context.Context, op audit.Operation) ([]audit.Record, error) {
	return s.findList(ctx, "WHERE operation = $1", string(op))
}

func (s *Store) FindByTimeRange(ctx context.Context, start, end time.Time, page audit.PageRequest) (audit.Page, error) {
	return s.findPage(ctx, page, `WHERE "timestamp" BETWEEN $1 AND $2`, []any{start, end})
}

func (s *Store) FindByTenantAndTimeRange(ctx context.Context, tenantID string, start, end time.Time, page audit.PageRequest) (audit.Page, error) {
	return s.findPage(ctx, page, `WHERE tenant_id = $1 AND "timestamp" BETWEEN $2 AND $3`, []any{tenantID, start, end})
}

func (s *Store) FindByEntityTypeAndTenant(ctx context.Context, entityType, tenantID string) ([]audit.Record, error) {
	return s.findList(ctx, "WHERE entity_type = $1 AND tenant_id = $2", entityType, tenantID)
}

func (s *Store) findPage(ctx context.Context, page audit.PageRequest, where string, args []any) (audit.Page, error) {
	page = page.Normalize()

	countQuery := "SELECT COUNT(*) FROM audit_records " + where
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return audit.Page{}, fmt.Errorf("count audit records: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM audit_records %s ORDER BY "timestamp", id LIMIT $%d OFFSET $%d`,
		recordColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, page.Limit, page.Offset)

	records, err := s.query(ctx, query, args...)
	if err != nil {
		return audit.Page{}, err
	}
	return audit.Page{
		Records:    records,
		TotalCount: total,
		Offset:     page.Offset,
		Limit:      page.Limit,
	}, nil
}

func (s *Store) findList(ctx context.Context, where string, args ...any) ([]audit.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_records %s ORDER BY "timestamp", id`, recordColumns, where)
	return s.query(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		var (
			r         audit.Record
			operation string
			entityID  uuid.NullUUID
			oldValues sql.NullString
			newValues sql.NullString
			tenantID  sql.NullString
		)
		if err := rows.Scan(&r.ID, &operation, &r.EntityType, &entityID, &oldValues, &newValues, &r.PerformedBy, &tenantID, &r.Timestamp, &r.Description); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.Operation = audit.Operation(operation)
		if entityID.Valid {
			id := entityID.UUID
			r.EntityID = &id
		}
		r.OldValues = oldValues.String
		r.NewValues = newValues.String
		r.TenantID = tenantID.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
