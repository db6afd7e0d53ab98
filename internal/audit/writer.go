package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditmetrics "github.com/r16a/metis/internal/audit/metrics"
	"github.com/r16a/metis/pkg/requestcontext"
)

// ActorResolver determines who performed an operation from ambient request
// context. It never fails; absence of an authenticated principal resolves to
// the SYSTEM sentinel.
type ActorResolver func(ctx context.Context) string

// Writer is the single write path into the audit trail.
//
// Isolation guarantee: the store handed to the writer appends through its
// own connection handle and never joins a caller's transaction, so an audit
// record commits even if the surrounding business transaction later rolls
// back — and a failure inside the audit write never rolls the caller back.
// The trail is forensic: best-effort relative to business correctness.
//
// Consequently the Log methods return nothing. Serialization failures are
// swallowed (warn log, counter, no record). Storage failures are logged at
// error level and counted on WriteFailures; alerting watches the counter.
type Writer struct {
	store        Store
	resolveActor ActorResolver
	logger       *slog.Logger
	metrics      *auditmetrics.Metrics
	sink         chan<- Record
}

type WriterOption func(*Writer)

func WithLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

func WithMetrics(m *auditmetrics.Metrics) WriterOption {
	return func(w *Writer) {
		w.metrics = m
	}
}

// WithActorResolver overrides actor resolution, mainly for tests.
func WithActorResolver(resolver ActorResolver) WriterOption {
	return func(w *Writer) {
		if resolver != nil {
			w.resolveActor = resolver
		}
	}
}

// WithSink fans appended records out to a channel (consumed by the Kafka
// relay). Sends are non-blocking: a full sink drops the fan-out copy, never
// the durable record.
func WithSink(sink chan<- Record) WriterOption {
	return func(w *Writer) {
		w.sink = sink
	}
}

// NewWriter constructs a Writer over an append-only store.
func NewWriter(store Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:        store,
		resolveActor: requestcontext.Actor,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// LogCreate records the creation of an entity.
func (w *Writer) LogCreate(ctx context.Context, entityType string, entityID uuid.UUID, entity Snapshotter, tenantID string) {
	newValues, ok := w.serialize(ctx, entityType, entity)
	if !ok {
		return
	}
	w.append(ctx, Record{
		Operation:   OperationCreate,
		EntityType:  entityType,
		EntityID:    &entityID,
		NewValues:   newValues,
		TenantID:    tenantID,
		Description: fmt.Sprintf("Created %s with ID: %s", entityType, entityID),
	})
}

// LogUpdate records a mutation with before and after snapshots.
func (w *Writer) LogUpdate(ctx context.Context, entityType string, entityID uuid.UUID, oldEntity, newEntity Snapshotter, tenantID string) {
	oldValues, ok := w.serialize(ctx, entityType, oldEntity)
	if !ok {
		return
	}
	newValues, ok := w.serialize(ctx, entityType, newEntity)
	if !ok {
		return
	}
	w.append(ctx, Record{
		Operation:   OperationUpdate,
		EntityType:  entityType,
		EntityID:    &entityID,
		OldValues:   oldValues,
		NewValues:   newValues,
		TenantID:    tenantID,
		Description: fmt.Sprintf("Updated %s with ID: %s", entityType, entityID),
	})
}

// LogDelete records the deletion of a single entity.
func (w *Writer) LogDelete(ctx context.Context, entityType string, entityID uuid.UUID, entity Snapshotter, tenantID string) {
	oldValues, ok := w.serialize(ctx, entityType, entity)
	if !ok {
		return
	}
	w.append(ctx, Record{
		Operation:   OperationDelete,
		EntityType:  entityType,
		EntityID:    &entityID,
		OldValues:   oldValues,
		TenantID:    tenantID,
		Description: fmt.Sprintf("Deleted %s with ID: %s", entityType, entityID),
	})
}

// LogBulkDelete records one summary entry for a multi-entity deletion. No
// single entity identity applies, so EntityID stays nil and the caller
// supplies the description.
func (w *Writer) LogBulkDelete(ctx context.Context, entityType string, description string, tenantID string) {
	w.append(ctx, Record{
		Operation:   OperationDelete,
		EntityType:  entityType,
		TenantID:    tenantID,
		Description: description,
	})
}

func (w *Writer) serialize(ctx context.Context, entityType string, entity Snapshotter) (string, bool) {
	serialized, err := Serialize(entity)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to serialize entity for audit record",
			"entity_type", entityType,
			"error", err,
		)
		if w.metrics != nil {
			w.metrics.SerializationFailures.Inc()
		}
		return "", false
	}
	return serialized, true
}

func (w *Writer) append(ctx context.Context, record Record) {
	record.ID = uuid.New()
	record.PerformedBy = w.resolveActor(ctx)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	if err := w.store.Append(ctx, record); err != nil {
		w.logger.ErrorContext(ctx, "failed to append audit record",
			"operation", record.Operation,
			"entity_type", record.EntityType,
			"error", err,
		)
		if w.metrics != nil {
			w.metrics.WriteFailures.Inc()
		}
		return
	}

	w.logger.DebugContext(ctx, "audit record appended",
		"operation", record.Operation,
		"entity_type", record.EntityType,
	)
	if w.metrics != nil {
		w.metrics.RecordsWritten.WithLabelValues(string(record.Operation)).Inc()
	}
	if w.sink != nil {
		select {
		case w.sink <- record:
		default:
		}
	}
}
