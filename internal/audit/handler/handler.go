package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/r16a/metis/internal/audit"
	"github.com/r16a/metis/internal/platform/middleware"
	"github.com/r16a/metis/internal/transport/http/shared"
	dErrors "github.com/r16a/metis/pkg/domain-errors"
)

// Reader is the read-only query surface the handler consumes. Appending is
// not reachable from HTTP; only the Writer appends.
type Reader interface {
	FindAll(ctx context.Context, page audit.PageRequest) (audit.Page, error)
	FindByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]audit.Record, error)
	FindByTenant(ctx context.Context, tenantID string, page audit.PageRequest) (audit.Page, error)
	FindByActor(ctx context.Context, performedBy string) ([]audit.Record, error)
	FindByOperation(ctx context.Context, op audit.Operation) ([]audit.Record, error)
	FindByTimeRange(ctx context.Context, start, end time.Time, page audit.PageRequest) (audit.Page, error)
	FindByTenantAndTimeRange(ctx context.Context, tenantID string, start, end time.Time, page audit.PageRequest) (audit.Page, error)
	FindByEntityTypeAndTenant(ctx context.Context, entityType, tenantID string) ([]audit.Record, error)
}

// Handler serves the administrative audit query API. Authorization is
// enforced by the admin router it is mounted on.
type Handler struct {
	logger *slog.Logger
	store  Reader
}

func New(store Reader, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, store: store}
}

// Register registers the audit query routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/records", h.handleFindAll)
	r.Get("/audit/records/entity/{entityType}/{entityID}", h.handleFindByEntity)
	r.Get("/audit/records/tenant/{tenantID}", h.handleFindByTenant)
	r.Get("/audit/records/actor/{actor}", h.handleFindByActor)
	r.Get("/audit/records/operation/{operation}", h.handleFindByOperation)
	r.Get("/audit/records/range", h.handleFindByTimeRange)
	r.Get("/audit/records/tenant/{tenantID}/range", h.handleFindByTenantAndTimeRange)
	r.Get("/audit/records/entity-type/{entityType}/tenant/{tenantID}", h.handleFindByEntityTypeAndTenant)
}

func (h *Handler) handleFindAll(w http.ResponseWriter, r *http.Request) {
	page, err := h.store.FindAll(r.Context(), parsePage(r))
	if err != nil {
		h.writeStoreError(w, r, "failed to list audit records", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleFindByEntity(w http.ResponseWriter, r *http.Request) {
	entityID, err := uuid.Parse(chi.URLParam(r, "entityID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid entity id"))
		return
	}
	records, err := h.store.FindByEntity(r.Context(), chi.URLParam(r, "entityType"), entityID)
	if err != nil {
		h.writeStoreError(w, r, "failed to query audit records by entity", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, recordList(records))
}

func (h *Handler) handleFindByTenant(w http.ResponseWriter, r *http.Request) {
	page, err := h.store.FindByTenant(r.Context(), chi.URLParam(r, "tenantID"), parsePage(r))
	if err != nil {
		h.writeStoreError(w, r, "failed to query audit records by tenant", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleFindByActor(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.FindByActor(r.Context(), chi.URLParam(r, "actor"))
	if err != nil {
		h.writeStoreError(w, r, "failed to query audit records by actor", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, recordList(records))
}

func (h *Handler) handleFindByOperation(w http.ResponseWriter, r *http.Request) {
	op := audit.Operation(chi.URLParam(r, "operation"))
	if !op.Valid() {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown operation"))
		return
	}
	records, err := h.store.FindByOperation(r.Context(), op)
	if err != nil {
		h.writeStoreError(w, r, "failed to query audit records by operation", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, recordList(records))
}

func (h *Handler) handleFindByTimeRange(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	page, err := h.store.FindByTimeRange(r.Context(), start, end, parsePage(r))
	if err != nil {
		h.writeStoreError(w, r, "failed to query audit records by time range", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleFindByTenantAndTimeRange(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	page, err := h.store.FindByTenantAndTimeRange(r.Context(), chi.URLParam(r, "tenantID"), start, end, parsePage(r))
	if err != nil {
		h.writeStoreError(w, r, "failed to query audit records by tenant and time range", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleFindByEntityTypeAndTenant(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.FindByEntityTypeAndTenant(r.Context(), chi.URLParam(r, "entityType"), chi.URLParam(r, "tenantID"))
	if err != nil {
		h.writeStoreError(w, r, "failed to query audit records by entity type and tenant", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, recordList(records))
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		"error", err.Error(),
		"request_id", middleware.GetRequestID(r.Context()),
	)
	shared.WriteError(w, dErrors.New(dErrors.CodeInternal, msg))
}

// recordList keeps empty results as [] instead of null on the wire.
func recordList(records []audit.Record) []audit.Record {
	if records == nil {
		return []audit.Record{}
	}
	return records
}

func parsePage(r *http.Request) audit.PageRequest {
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return audit.PageRequest{Offset: offset, Limit: limit}
}

func parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeBadRequest, "start must be RFC3339")
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeBadRequest, "end must be RFC3339")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeBadRequest, "end must not precede start")
	}
	return start, end, nil
}
