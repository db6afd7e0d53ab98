package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/r16a/metis/internal/platform/middleware"
	"github.com/r16a/metis/internal/tenant/models"
	"github.com/r16a/metis/internal/tenant/service"
	"github.com/r16a/metis/internal/transport/http/shared"
	dErrors "github.com/r16a/metis/pkg/domain-errors"
)

type Handler struct {
	logger  *slog.Logger
	service *service.Service
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: svc}
}

// Register registers the tenant management routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/tenants", h.handleCreate)
	r.Get("/tenants", h.handleList)
	r.Get("/tenants/{tenantID}", h.handleGet)
	r.Get("/tenants/domain/{domain}", h.handleGetByDomain)
	r.Put("/tenants/{tenantID}", h.handleUpdate)
	r.Delete("/tenants/{tenantID}", h.handleDelete)
}

type tenantRequest struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

type tenantPage struct {
	Tenants    []*models.Tenant `json:"tenants"`
	TotalCount int              `json:"total_count"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	tenant, err := h.service.CreateTenant(r.Context(), req.Name, req.Domain)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, tenant)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	tenants, total, err := h.service.ListTenants(r.Context(), q.Get("q"), offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if tenants == nil {
		tenants = []*models.Tenant{}
	}
	shared.WriteJSON(w, http.StatusOK, tenantPage{Tenants: tenants, TotalCount: total})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	details, err := h.service.GetTenant(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, details)
}

func (h *Handler) handleGetByDomain(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.GetTenantByDomain(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, details)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	var req tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	tenant, err := h.service.UpdateTenant(r.Context(), id, req.Name, req.Domain)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteTenant(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if dErrors.GetCode(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), "tenant request failed",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}
	shared.WriteError(w, err)
}
