package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/r16a/metis/internal/offering/models"
	"github.com/r16a/metis/internal/offering/service"
	"github.com/r16a/metis/internal/platform/middleware"
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

// Register registers the service catalog routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/tenants/{tenantID}/services", h.handleCreate)
	r.Get("/tenants/{tenantID}/services", h.handleListByTenant)
	r.Get("/services/{serviceID}", h.handleGet)
	r.Put("/services/{serviceID}", h.handleUpdate)
	r.Delete("/services/{serviceID}", h.handleDelete)
}

type offeringRequest struct {
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
}

type offeringPage struct {
	Services   []*models.Offering `json:"services"`
	TotalCount int                `json:"total_count"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return
	}
	var req offeringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	offering, err := h.service.CreateOffering(r.Context(), tenantID, req.Name, req.DurationMinutes, req.Price)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, offering)
}

func (h *Handler) handleListByTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return
	}
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	offerings, total, err := h.service.ListOfferingsByTenant(r.Context(), tenantID, offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if offerings == nil {
		offerings = []*models.Offering{}
	}
	shared.WriteJSON(w, http.StatusOK, offeringPage{Services: offerings, TotalCount: total})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.serviceID(w, r)
	if !ok {
		return
	}
	offering, err := h.service.GetOffering(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, offering)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.serviceID(w, r)
	if !ok {
		return
	}
	var req offeringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	offering, err := h.service.UpdateOffering(r.Context(), id, req.Name, req.DurationMinutes, req.Price)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, offering)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.serviceID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteOffering(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) serviceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "serviceID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid service id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if dErrors.GetCode(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), "service request failed",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}
	shared.WriteError(w, err)
}
