package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/r16a/metis/internal/booking/models"
	"github.com/r16a/metis/internal/booking/service"
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

// Register registers the booking routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/tenants/{tenantID}/bookings", h.handleCreate)
	r.Get("/tenants/{tenantID}/bookings", h.handleListByTenant)
	r.Get("/bookings/{bookingID}", h.handleGet)
	r.Patch("/bookings/{bookingID}/status", h.handleUpdateStatus)
	r.Delete("/bookings/{bookingID}", h.handleDelete)
}

type createBookingRequest struct {
	ServiceID   uuid.UUID `json:"service_id"`
	EmployeeID  uuid.UUID `json:"employee_id"`
	ClientName  string    `json:"client_name"`
	ClientEmail string    `json:"client_email"`
	StartTime   time.Time `json:"start_time"`
}

type updateStatusRequest struct {
	Status models.Status `json:"status"`
}

type bookingPage struct {
	Bookings   []*models.Booking `json:"bookings"`
	TotalCount int               `json:"total_count"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return
	}
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), service.CreateBookingInput{
		TenantID:    tenantID,
		OfferingID:  req.ServiceID,
		EmployeeID:  req.EmployeeID,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		StartTime:   req.StartTime,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, booking)
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

	bookings, total, err := h.service.ListBookingsByTenant(r.Context(), tenantID, offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	shared.WriteJSON(w, http.StatusOK, bookingPage{Bookings: bookings, TotalCount: total})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	booking, err := h.service.GetBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, booking)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	booking, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, booking)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteBooking(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) bookingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid booking id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if dErrors.GetCode(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), "booking request failed",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}
	shared.WriteError(w, err)
}
