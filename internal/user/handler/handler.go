package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/r16a/metis/internal/platform/middleware"
	"github.com/r16a/metis/internal/transport/http/shared"
	"github.com/r16a/metis/internal/user/models"
	"github.com/r16a/metis/internal/user/service"
	dErrors "github.com/r16a/metis/pkg/domain-errors"
)

// accessTokenTTL bounds the lifetime of tokens issued on login.
const accessTokenTTL = time.Hour

// TokenIssuer mints access tokens after a successful login.
type TokenIssuer interface {
	GenerateAccessToken(email, tenantID string, expiresIn time.Duration) (string, error)
}

type Handler struct {
	logger  *slog.Logger
	service *service.Service
	tokens  TokenIssuer
}

func New(svc *service.Service, tokens TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: svc, tokens: tokens}
}

// Register registers the user management routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/users", h.handleCreate)
	r.Get("/users/{userID}", h.handleGet)
	r.Get("/tenants/{tenantID}/users", h.handleListByTenant)
	r.Patch("/users/{userID}", h.handleUpdate)
	r.Delete("/users/{userID}", h.handleDelete)
}

// RegisterLogin registers the credential exchange route, mounted outside the
// admin router.
func (h *Handler) RegisterLogin(r chi.Router) {
	r.Post("/login", h.handleLogin)
}

type createUserRequest struct {
	Email    string        `json:"email"`
	Name     string        `json:"name"`
	Surname  string        `json:"surname"`
	Password string        `json:"password"`
	TenantID *uuid.UUID    `json:"tenant_id,omitempty"`
	Roles    []models.Role `json:"roles"`
}

type updateUserRequest struct {
	Name    *string       `json:"name,omitempty"`
	Surname *string       `json:"surname,omitempty"`
	Roles   []models.Role `json:"roles,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type userPage struct {
	Users      []*models.User `json:"users"`
	TotalCount int            `json:"total_count"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	user, err := h.service.CreateUser(r.Context(), service.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Surname:  req.Surname,
		Password: req.Password,
		TenantID: req.TenantID,
		Roles:    req.Roles,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, user)
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

	users, total, err := h.service.ListUsersByTenant(r.Context(), tenantID, offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	shared.WriteJSON(w, http.StatusOK, userPage{Users: users, TotalCount: total})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, service.UpdateUserInput{
		Name:    req.Name,
		Surname: req.Surname,
		Roles:   req.Roles,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tenantID := ""
	if user.TenantID != nil {
		tenantID = user.TenantID.String()
	}
	token, err := h.tokens.GenerateAccessToken(user.Email, tenantID, accessTokenTTL)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "Bearer"})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if dErrors.GetCode(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), "user request failed",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}
	shared.WriteError(w, err)
}
