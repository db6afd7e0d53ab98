package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/r16a/metis/internal/audit"
	auditmemory "github.com/r16a/metis/internal/audit/store/memory"
	bookingstore "github.com/r16a/metis/internal/booking/store"
	offeringstore "github.com/r16a/metis/internal/offering/store"
	"github.com/r16a/metis/internal/tenant/handler"
	"github.com/r16a/metis/internal/tenant/models"
	"github.com/r16a/metis/internal/tenant/service"
	tenantstore "github.com/r16a/metis/internal/tenant/store"
	userstore "github.com/r16a/metis/internal/user/store"
)

type HandlerSuite struct {
	suite.Suite
	auditStore *auditmemory.InMemoryStore
	router     chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	tenants := tenantstore.NewInMemory()
	users := userstore.NewInMemory()
	offerings := offeringstore.NewInMemory()
	bookings := bookingstore.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()

	svc := service.New(tenants, users, offerings, bookings,
		service.WithAuditLogger(audit.NewWriter(s.auditStore)),
		service.WithTxRunner(service.NewMemoryTxRunner(tenants, users, offerings, bookings)),
	)

	s.router = chi.NewRouter()
	handler.New(svc, slog.New(slog.DiscardHandler)).Register(s.router)
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) createTenant(name, domain string) models.Tenant {
	rec := s.do(http.MethodPost, "/tenants", map[string]string{"name": name, "domain": domain})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var tenant models.Tenant
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &tenant))
	return tenant
}

func (s *HandlerSuite) TestCreateTenant() {
	tenant := s.createTenant("Acme", "Acme.Example")
	s.Equal("acme.example", tenant.Domain)
	s.NotEqual(uuid.Nil, tenant.ID)
}

func (s *HandlerSuite) TestCreateTenantValidation() {
	rec := s.do(http.MethodPost, "/tenants", map[string]string{"name": "", "domain": "x"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestCreateTenantConflict() {
	s.createTenant("Acme", "acme.example")
	rec := s.do(http.MethodPost, "/tenants", map[string]string{"name": "Other", "domain": "acme.example"})
	s.Equal(http.StatusConflict, rec.Code)

	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("tenant domain must be unique", body["error_description"])
}

func (s *HandlerSuite) TestGetTenant() {
	tenant := s.createTenant("Acme", "acme.example")

	rec := s.do(http.MethodGet, "/tenants/"+tenant.ID.String(), nil)
	s.Equal(http.StatusOK, rec.Code)

	var details models.TenantDetails
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &details))
	s.Equal(tenant.ID, details.Tenant.ID)
}

func (s *HandlerSuite) TestGetTenantNotFound() {
	rec := s.do(http.MethodGet, "/tenants/"+uuid.NewString(), nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestGetTenantBadID() {
	rec := s.do(http.MethodGet, "/tenants/nope", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestListTenants() {
	s.createTenant("Acme", "acme.example")
	s.createTenant("Bright", "bright.example")

	rec := s.do(http.MethodGet, "/tenants?q=bright", nil)
	s.Equal(http.StatusOK, rec.Code)

	var page struct {
		Tenants    []models.Tenant `json:"tenants"`
		TotalCount int             `json:"total_count"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	s.Equal(1, page.TotalCount)
	s.Require().Len(page.Tenants, 1)
	s.Equal("Bright", page.Tenants[0].Name)
}

func (s *HandlerSuite) TestUpdateTenant() {
	tenant := s.createTenant("Acme", "acme.example")

	rec := s.do(http.MethodPut, "/tenants/"+tenant.ID.String(),
		map[string]string{"name": "Acme Health", "domain": "acme-health.example"})
	s.Equal(http.StatusOK, rec.Code)

	var updated models.Tenant
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &updated))
	s.Equal("Acme Health", updated.Name)
}

func (s *HandlerSuite) TestDeleteTenantCascades() {
	tenant := s.createTenant("Acme", "acme.example")

	rec := s.do(http.MethodDelete, "/tenants/"+tenant.ID.String(), nil)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/tenants/"+tenant.ID.String(), nil)
	s.Equal(http.StatusNotFound, rec.Code)

	records, err := s.auditStore.FindByOperation(context.Background(), audit.OperationDelete)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Nil(records[0].EntityID)
}
