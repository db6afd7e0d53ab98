//go:build integration

package ratelimit_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/r16a/metis/internal/ratelimit"
	"github.com/r16a/metis/pkg/testutil"
)

type LimiterIntegrationSuite struct {
	suite.Suite
	client *redis.Client
}

func TestLimiterIntegrationSuite(t *testing.T) {
	suite.Run(t, new(LimiterIntegrationSuite))
}

func (s *LimiterIntegrationSuite) SetupSuite() {
	s.client = testutil.StartRedis(s.T())
}

// key returns a fresh limiter key so tests never share a window.
func (s *LimiterIntegrationSuite) key() string {
	return uuid.NewString()
}

func (s *LimiterIntegrationSuite) TestAllowsUpToLimit() {
	limiter := ratelimit.New(s.client, 3, time.Hour, ratelimit.WithLogger(slog.New(slog.DiscardHandler)))
	key := s.key()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(context.Background(), key)
		s.Require().NoError(err)
		s.True(ok, "request %d should be allowed", i+1)
	}

	ok, err := limiter.Allow(context.Background(), key)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *LimiterIntegrationSuite) TestKeysAreIsolated() {
	limiter := ratelimit.New(s.client, 1, time.Hour)

	ok, err := limiter.Allow(context.Background(), s.key())
	s.Require().NoError(err)
	s.True(ok)

	ok, err = limiter.Allow(context.Background(), s.key())
	s.Require().NoError(err)
	s.True(ok)
}

func (s *LimiterIntegrationSuite) TestWindowExpires() {
	limiter := ratelimit.New(s.client, 1, time.Second)
	key := s.key()

	ok, err := limiter.Allow(context.Background(), key)
	s.Require().NoError(err)
	s.True(ok)

	s.Require().Eventually(func() bool {
		ok, err := limiter.Allow(context.Background(), key)
		return err == nil && ok
	}, 5*time.Second, 200*time.Millisecond)
}

func (s *LimiterIntegrationSuite) TestMiddlewareRejectsWithRetryAfter() {
	limiter := ratelimit.New(s.client, 2, time.Hour, ratelimit.WithLogger(slog.New(slog.DiscardHandler)))

	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	addr := s.key() + ":1234"
	status := func() int {
		req := httptest.NewRequest(http.MethodGet, "/tenants", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	s.Equal(http.StatusNoContent, status())
	s.Equal(http.StatusNoContent, status())

	req := httptest.NewRequest(http.MethodGet, "/tenants", nil)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("3600", rec.Header().Get("Retry-After"))
	s.JSONEq(`{"error":"rate_limited","error_description":"too many requests"}`, rec.Body.String())
}

func TestRedisFailureFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	limiter := ratelimit.New(client, 1, time.Minute, ratelimit.WithLogger(slog.New(slog.DiscardHandler)))

	ok, err := limiter.Allow(context.Background(), "down")
	require.Error(t, err)
	require.True(t, ok)
}
