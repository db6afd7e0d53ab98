package jwttoken_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	jwttoken "github.com/r16a/metis/internal/jwt_token"
	dErrors "github.com/r16a/metis/pkg/domain-errors"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := jwttoken.NewJWTService("test-signing-key", "metis")

	token, err := svc.GenerateAccessToken("alice@acme.example", "t1", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "alice@acme.example", claims.Email)
	require.Equal(t, "t1", claims.TenantID)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := jwttoken.NewJWTService("test-signing-key", "metis")

	token, err := svc.GenerateAccessToken("alice@acme.example", "", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestTokenSignedWithDifferentKeyRejected(t *testing.T) {
	issuer := jwttoken.NewJWTService("key-one", "metis")
	validator := jwttoken.NewJWTService("key-two", "metis")

	token, err := issuer.GenerateAccessToken("alice@acme.example", "", time.Hour)
	require.NoError(t, err)

	_, err = validator.ValidateToken(token)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestGarbageTokenRejected(t *testing.T) {
	svc := jwttoken.NewJWTService("test-signing-key", "metis")

	_, err := svc.ValidateToken("not.a.token")
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
