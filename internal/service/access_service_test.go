package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolab/agenda-api/internal/models"
)

func mintToken(t *testing.T, secret string, method jwt.SigningMethod, mutate func(*models.JWTClaims)) string {
	t.Helper()
	now := time.Now().UTC()
	claims := &models.JWTClaims{
		UserID:   "u1",
		Role:     models.RoleApprover,
		SectorID: "sector-1",
		Email:    "approver@example.com",
		FullName: "Approver One",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if mutate != nil {
		mutate(claims)
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	svc := NewAccessService(AccessConfig{Secret: "secret"})
	token := mintToken(t, "secret", jwt.SigningMethodHS256, nil)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleApprover, claims.Role)
	assert.Equal(t, "sector-1", claims.SectorID)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewAccessService(AccessConfig{Secret: "secret"})
	token := mintToken(t, "secret", jwt.SigningMethodHS256, func(c *models.JWTClaims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().UTC().Add(-time.Minute))
	})

	_, err := svc.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := NewAccessService(AccessConfig{Secret: "secret"})
	token := mintToken(t, "other-secret", jwt.SigningMethodHS256, nil)

	_, err := svc.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsWrongMethod(t *testing.T) {
	svc := NewAccessService(AccessConfig{Secret: "secret"})
	token := mintToken(t, "secret", jwt.SigningMethodHS512, nil)

	_, err := svc.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsMissingRole(t *testing.T) {
	svc := NewAccessService(AccessConfig{Secret: "secret"})
	token := mintToken(t, "secret", jwt.SigningMethodHS256, func(c *models.JWTClaims) {
		c.Role = ""
	})

	_, err := svc.ValidateToken(token)
	require.Error(t, err)
}
