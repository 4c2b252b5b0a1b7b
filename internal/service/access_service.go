package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/escolab/agenda-api/internal/models"
	appErrors "github.com/escolab/agenda-api/pkg/errors"
)

// AccessConfig defines configuration for token validation.
type AccessConfig struct {
	Secret string
}

// AccessService validates access tokens issued by the identity platform.
// Accounts are managed there; this service only verifies and decodes.
type AccessService struct {
	config AccessConfig
}

// NewAccessService constructs an AccessService instance.
func NewAccessService(config AccessConfig) *AccessService {
	return &AccessService{config: config}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AccessService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	if claims.Role == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no role")
	}

	return claims, nil
}
