package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/escolab/agenda-api/internal/models"
	appErrors "github.com/escolab/agenda-api/pkg/errors"
	"github.com/escolab/agenda-api/pkg/response"
)

// RequireCapability gates a route on the actor's role granting the
// capability. Services apply the finer rules (sector scope, ownership);
// this keeps plainly unauthorised roles out of the handlers.
func RequireCapability(capability models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if !claims.Role.HasCapability(capability) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
