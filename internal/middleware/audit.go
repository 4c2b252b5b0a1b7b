package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/escolab/agenda-api/internal/models"
	"github.com/escolab/agenda-api/internal/repository"
)

// Audit records the client surface of successful mutating calls: who hit
// which route from where. Services append their own entries for the
// business transitions those calls produce, so the two trails complement
// rather than repeat each other.
func Audit(repo *repository.AuditRepository, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		if c.Writer.Status() >= 400 {
			return
		}

		var actorID *string
		if claims, ok := c.Get(ContextUserKey); ok {
			user := claims.(*models.JWTClaims)
			actorID = &user.UserID
		}

		var resourceID *string
		if id := c.Param("id"); id != "" {
			resourceID = &id
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		detail, _ := json.Marshal(map[string]interface{}{
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		_ = repo.Create(c.Request.Context(), &models.AuditLog{
			ActorID:    actorID,
			Action:     c.Request.Method + " " + path,
			Resource:   resource,
			ResourceID: resourceID,
			Detail:     detail,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		})
	}
}
