package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/escolab/agenda-api/internal/models"
	appErrors "github.com/escolab/agenda-api/pkg/errors"
	"github.com/escolab/agenda-api/pkg/response"
)

type availabilityService interface {
	FindConflicts(ctx context.Context, presenterIDs []string, startsAt, endsAt time.Time, excludeRequestID string) ([]models.Conflict, error)
}

// AvailabilityHandler answers conflict queries for presenter schedules.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(service availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// Conflicts godoc
// @Summary List conflicts for presenters in a time window
// @Tags Availability
// @Produce json
// @Param presenter_ids query string true "Comma separated presenter IDs"
// @Param starts_at query string true "Window start (RFC3339)"
// @Param ends_at query string true "Window end (RFC3339)"
// @Param exclude_request_id query string false "Request ID to ignore"
// @Success 200 {object} response.Envelope
// @Router /availability/conflicts [get]
func (h *AvailabilityHandler) Conflicts(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "availability service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var presenterIDs []string
	for _, part := range strings.Split(c.Query("presenter_ids"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			presenterIDs = append(presenterIDs, part)
		}
	}
	startsAt, err := time.Parse(time.RFC3339, c.Query("starts_at"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid starts_at, expected RFC3339"))
		return
	}
	endsAt, err := time.Parse(time.RFC3339, c.Query("ends_at"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid ends_at, expected RFC3339"))
		return
	}

	conflicts, err := h.service.FindConflicts(c.Request.Context(), presenterIDs, startsAt, endsAt, strings.TrimSpace(c.Query("exclude_request_id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"conflicts": conflicts, "available": len(conflicts) == 0}, nil)
}
