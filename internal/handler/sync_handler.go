package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/escolab/agenda-api/internal/dto"
	"github.com/escolab/agenda-api/internal/models"
	appErrors "github.com/escolab/agenda-api/pkg/errors"
	"github.com/escolab/agenda-api/pkg/response"
)

type syncService interface {
	Resync(ctx context.Context, requestID string, actor *models.JWTClaims) error
	ListEvents(ctx context.Context, query dto.CalendarEventQuery, actor *models.JWTClaims) ([]models.CalendarEvent, *models.Pagination, error)
}

// SyncHandler exposes operator endpoints for calendar sync state.
type SyncHandler struct {
	service syncService
}

// NewSyncHandler constructs the handler.
func NewSyncHandler(service syncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// Resync godoc
// @Summary Schedule a calendar rebuild for a request
// @Tags Calendar Events
// @Produce json
// @Param id path string true "Request ID"
// @Success 202 {object} response.Envelope
// @Router /requests/{id}/resync [post]
func (h *SyncHandler) Resync(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "sync service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Resync(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"request_id": c.Param("id"), "scheduled": true}, nil)
}

// ListEvents godoc
// @Summary List calendar events and their sync state
// @Tags Calendar Events
// @Produce json
// @Param sync_status query string false "Comma separated sync statuses"
// @Param request_id query string false "Request ID"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /calendar-events [get]
func (h *SyncHandler) ListEvents(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "sync service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.CalendarEventQuery{
		RequestID: strings.TrimSpace(c.Query("request_id")),
	}
	if rawStatus := c.Query("sync_status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.SyncStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.SyncStatus(part))
		}
		query.SyncStatus = statuses
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		query.PageSize = size
	}
	events, pagination, err := h.service.ListEvents(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}
