package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolab/agenda-api/internal/middleware"
	"github.com/escolab/agenda-api/internal/models"
)

type availabilityServiceMock struct {
	resp        []models.Conflict
	err         error
	lastIDs     []string
	lastStart   time.Time
	lastEnd     time.Time
	lastExclude string
	called      bool
}

func (m *availabilityServiceMock) FindConflicts(ctx context.Context, presenterIDs []string, startsAt, endsAt time.Time, excludeRequestID string) ([]models.Conflict, error) {
	m.called = true
	m.lastIDs = presenterIDs
	m.lastStart = startsAt
	m.lastEnd = endsAt
	m.lastExclude = excludeRequestID
	return m.resp, m.err
}

func TestAvailabilityHandlerConflicts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &availabilityServiceMock{
		resp: []models.Conflict{{PresenterID: "presenter-1", Source: models.ConflictSourceBlock}},
	}
	handler := NewAvailabilityHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet,
		"/availability/conflicts?presenter_ids=presenter-1,presenter-2&starts_at=2026-03-10T14:00:00Z&ends_at=2026-03-10T16:00:00Z&exclude_request_id=req-9", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "coord-1", Role: models.RoleCoordinator})

	handler.Conflicts(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.called)
	assert.Equal(t, []string{"presenter-1", "presenter-2"}, mockSvc.lastIDs)
	assert.Equal(t, time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC), mockSvc.lastStart)
	assert.Equal(t, time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC), mockSvc.lastEnd)
	assert.Equal(t, "req-9", mockSvc.lastExclude)
	assert.Contains(t, w.Body.String(), `"available":false`)
}

func TestAvailabilityHandlerConflictsNoneFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &availabilityServiceMock{}
	handler := NewAvailabilityHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet,
		"/availability/conflicts?presenter_ids=presenter-1&starts_at=2026-03-10T14:00:00Z&ends_at=2026-03-10T16:00:00Z", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "coord-1", Role: models.RoleCoordinator})

	handler.Conflicts(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":true`)
}

func TestAvailabilityHandlerConflictsInvalidWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &availabilityServiceMock{}
	handler := NewAvailabilityHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/availability/conflicts?presenter_ids=presenter-1&starts_at=not-a-date&ends_at=2026-03-10T16:00:00Z", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "coord-1", Role: models.RoleCoordinator})

	handler.Conflicts(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.called)
}
