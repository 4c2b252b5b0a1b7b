package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolab/agenda-api/internal/dto"
	"github.com/escolab/agenda-api/internal/middleware"
	"github.com/escolab/agenda-api/internal/models"
	appErrors "github.com/escolab/agenda-api/pkg/errors"
)

type purchaseServiceMock struct {
	createResp *models.Purchase
	createErr  error
	updateResp *models.Purchase
	updateErr  error
	getResp    *models.Purchase
	getErr     error
	listResp   []models.Collection
	listErr    error
	exportCSV  []byte
	exportName string
	exportErr  error

	lastQuery    dto.CollectionQuery
	lastID       string
	createCalled bool
	updateCalled bool
	listCalled   bool
	exportCalled bool
}

func (m *purchaseServiceMock) Create(ctx context.Context, req dto.CreatePurchaseRequest, actor *models.JWTClaims) (*models.Purchase, error) {
	m.createCalled = true
	return m.createResp, m.createErr
}

func (m *purchaseServiceMock) Update(ctx context.Context, id string, req dto.UpdatePurchaseRequest, actor *models.JWTClaims) (*models.Purchase, error) {
	m.updateCalled = true
	m.lastID = id
	return m.updateResp, m.updateErr
}

func (m *purchaseServiceMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Purchase, error) {
	m.lastID = id
	return m.getResp, m.getErr
}

func (m *purchaseServiceMock) ListCollections(ctx context.Context, query dto.CollectionQuery, actor *models.JWTClaims) ([]models.Collection, *models.Pagination, error) {
	m.listCalled = true
	m.lastQuery = query
	return m.listResp, &models.Pagination{Page: 1, PageSize: 20}, m.listErr
}

func (m *purchaseServiceMock) ExportCollections(ctx context.Context, query dto.CollectionQuery, actor *models.JWTClaims) ([]byte, string, error) {
	m.exportCalled = true
	m.lastQuery = query
	return m.exportCSV, m.exportName, m.exportErr
}

func TestPurchaseHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &purchaseServiceMock{createResp: &models.Purchase{ID: "pur-1"}}
	handler := NewPurchaseHandler(mockSvc)

	payload, _ := json.Marshal(dto.CreatePurchaseRequest{
		ProductID:      "product-1",
		MunicipalityID: "mun-1",
		Quantity:       120,
		PurchasedOn:    "2026-01-15",
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/purchases", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "op-1", Role: models.RoleOperator})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.createCalled)
}

func TestPurchaseHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPurchaseHandler(&purchaseServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/purchases", bytes.NewBufferString(`{"product_id":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "op-1", Role: models.RoleOperator})

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPurchaseHandlerUpdateNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &purchaseServiceMock{updateErr: appErrors.ErrNotFound}
	handler := NewPurchaseHandler(mockSvc)

	payload, _ := json.Marshal(dto.UpdatePurchaseRequest{
		ProductID:      "product-1",
		MunicipalityID: "mun-1",
		Quantity:       80,
		PurchasedOn:    "2026-01-15",
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/purchases/missing", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "op-1", Role: models.RoleOperator})

	handler.Update(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "missing", mockSvc.lastID)
}

func TestPurchaseHandlerListCollectionsParsesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &purchaseServiceMock{listResp: []models.Collection{{ID: "col-1"}}}
	handler := NewPurchaseHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/collections?year=2026&material_type=student&page=2&limit=15", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "op-1", Role: models.RoleOperator})

	handler.ListCollections(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.listCalled)
	assert.Equal(t, "2026", mockSvc.lastQuery.Year)
	assert.Equal(t, "STUDENT", mockSvc.lastQuery.MaterialType)
	assert.Equal(t, 2, mockSvc.lastQuery.Page)
	assert.Equal(t, 15, mockSvc.lastQuery.PageSize)
}

func TestPurchaseHandlerExportCollections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &purchaseServiceMock{
		exportCSV:  []byte("Collection ID,Name\ncol-1,2026 - Material do Aluno\n"),
		exportName: "collections_20260815_120000.csv",
	}
	handler := NewPurchaseHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/collections/export?year=2026&material_type=teacher", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "op-1", Role: models.RoleOperator})

	handler.ExportCollections(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.exportCalled)
	assert.Equal(t, "2026", mockSvc.lastQuery.Year)
	assert.Equal(t, "TEACHER", mockSvc.lastQuery.MaterialType)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "collections_20260815_120000.csv")
	assert.Contains(t, w.Body.String(), "col-1")
}
