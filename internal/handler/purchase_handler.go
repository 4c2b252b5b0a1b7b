package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/escolab/agenda-api/internal/dto"
	"github.com/escolab/agenda-api/internal/models"
	appErrors "github.com/escolab/agenda-api/pkg/errors"
	"github.com/escolab/agenda-api/pkg/response"
)

type purchaseService interface {
	Create(ctx context.Context, req dto.CreatePurchaseRequest, actor *models.JWTClaims) (*models.Purchase, error)
	Update(ctx context.Context, id string, req dto.UpdatePurchaseRequest, actor *models.JWTClaims) (*models.Purchase, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Purchase, error)
	ListCollections(ctx context.Context, query dto.CollectionQuery, actor *models.JWTClaims) ([]models.Collection, *models.Pagination, error)
	ExportCollections(ctx context.Context, query dto.CollectionQuery, actor *models.JWTClaims) ([]byte, string, error)
}

// PurchaseHandler exposes endpoints for purchases and their collections.
type PurchaseHandler struct {
	service purchaseService
}

// NewPurchaseHandler constructs the handler.
func NewPurchaseHandler(service purchaseService) *PurchaseHandler {
	return &PurchaseHandler{service: service}
}

// Create godoc
// @Summary Register a material purchase
// @Tags Purchases
// @Accept json
// @Produce json
// @Param payload body dto.CreatePurchaseRequest true "Purchase payload"
// @Success 201 {object} response.Envelope
// @Router /purchases [post]
func (h *PurchaseHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "purchase service not configured"))
		return
	}
	var req dto.CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid purchase payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	purchase, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, purchase, nil)
}

// Update godoc
// @Summary Update a material purchase
// @Tags Purchases
// @Accept json
// @Produce json
// @Param id path string true "Purchase ID"
// @Param payload body dto.UpdatePurchaseRequest true "Purchase payload"
// @Success 200 {object} response.Envelope
// @Router /purchases/{id} [put]
func (h *PurchaseHandler) Update(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "purchase service not configured"))
		return
	}
	var req dto.UpdatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid purchase payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	purchase, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, purchase, nil)
}

// Get godoc
// @Summary Get purchase detail
// @Tags Purchases
// @Produce json
// @Param id path string true "Purchase ID"
// @Success 200 {object} response.Envelope
// @Router /purchases/{id} [get]
func (h *PurchaseHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "purchase service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	purchase, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, purchase, nil)
}

// ListCollections godoc
// @Summary List material collections
// @Tags Collections
// @Produce json
// @Param year query string false "Usage year"
// @Param material_type query string false "Material type (STUDENT or TEACHER)"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /collections [get]
func (h *PurchaseHandler) ListCollections(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "purchase service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.CollectionQuery{
		Year:         strings.TrimSpace(c.Query("year")),
		MaterialType: strings.ToUpper(strings.TrimSpace(c.Query("material_type"))),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		query.PageSize = size
	}
	collections, pagination, err := h.service.ListCollections(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, collections, pagination)
}

// ExportCollections godoc
// @Summary Download collections as CSV
// @Tags Collections
// @Produce text/csv
// @Param year query string false "Usage year"
// @Param material_type query string false "Material type (STUDENT or TEACHER)"
// @Success 200 {string} string "CSV payload"
// @Router /collections/export [get]
func (h *PurchaseHandler) ExportCollections(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "purchase service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.CollectionQuery{
		Year:         strings.TrimSpace(c.Query("year")),
		MaterialType: strings.ToUpper(strings.TrimSpace(c.Query("material_type"))),
	}
	payload, filename, err := h.service.ExportCollections(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", payload)
}
