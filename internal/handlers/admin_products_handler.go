package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-admin-service/internal/clients"
	"storefront-admin-service/internal/deletion"
	"storefront-admin-service/internal/middleware"
	"storefront-admin-service/internal/models"
	"storefront-admin-service/internal/store"
)

// ProductListData is the admin table payload
type ProductListData struct {
	Products []models.Product `json:"products"`
	State    store.State      `json:"state"`
	Deletion deletion.Status  `json:"deletion"`
}

// ProductListResponse wraps the admin table payload
type ProductListResponse struct {
	Success bool            `json:"success"`
	Data    ProductListData `json:"data"`
	Message *string         `json:"message,omitempty"`
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type AdminProductsHandler struct {
	stores     *store.Registry
	deletions  *deletion.Registry
	categories clients.CategoryLister
	logger     *logrus.Entry
}

func NewAdminProductsHandler(stores *store.Registry, deletions *deletion.Registry, categories clients.CategoryLister, logger *logrus.Entry) *AdminProductsHandler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &AdminProductsHandler{
		stores:     stores,
		deletions:  deletions,
		categories: categories,
		logger:     logger.WithField("component", "admin_products_handler"),
	}
}

// ListProducts returns the tenant's product collection and sync state
// @Summary List products
// @Description Snapshot of the tenant's catalog with load status, notice and pending operations
// @Tags Products
// @Produce json
// @Success 200 {object} ProductListResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /admin/products [get]
func (h *AdminProductsHandler) ListProducts(c *gin.Context) {
	s, err := h.stores.ForTenant(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.listResponse(c, s, ""))
}

// ReloadProducts refetches the collection from the catalog
// @Summary Reload products
// @Description Replace the local collection with the catalog's current list
// @Tags Products
// @Produce json
// @Success 200 {object} ProductListResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /admin/products/reload [post]
func (h *AdminProductsHandler) ReloadProducts(c *gin.Context) {
	ctx := c.Request.Context()

	if inv, ok := h.categories.(cacheInvalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			h.logger.WithError(err).Warn("failed to invalidate category cache")
		}
	}

	s, err := h.stores.Reload(ctx, middleware.GetTenantID(c))
	if err != nil {
		h.logger.WithError(err).WithField("tenant_id", middleware.GetTenantID(c)).Warn("product reload failed")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.listResponse(c, s, ""))
}

// DismissNotice clears the success or error banner
// @Summary Dismiss notice
// @Tags Products
// @Produce json
// @Success 200 {object} ProductListResponse
// @Router /admin/products/notice [delete]
func (h *AdminProductsHandler) DismissNotice(c *gin.Context) {
	s, err := h.stores.ForTenant(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	s.DismissNotice()
	c.JSON(http.StatusOK, h.listResponse(c, s, ""))
}

// RequestDelete opens the delete confirmation for a product
// @Summary Request product deletion
// @Description Opens a confirmation prompt. Nothing is sent to the catalog.
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/products/{id}/delete-request [post]
func (h *AdminProductsHandler) RequestDelete(c *gin.Context) {
	flow, _, err := h.flow(c)
	if err != nil {
		respondError(c, err)
		return
	}

	prompt, err := flow.Request(models.ProductID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    prompt,
	})
}

// ConfirmDelete deletes the product whose confirmation is open
// @Summary Confirm product deletion
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} ProductListResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /admin/products/{id}/delete-confirm [post]
func (h *AdminProductsHandler) ConfirmDelete(c *gin.Context) {
	flow, s, err := h.flow(c)
	if err != nil {
		respondError(c, err)
		return
	}

	id := models.ProductID(c.Param("id"))
	if err := flow.Confirm(c.Request.Context(), id); err != nil {
		h.logger.WithError(err).WithField("product_id", id).Warn("product delete failed")
		respondError(c, err)
		return
	}

	msg := ""
	if n := s.State().Notice; n != nil && n.Kind == store.NoticeSuccess {
		msg = n.Message
	}
	c.JSON(http.StatusOK, h.listResponse(c, s, msg))
}

// CancelDelete dismisses the confirmation without deleting
// @Summary Cancel product deletion
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/products/{id}/delete-cancel [post]
func (h *AdminProductsHandler) CancelDelete(c *gin.Context) {
	flow, _, err := h.flow(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := flow.Cancel(models.ProductID(c.Param("id"))); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    flow.Status(),
	})
}

func (h *AdminProductsHandler) flow(c *gin.Context) (*deletion.Flow, *store.Store, error) {
	tenantID := middleware.GetTenantID(c)
	s, err := h.stores.ForTenant(c.Request.Context(), tenantID)
	if err != nil {
		return nil, nil, err
	}
	return h.deletions.For(tenantID, middleware.GetUserID(c), s), s, nil
}

func (h *AdminProductsHandler) listResponse(c *gin.Context, s *store.Store, msg string) ProductListResponse {
	tenantID := middleware.GetTenantID(c)
	flow := h.deletions.For(tenantID, middleware.GetUserID(c), s)
	return ProductListResponse{
		Success: true,
		Data: ProductListData{
			Products: s.Products(),
			State:    s.State(),
			Deletion: flow.Status(),
		},
		Message: successMessage(msg),
	}
}
