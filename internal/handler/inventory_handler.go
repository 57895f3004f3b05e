package handler

import (
	"net/http"

	"requisition/internal/middleware"
	"requisition/internal/model"
	"requisition/internal/service"
	"requisition/pkg/pagination"
	"requisition/pkg/response"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	inventoryService service.InventoryService
}

func NewInventoryHandler(inventoryService service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	inventory := router.Group("/api")
	{
		inventory.GET("/products", h.GetProducts)
		inventory.POST("/products", middleware.RequireRole(model.RoleStoreAdmin, model.RoleAdmin), h.CreateProduct)
		inventory.POST("/products/:id/restock", middleware.RequireRole(model.RoleStoreAdmin, model.RoleSO, model.RoleAdmin), h.Restock)
		inventory.GET("/requests/:id/issues", h.ListIssues)
	}
}

// GetProducts handles retrieving the paginated store catalogue
// @Summary      Get products
// @Description  Retrieves a paginated list of products with current stock
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Search by product name or SKU"
// @Success      200    {object}  response.Response{data=response.Page}
// @Failure      500    {object}  response.Response
// @Router       /api/products [get]
func (h *InventoryHandler) GetProducts(c *gin.Context) {
	p := pagination.Parse(c)
	products, total, err := h.inventoryService.GetProducts(c.Request.Context(), p.Page, p.Limit, c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.Page{Items: products, Total: total, Page: p.Page, Limit: p.Limit}))
}

// CreateProduct creates a new catalogue entry
// @Summary      Create product
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateProductRequest  true  "Create Product Payload"
// @Success      201      {object}  response.Response{data=model.Product}
// @Failure      400      {object}  response.Response
// @Router       /api/products [post]
func (h *InventoryHandler) CreateProduct(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req service.CreateProductRequest
	if !bindRequired(c, &req) {
		return
	}
	product, err := h.inventoryService.CreateProduct(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, product))
}

// Restock adds stock to a product
// @Summary      Restock product
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Product ID"
// @Param        payload  body      service.RestockRequest  true  "Quantity received"
// @Success      200      {object}  response.Response{data=model.Product}
// @Failure      404      {object}  response.Response
// @Router       /api/products/{id}/restock [post]
func (h *InventoryHandler) Restock(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.RestockRequest
	if !bindRequired(c, &req) {
		return
	}
	product, err := h.inventoryService.Restock(c.Request.Context(), userID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

// ListIssues returns the stock movements recorded against a request
// @Summary      Stock issued for a request
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=[]model.InventoryTransaction}
// @Router       /api/requests/{id}/issues [get]
func (h *InventoryHandler) ListIssues(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	issues, err := h.inventoryService.ListIssues(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, issues))
}
