package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stockcast/backend-go/internal/repository"
)

type InventoryHandler struct {
	inventory repository.InventoryRepository
}

func NewInventoryHandler(inventory repository.InventoryRepository) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

func (h *InventoryHandler) List(c *gin.Context) {
	snaps, err := h.inventory.ListActive(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": snaps, "count": len(snaps)})
}

func (h *InventoryHandler) ListLowStock(c *gin.Context) {
	snaps, err := h.inventory.ListLowStock(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": snaps, "count": len(snaps)})
}

func (h *InventoryHandler) Get(c *gin.Context) {
	snap, err := h.inventory.GetBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	if snap == nil {
		notFound(c, "no inventory record for this SKU")
		return
	}
	c.JSON(http.StatusOK, snap)
}
