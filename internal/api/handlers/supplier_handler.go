package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/stockcast/backend-go/internal/domain"
	"github.com/stockcast/backend-go/internal/repository"
)

type SupplierHandler struct {
	suppliers repository.SupplierRepository
}

func NewSupplierHandler(suppliers repository.SupplierRepository) *SupplierHandler {
	return &SupplierHandler{suppliers: suppliers}
}

func (h *SupplierHandler) List(c *gin.Context) {
	activeOnly := c.DefaultQuery("active", "true") == "true"

	suppliers, err := h.suppliers.List(c.Request.Context(), activeOnly)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suppliers": suppliers, "count": len(suppliers)})
}

func (h *SupplierHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "supplier id must be an integer")
		return
	}

	supplier, err := h.suppliers.GetByID(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, supplier)
}

type createSupplierRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required"`
	LeadTimeDays int    `json:"lead_time_days" binding:"required"`
	PaymentTerms string `json:"payment_terms"`
}

func (h *SupplierHandler) Create(c *gin.Context) {
	var req createSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	supplier := &domain.Supplier{
		Name:         req.Name,
		Email:        req.Email,
		LeadTimeDays: req.LeadTimeDays,
		PaymentTerms: req.PaymentTerms,
		IsActive:     true,
	}
	if err := h.suppliers.Insert(c.Request.Context(), supplier); err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, supplier)
}

type upsertPriceRequest struct {
	SKU        string     `json:"sku" binding:"required"`
	UnitPrice  string     `json:"unit_price" binding:"required"`
	MOQ        int        `json:"moq"`
	ValidUntil *time.Time `json:"valid_until"`
}

func (h *SupplierHandler) UpsertPrice(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "supplier id must be an integer")
		return
	}

	var req upsertPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil || price.IsNegative() {
		badRequest(c, "unit_price must be a non-negative decimal")
		return
	}

	record := &domain.SupplierPrice{
		SupplierID: id,
		SKU:        req.SKU,
		UnitPrice:  price,
		MOQ:        req.MOQ,
		ValidUntil: req.ValidUntil,
	}
	if err := h.suppliers.UpsertPrice(c.Request.Context(), record); err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
