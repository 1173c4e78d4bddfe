package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stockcast/backend-go/internal/domain"
	"github.com/stockcast/backend-go/internal/po"
	"github.com/stockcast/backend-go/internal/repository"
)

type POHandler struct {
	engine *po.Engine
	orders repository.PORepository
}

func NewPOHandler(engine *po.Engine, orders repository.PORepository) *POHandler {
	return &POHandler{engine: engine, orders: orders}
}

func poID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "purchase order id must be an integer")
		return 0, false
	}
	return id, true
}

type draftRequest struct {
	SKUs       []string `json:"skus" binding:"required"`
	SupplierID int64    `json:"supplier_id" binding:"required"`
	Reason     string   `json:"reason"`
	CreatedBy  string   `json:"created_by"`
}

func (h *POHandler) GenerateDraft(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = "system"
	}

	order, err := h.engine.GenerateDraftPO(c.Request.Context(), req.SKUs, req.SupplierID, req.Reason, req.CreatedBy)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *POHandler) List(c *gin.Context) {
	var status domain.POStatus
	if raw := c.Query("status"); raw != "" {
		parsed, ok := domain.ParsePOStatus(raw)
		if !ok {
			badRequest(c, "unknown status "+raw)
			return
		}
		status = parsed
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.engine.ListPOs(c.Request.Context(), status, limit, offset)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchase_orders": orders, "count": len(orders)})
}

func (h *POHandler) Get(c *gin.Context) {
	id, ok := poID(c)
	if !ok {
		return
	}

	order, err := h.engine.GetPO(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type updateRequest struct {
	Notes                *string             `json:"notes"`
	ExpectedDeliveryDate *time.Time          `json:"expected_delivery_date"`
	LineItems            []domain.POLineItem `json:"line_items"`
}

func (h *POHandler) Update(c *gin.Context) {
	id, ok := poID(c)
	if !ok {
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	order, err := h.engine.UpdatePO(c.Request.Context(), id, po.UpdateFields{
		Notes:                req.Notes,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		LineItems:            req.LineItems,
	})
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *POHandler) Submit(c *gin.Context) {
	id, ok := poID(c)
	if !ok {
		return
	}
	order, err := h.engine.SubmitPO(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type actorRequest struct {
	Actor string `json:"actor"`
}

func (h *POHandler) Approve(c *gin.Context) {
	id, ok := poID(c)
	if !ok {
		return
	}

	var req actorRequest
	_ = c.ShouldBindJSON(&req)
	if req.Actor == "" {
		req.Actor = "system"
	}

	order, err := h.engine.ApprovePO(c.Request.Context(), id, req.Actor)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *POHandler) Send(c *gin.Context) {
	id, ok := poID(c)
	if !ok {
		return
	}
	order, err := h.engine.SendPO(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *POHandler) Receive(c *gin.Context) {
	id, ok := poID(c)
	if !ok {
		return
	}

	var req actorRequest
	_ = c.ShouldBindJSON(&req)
	if req.Actor == "" {
		req.Actor = "system"
	}

	order, err := h.engine.ReceivePO(c.Request.Context(), id, req.Actor)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *POHandler) Cancel(c *gin.Context) {
	id, ok := poID(c)
	if !ok {
		return
	}
	order, err := h.engine.CancelPO(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *POHandler) GetAudit(c *gin.Context) {
	id, ok := poID(c)
	if !ok {
		return
	}

	order, err := h.engine.GetPO(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}

	entries, err := h.orders.ListAuditByReference(c.Request.Context(), order.PONumber)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"po_number": order.PONumber, "entries": entries})
}
