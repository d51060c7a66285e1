package handler

import (
	"github.com/erp/ledger/internal/application/allocation"
	apppayment "github.com/erp/ledger/internal/application/payment"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PaymentHandler handles payment and allocation API endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService    *apppayment.PaymentService
	allocationService *allocation.PaymentAllocationService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	paymentService *apppayment.PaymentService,
	allocationService *allocation.PaymentAllocationService,
) *PaymentHandler {
	return &PaymentHandler{
		paymentService:    paymentService,
		allocationService: allocationService,
	}
}

// UpdateAllocationRequest carries the new allocation amount
type UpdateAllocationRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// Create records a new payment
func (h *PaymentHandler) Create(c *gin.Context) {
	var req apppayment.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.paymentService.CreatePayment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Get returns a payment by ID with its allocations
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.paymentService.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Allocate allocates part of a payment against a posted invoice
func (h *PaymentHandler) Allocate(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req allocation.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.allocationService.Allocate(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// UpdateAllocation changes the amount of an existing allocation
func (h *PaymentHandler) UpdateAllocation(c *gin.Context) {
	allocationID, ok := h.parseIDParam(c, "allocationId")
	if !ok {
		return
	}

	var req UpdateAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.allocationService.UpdateAllocation(c.Request.Context(), allocationID, req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RemoveAllocation deletes an allocation and recomputes the invoice's
// payment status
func (h *PaymentHandler) RemoveAllocation(c *gin.Context) {
	allocationID, ok := h.parseIDParam(c, "allocationId")
	if !ok {
		return
	}

	if err := h.allocationService.RemoveAllocation(c.Request.Context(), allocationID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RegisterRoutes registers payment and allocation routes
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.POST("", h.Create)
		payments.GET("/:id", h.Get)
		payments.POST("/:id/allocations", h.Allocate)
	}

	allocations := rg.Group("/allocations")
	{
		allocations.PUT("/:allocationId", h.UpdateAllocation)
		allocations.DELETE("/:allocationId", h.RemoveAllocation)
	}
}
