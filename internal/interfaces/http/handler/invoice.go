package handler

import (
	"context"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InvoiceHandler handles invoice lifecycle API endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService *appinvoicing.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *appinvoicing.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// CancelInvoiceRequest carries the cancellation reason
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// Create creates a new draft invoice
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req appinvoicing.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.invoiceService.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Get returns an invoice by ID
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.invoiceService.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List returns invoices matching the query filters
func (h *InvoiceHandler) List(c *gin.Context) {
	var list dto.ListRequest
	if err := c.ShouldBindQuery(&list); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	list.Normalize()

	filter := invoicing.InvoiceFilter{
		Filter: shared.Filter{
			Page:     list.Page,
			PageSize: list.PageSize,
		},
	}
	if v := c.Query("kind"); v != "" {
		kind := invoicing.InvoiceKind(v)
		if !kind.IsValid() {
			h.BadRequest(c, "Invalid invoice kind")
			return
		}
		filter.Kind = &kind
	}
	if v := c.Query("party_id"); v != "" {
		partyID, err := uuid.Parse(v)
		if err != nil {
			h.BadRequest(c, "Invalid party_id format")
			return
		}
		filter.PartyID = &partyID
	}
	if v := c.Query("posting_status"); v != "" {
		status := invoicing.PostingStatus(v)
		filter.PostingStatus = &status
	}
	if v := c.Query("payment_status"); v != "" {
		status := invoicing.PaymentStatus(v)
		filter.PaymentStatus = &status
	}

	page, err := h.invoiceService.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Page, page.PageSize, int(page.Total))
}

// AddLine adds a line to a draft invoice
func (h *InvoiceHandler) AddLine(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req appinvoicing.InvoiceLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.invoiceService.AddLine(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateLine updates a line on a draft invoice
func (h *InvoiceHandler) UpdateLine(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.parseIDParam(c, "lineId")
	if !ok {
		return
	}

	var req appinvoicing.InvoiceLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.invoiceService.UpdateLine(c.Request.Context(), id, lineID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RemoveLine removes a line from a draft invoice
func (h *InvoiceHandler) RemoveLine(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.parseIDParam(c, "lineId")
	if !ok {
		return
	}

	resp, err := h.invoiceService.RemoveLine(c.Request.Context(), id, lineID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Submit moves a draft invoice into pending approval
func (h *InvoiceHandler) Submit(c *gin.Context) {
	h.workflow(c, h.invoiceService.SubmitForApproval)
}

// Approve approves a pending invoice
func (h *InvoiceHandler) Approve(c *gin.Context) {
	h.workflow(c, h.invoiceService.Approve)
}

// Reject rejects a pending invoice
func (h *InvoiceHandler) Reject(c *gin.Context) {
	h.workflow(c, h.invoiceService.Reject)
}

// Cancel cancels an invoice with a reason
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.invoiceService.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

func (h *InvoiceHandler) workflow(
	c *gin.Context,
	apply func(ctx context.Context, id uuid.UUID) (*appinvoicing.InvoiceResponse, error),
) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := apply(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RegisterRoutes registers invoice routes
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/invoices")
	{
		invoices.POST("", h.Create)
		invoices.GET("", h.List)
		invoices.GET("/:id", h.Get)
		invoices.POST("/:id/lines", h.AddLine)
		invoices.PUT("/:id/lines/:lineId", h.UpdateLine)
		invoices.DELETE("/:id/lines/:lineId", h.RemoveLine)
		invoices.POST("/:id/submit", h.Submit)
		invoices.POST("/:id/approve", h.Approve)
		invoices.POST("/:id/reject", h.Reject)
		invoices.POST("/:id/cancel", h.Cancel)
	}
}
