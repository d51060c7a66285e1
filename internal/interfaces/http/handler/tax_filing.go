package handler

import (
	"github.com/erp/ledger/internal/application/taxaccrual"
	"github.com/gin-gonic/gin"
)

// TaxFilingHandler handles corporate tax filing API endpoints
type TaxFilingHandler struct {
	BaseHandler
	taxService *taxaccrual.CorporateTaxService
}

// NewTaxFilingHandler creates a new TaxFilingHandler
func NewTaxFilingHandler(taxService *taxaccrual.CorporateTaxService) *TaxFilingHandler {
	return &TaxFilingHandler{taxService: taxService}
}

// Accrue computes and books the corporate tax accrual for a period
func (h *TaxFilingHandler) Accrue(c *gin.Context) {
	var req taxaccrual.AccrueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.taxService.Accrue(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// File marks an accrued filing as filed with the authority
func (h *TaxFilingHandler) File(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.taxService.File(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// MarkPaid marks a filed filing as paid
func (h *TaxFilingHandler) MarkPaid(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.taxService.MarkPaid(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Reverse reverses a filing's accrual entry and marks it reversed
func (h *TaxFilingHandler) Reverse(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.taxService.Reverse(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Get returns a filing by ID
func (h *TaxFilingHandler) Get(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.taxService.GetFiling(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List returns all filings
func (h *TaxFilingHandler) List(c *gin.Context) {
	resp, err := h.taxService.ListFilings(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RegisterRoutes registers tax filing routes
func (h *TaxFilingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	filings := rg.Group("/tax-filings")
	{
		filings.POST("/accrue", h.Accrue)
		filings.GET("", h.List)
		filings.GET("/:id", h.Get)
		filings.POST("/:id/file", h.File)
		filings.POST("/:id/pay", h.MarkPaid)
		filings.POST("/:id/reverse", h.Reverse)
	}
}
