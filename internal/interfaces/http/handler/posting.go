package handler

import (
	"github.com/erp/ledger/internal/application/posting"
	"github.com/gin-gonic/gin"
)

// PostingHandler handles invoice posting API endpoints
type PostingHandler struct {
	BaseHandler
	postingService *posting.GLPostingService
}

// NewPostingHandler creates a new PostingHandler
func NewPostingHandler(postingService *posting.GLPostingService) *PostingHandler {
	return &PostingHandler{postingService: postingService}
}

// PostInvoice posts an approved invoice to the general ledger
func (h *PostingHandler) PostInvoice(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.postingService.Post(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ReversePosting reverses a posted invoice's journal entry
func (h *PostingHandler) ReversePosting(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.postingService.ReversePosting(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// RegisterRoutes registers posting routes
func (h *PostingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/invoices")
	{
		invoices.POST("/:id/post", h.PostInvoice)
		invoices.POST("/:id/reverse-posting", h.ReversePosting)
	}
}
