package handler

import (
	"time"

	"github.com/erp/ledger/internal/application/revaluation"
	"github.com/gin-gonic/gin"
)

// RevaluationHandler handles period-end FX revaluation API endpoints
type RevaluationHandler struct {
	BaseHandler
	revaluationService *revaluation.RevaluationService
}

// NewRevaluationHandler creates a new RevaluationHandler
func NewRevaluationHandler(revaluationService *revaluation.RevaluationService) *RevaluationHandler {
	return &RevaluationHandler{revaluationService: revaluationService}
}

// RevalueRequest selects the revaluation date, defaulting to today
type RevalueRequest struct {
	AsOf *time.Time `json:"as_of"`
}

// Revalue runs an FX revaluation over all open foreign-currency invoices
func (h *RevaluationHandler) Revalue(c *gin.Context) {
	var req RevalueRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, err.Error())
		return
	}

	asOf := time.Now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	resp, err := h.revaluationService.Revalue(c.Request.Context(), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// RegisterRoutes registers revaluation routes
func (h *RevaluationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/revaluations", h.Revalue)
}
