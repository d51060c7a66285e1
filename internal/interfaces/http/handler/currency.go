package handler

import (
	"time"

	appcurrency "github.com/erp/ledger/internal/application/currency"
	"github.com/gin-gonic/gin"
)

// CurrencyHandler handles currency and exchange rate API endpoints
type CurrencyHandler struct {
	BaseHandler
	currencyService *appcurrency.CurrencyService
}

// NewCurrencyHandler creates a new CurrencyHandler
func NewCurrencyHandler(currencyService *appcurrency.CurrencyService) *CurrencyHandler {
	return &CurrencyHandler{currencyService: currencyService}
}

// SetBaseCurrencyRequest designates the base currency
type SetBaseCurrencyRequest struct {
	Code string `json:"code" binding:"required,len=3"`
}

// CreateCurrency registers a new currency
func (h *CurrencyHandler) CreateCurrency(c *gin.Context) {
	var req appcurrency.CreateCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.currencyService.CreateCurrency(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ListCurrencies returns all configured currencies
func (h *CurrencyHandler) ListCurrencies(c *gin.Context) {
	resp, err := h.currencyService.ListCurrencies(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// SetBaseCurrency designates the base currency
func (h *CurrencyHandler) SetBaseCurrency(c *gin.Context) {
	var req SetBaseCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.currencyService.SetBaseCurrency(c.Request.Context(), req.Code); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// CreateRate records a dated exchange rate
func (h *CurrencyHandler) CreateRate(c *gin.Context) {
	var req appcurrency.CreateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.currencyService.CreateRate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ResolveRate resolves a conversion rate for a pair and date, deriving
// it by inversion or triangulation through the base when no direct rate
// exists
func (h *CurrencyHandler) ResolveRate(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	if len(from) != 3 || len(to) != 3 {
		h.BadRequest(c, "Query parameters from and to must be 3-letter currency codes")
		return
	}

	date := time.Now()
	if v := c.Query("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			h.BadRequest(c, "Query parameter date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	resp, err := h.currencyService.ResolveRate(c.Request.Context(), from, to, date)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RegisterRoutes registers currency and rate routes
func (h *CurrencyHandler) RegisterRoutes(rg *gin.RouterGroup) {
	currencies := rg.Group("/currencies")
	{
		currencies.POST("", h.CreateCurrency)
		currencies.GET("", h.ListCurrencies)
		currencies.PUT("/base", h.SetBaseCurrency)
	}

	rates := rg.Group("/rates")
	{
		rates.POST("", h.CreateRate)
		rates.GET("/resolve", h.ResolveRate)
	}
}
