package handler

import (
	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/gin-gonic/gin"
)

// LedgerHandler handles chart-of-accounts and journal entry API endpoints
type LedgerHandler struct {
	BaseHandler
	ledgerService *appledger.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledgerService *appledger.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// CreateAccount creates a new ledger account
func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	var req appledger.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.ledgerService.CreateAccount(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetAccountByCode returns an account by its chart-of-accounts code
func (h *LedgerHandler) GetAccountByCode(c *gin.Context) {
	resp, err := h.ledgerService.GetAccountByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListAccountsByType returns accounts filtered by type
func (h *LedgerHandler) ListAccountsByType(c *gin.Context) {
	accountType := ledger.AccountType(c.Query("type"))
	if !accountType.IsValid() {
		h.BadRequest(c, "Query parameter type must be a valid account type")
		return
	}

	resp, err := h.ledgerService.ListAccountsByType(c.Request.Context(), accountType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetJournalEntry returns a journal entry by ID with its lines
func (h *LedgerHandler) GetJournalEntry(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.ledgerService.GetJournalEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetJournalEntryByNumber returns a journal entry by its entry number
func (h *LedgerHandler) GetJournalEntryByNumber(c *gin.Context) {
	resp, err := h.ledgerService.GetJournalEntryByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RegisterRoutes registers ledger routes
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	accounts := rg.Group("/accounts")
	{
		accounts.POST("", h.CreateAccount)
		accounts.GET("", h.ListAccountsByType)
		accounts.GET("/:code", h.GetAccountByCode)
	}

	entries := rg.Group("/journal-entries")
	{
		entries.GET("/:id", h.GetJournalEntry)
		entries.GET("/by-number/:number", h.GetJournalEntryByNumber)
	}
}
