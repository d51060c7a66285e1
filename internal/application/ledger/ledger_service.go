package ledger

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService provides chart-of-accounts administration and read access
// to journal entries. Entries are only ever created by the posting,
// allocation, accrual and revaluation services; there is no free-form
// journal endpoint.
type LedgerService struct {
	accounts ledger.AccountRepository
	entries  ledger.JournalEntryRepository
	logger   *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(accounts ledger.AccountRepository, entries ledger.JournalEntryRepository, log *zap.Logger) *LedgerService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LedgerService{accounts: accounts, entries: entries, logger: log.Named("ledger")}
}

// CreateAccountRequest describes a new chart-of-accounts entry
type CreateAccountRequest struct {
	Code string `json:"code" binding:"required,max=20"`
	Name string `json:"name" binding:"required,max=200"`
	Type string `json:"type" binding:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// JournalLineResponse represents a journal line in API responses
type JournalLineResponse struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"account_id"`
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo,omitempty"`
}

// JournalEntryResponse represents a journal entry in API responses
type JournalEntryResponse struct {
	ID           uuid.UUID             `json:"id"`
	EntryNumber  string                `json:"entry_number"`
	EntryDate    time.Time             `json:"entry_date"`
	Currency     string                `json:"currency"`
	Memo         string                `json:"memo"`
	Posted       bool                  `json:"posted"`
	PostedAt     *time.Time            `json:"posted_at,omitempty"`
	ReversalOfID *uuid.UUID            `json:"reversal_of_id,omitempty"`
	ReversedByID *uuid.UUID            `json:"reversed_by_id,omitempty"`
	TotalDebit   decimal.Decimal       `json:"total_debit"`
	TotalCredit  decimal.Decimal       `json:"total_credit"`
	Lines        []JournalLineResponse `json:"lines"`
}

// CreateAccount creates a new ledger account
func (s *LedgerService) CreateAccount(ctx context.Context, req CreateAccountRequest) (resp *AccountResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "create_account")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, "account_code", req.Code, "account_type", req.Type)

	existing, err := s.accounts.FindByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError("DUPLICATE_ACCOUNT_CODE",
			"An account with this code already exists").
			WithDetail("code", req.Code)
	}

	account, err := ledger.NewAccount(req.Code, req.Name, ledger.AccountType(req.Type))
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("Account created",
		zap.String("code", account.Code),
		zap.String("type", account.Type.String()),
	)
	logger.DrainDomainEvents(s.logger, account)

	return toAccountResponse(account), nil
}

// GetAccountByCode returns one account by its code
func (s *LedgerService) GetAccountByCode(ctx context.Context, code string) (resp *AccountResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "get_account_by_code")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, "account_code", code)

	account, err := s.accounts.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Account not found")
	}
	return toAccountResponse(account), nil
}

// ListAccountsByType returns all accounts of one type
func (s *LedgerService) ListAccountsByType(ctx context.Context, accountType ledger.AccountType) (resp []AccountResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "list_accounts_by_type")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, "account_type", accountType.String())

	accounts, err := s.accounts.FindByType(ctx, accountType)
	if err != nil {
		return nil, err
	}
	responses := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, *toAccountResponse(&accounts[i]))
	}
	return responses, nil
}

// GetJournalEntry returns one journal entry with its lines
func (s *LedgerService) GetJournalEntry(ctx context.Context, id uuid.UUID) (resp *JournalEntryResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "get_journal_entry")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, telemetry.SpanAttrEntryID, id.String())

	entry, err := s.entries.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Journal entry not found")
	}
	return toJournalEntryResponse(entry), nil
}

// GetJournalEntryByNumber returns one journal entry by its entry number
func (s *LedgerService) GetJournalEntryByNumber(ctx context.Context, entryNumber string) (resp *JournalEntryResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "get_journal_entry_by_number")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, telemetry.SpanAttrEntryNumber, entryNumber)

	entry, err := s.entries.FindByEntryNumber(ctx, entryNumber)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Journal entry not found")
	}
	return toJournalEntryResponse(entry), nil
}

func toAccountResponse(a *ledger.Account) *AccountResponse {
	return &AccountResponse{
		ID:        a.ID,
		Code:      a.Code,
		Name:      a.Name,
		Type:      a.Type.String(),
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
	}
}

func toJournalEntryResponse(e *ledger.JournalEntry) *JournalEntryResponse {
	lines := make([]JournalLineResponse, 0, len(e.Lines))
	for _, l := range e.Lines {
		lines = append(lines, JournalLineResponse{
			ID:          l.ID,
			AccountID:   l.AccountID,
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Memo:        l.Memo,
		})
	}

	return &JournalEntryResponse{
		ID:           e.ID,
		EntryNumber:  e.EntryNumber,
		EntryDate:    e.EntryDate,
		Currency:     e.Currency.String(),
		Memo:         e.Memo,
		Posted:       e.Posted,
		PostedAt:     e.PostedAt,
		ReversalOfID: e.ReversalOfID,
		ReversedByID: e.ReversedByID,
		TotalDebit:   e.TotalDebit(),
		TotalCredit:  e.TotalCredit(),
		Lines:        lines,
	}
}
