package taxaccrual

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/currency"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CorporateTaxService accrues corporate income tax from posted ledger
// activity and walks the filing through its lifecycle. The taxable income
// computation reads only posted journal lines; draft entries never count.
type CorporateTaxService struct {
	filings   tax.FilingRepository
	entries   ledger.JournalEntryRepository
	resolver  *ledger.AccountResolver
	rates     *currency.RateService
	txManager shared.TransactionManager
	logger    *zap.Logger
}

// NewCorporateTaxService creates a new CorporateTaxService
func NewCorporateTaxService(
	filings tax.FilingRepository,
	entries ledger.JournalEntryRepository,
	resolver *ledger.AccountResolver,
	rates *currency.RateService,
	txManager shared.TransactionManager,
	log *zap.Logger,
) *CorporateTaxService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CorporateTaxService{
		filings:   filings,
		entries:   entries,
		resolver:  resolver,
		rates:     rates,
		txManager: txManager,
		logger:    log.Named("taxaccrual"),
	}
}

// AccrueRequest describes a tax accrual run for one fiscal period
type AccrueRequest struct {
	PeriodStart    time.Time       `json:"period_start" binding:"required"`
	PeriodEnd      time.Time       `json:"period_end" binding:"required"`
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent" binding:"required"`
}

// FilingResponse represents a corporate tax filing in API responses
type FilingResponse struct {
	ID             uuid.UUID       `json:"id"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent"`
	TaxableIncome  decimal.Decimal `json:"taxable_income"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
	JournalEntryID *uuid.UUID      `json:"journal_entry_id,omitempty"`
	AccruedAt      *time.Time      `json:"accrued_at,omitempty"`
	FiledAt        *time.Time      `json:"filed_at,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	ReversedAt     *time.Time      `json:"reversed_at,omitempty"`
}

// Accrue computes the period's taxable income from posted ledger activity
// and accrues the resulting tax liability. Revenue is the net credit
// movement on income accounts, expense the net debit movement on expense
// accounts; a loss period clamps the tax to zero and leaves the filing in
// Draft with no journal entry.
func (s *CorporateTaxService) Accrue(ctx context.Context, req AccrueRequest) (resp *FilingResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "taxaccrual", "accrue")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span,
		"period_start", req.PeriodStart.Format("2006-01-02"),
		"period_end", req.PeriodEnd.Format("2006-01-02"),
		"tax_rate_percent", req.TaxRatePercent.String(),
	)

	existing, err := s.filings.FindByPeriod(ctx, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != tax.FilingStatusReversed {
		return nil, shared.NewDomainError("DUPLICATE_FILING",
			fmt.Sprintf("A filing for the period already exists in status %s", existing.Status)).
			WithDetail("filing_id", existing.ID.String()).
			WithDetail("status", existing.Status.String())
	}

	activity, err := s.entries.SumPeriodActivityByType(ctx, req.PeriodStart, req.PeriodEnd,
		[]ledger.AccountType{ledger.AccountTypeIncome, ledger.AccountTypeExpense})
	if err != nil {
		return nil, err
	}

	revenue := decimal.Zero
	expense := decimal.Zero
	for _, a := range activity {
		switch a.AccountType {
		case ledger.AccountTypeIncome:
			revenue = a.Credit.Sub(a.Debit)
		case ledger.AccountTypeExpense:
			expense = a.Debit.Sub(a.Credit)
		}
	}
	taxableIncome := revenue.Sub(expense)

	filing, err := tax.NewCorporateTaxFiling(
		req.PeriodStart,
		req.PeriodEnd,
		req.TaxRatePercent,
		taxableIncome,
		s.rates.BaseCurrency(),
	)
	if err != nil {
		return nil, err
	}

	if !filing.HasAccruableTax() {
		if err := s.filings.Save(ctx, filing); err != nil {
			return nil, err
		}
		s.logger.Info("No accruable tax for period, filing left in draft",
			zap.String("taxable_income", filing.TaxableIncome.String()),
		)
		logger.DrainDomainEvents(s.logger, filing)
		return toFilingResponse(filing), nil
	}

	taxExpense, err := s.resolver.Resolve(ctx, ledger.RoleCorpTaxExpense)
	if err != nil {
		return nil, err
	}
	taxPayable, err := s.resolver.Resolve(ctx, ledger.RoleCorpTaxPayable)
	if err != nil {
		return nil, err
	}

	entryNumber, err := s.entries.NextEntryNumber(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := ledger.NewJournalEntry(
		entryNumber,
		req.PeriodEnd,
		s.rates.BaseCurrency(),
		fmt.Sprintf("Corporate tax accrual %s to %s",
			req.PeriodStart.Format("2006-01-02"), req.PeriodEnd.Format("2006-01-02")),
		[]ledger.LineInput{
			ledger.DebitLine(taxExpense, filing.TaxAmount),
			ledger.CreditLine(taxPayable, filing.TaxAmount),
		},
	)
	if err != nil {
		return nil, err
	}
	if err := entry.Post(); err != nil {
		return nil, err
	}

	if err := filing.MarkAccrued(entry.ID); err != nil {
		return nil, err
	}

	err = s.txManager.Transaction(ctx, func(ctx context.Context) error {
		if err := s.entries.Save(ctx, entry); err != nil {
			return err
		}
		return s.filings.Save(ctx, filing)
	})
	if err != nil {
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrEntryNumber, entry.EntryNumber,
		"tax_amount", filing.TaxAmount.String(),
	)
	s.logger.Info("Corporate tax accrued",
		zap.String("taxable_income", filing.TaxableIncome.String()),
		zap.String("tax_amount", filing.TaxAmount.String()),
		zap.String("entry_number", entry.EntryNumber),
	)
	logger.DrainDomainEvents(s.logger, filing, entry)

	return toFilingResponse(filing), nil
}

// File moves an accrued filing to Filed
func (s *CorporateTaxService) File(ctx context.Context, filingID uuid.UUID) (*FilingResponse, error) {
	return s.transition(ctx, "file", filingID, func(f *tax.CorporateTaxFiling) error {
		return f.File()
	})
}

// MarkPaid settles a filed liability
func (s *CorporateTaxService) MarkPaid(ctx context.Context, filingID uuid.UUID) (*FilingResponse, error) {
	return s.transition(ctx, "mark_paid", filingID, func(f *tax.CorporateTaxFiling) error {
		return f.MarkPaid()
	})
}

// Reverse backs out a filed accrual by reversing its journal entry and
// marking the filing Reversed. The period becomes accruable again.
func (s *CorporateTaxService) Reverse(ctx context.Context, filingID uuid.UUID) (resp *FilingResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "taxaccrual", "reverse")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, "filing_id", filingID.String())

	filing, err := s.filings.FindByID(ctx, filingID)
	if err != nil {
		return nil, err
	}
	if filing == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Filing not found")
	}

	if err := filing.MarkReversed(); err != nil {
		return nil, err
	}
	if filing.JournalEntryID == nil {
		return nil, shared.NewDomainError("INVALID_STATE", "Filing has no accrual entry to reverse")
	}

	entry, err := s.entries.FindByID(ctx, *filing.JournalEntryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Accrual journal entry not found")
	}

	entryNumber, err := s.entries.NextEntryNumber(ctx)
	if err != nil {
		return nil, err
	}
	reversal, err := entry.BuildReversal(entryNumber)
	if err != nil {
		return nil, err
	}

	err = s.txManager.Transaction(ctx, func(ctx context.Context) error {
		if err := s.entries.Save(ctx, reversal); err != nil {
			return err
		}
		if err := s.entries.SaveWithLock(ctx, entry); err != nil {
			return err
		}
		return s.filings.SaveWithLock(ctx, filing)
	})
	if err != nil {
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrEntryNumber, reversal.EntryNumber)
	s.logger.Info("Tax accrual reversed",
		zap.String("filing_id", filing.ID.String()),
		zap.String("reversal_entry_number", reversal.EntryNumber),
	)
	logger.DrainDomainEvents(s.logger, filing, entry, reversal)

	return toFilingResponse(filing), nil
}

// GetFiling returns one filing by ID
func (s *CorporateTaxService) GetFiling(ctx context.Context, filingID uuid.UUID) (*FilingResponse, error) {
	filing, err := s.filings.FindByID(ctx, filingID)
	if err != nil {
		return nil, err
	}
	if filing == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Filing not found")
	}
	return toFilingResponse(filing), nil
}

// ListFilings returns all filings
func (s *CorporateTaxService) ListFilings(ctx context.Context) ([]FilingResponse, error) {
	filings, err := s.filings.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]FilingResponse, 0, len(filings))
	for _, f := range filings {
		responses = append(responses, *toFilingResponse(f))
	}
	return responses, nil
}

func (s *CorporateTaxService) transition(ctx context.Context, operation string, filingID uuid.UUID, apply func(*tax.CorporateTaxFiling) error) (resp *FilingResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "taxaccrual", operation)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, "filing_id", filingID.String())

	filing, err := s.filings.FindByID(ctx, filingID)
	if err != nil {
		return nil, err
	}
	if filing == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Filing not found")
	}
	if err := apply(filing); err != nil {
		return nil, err
	}
	if err := s.filings.SaveWithLock(ctx, filing); err != nil {
		return nil, err
	}

	telemetry.SetAttributes(span, "filing_status", filing.Status.String())
	s.logger.Info("Filing transitioned",
		zap.String("filing_id", filing.ID.String()),
		zap.String("status", filing.Status.String()),
	)
	logger.DrainDomainEvents(s.logger, filing)

	return toFilingResponse(filing), nil
}

func toFilingResponse(f *tax.CorporateTaxFiling) *FilingResponse {
	return &FilingResponse{
		ID:             f.ID,
		PeriodStart:    f.PeriodStart,
		PeriodEnd:      f.PeriodEnd,
		TaxRatePercent: f.TaxRatePercent,
		TaxableIncome:  f.TaxableIncome,
		TaxAmount:      f.TaxAmount,
		Currency:       f.Currency.String(),
		Status:         f.Status.String(),
		JournalEntryID: f.JournalEntryID,
		AccruedAt:      f.AccruedAt,
		FiledAt:        f.FiledAt,
		PaidAt:         f.PaidAt,
		ReversedAt:     f.ReversedAt,
	}
}
