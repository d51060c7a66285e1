package posting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/currency"
	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockInvoiceRepository is a mock implementation of invoicing.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByRef(ctx context.Context, ref invoicing.InvoiceRef) (*invoicing.Invoice, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByNumber(ctx context.Context, number string) (*invoicing.Invoice, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAll(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]invoicing.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) FindOpenPosted(ctx context.Context) ([]invoicing.Invoice, error) {
	args := m.Called(ctx)
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *invoicing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *invoicing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

// MockJournalEntryRepository is a mock implementation of ledger.JournalEntryRepository
type MockJournalEntryRepository struct {
	mock.Mock
}

func (m *MockJournalEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.JournalEntry), args.Error(1)
}

func (m *MockJournalEntryRepository) FindByEntryNumber(ctx context.Context, entryNumber string) (*ledger.JournalEntry, error) {
	args := m.Called(ctx, entryNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.JournalEntry), args.Error(1)
}

func (m *MockJournalEntryRepository) Save(ctx context.Context, entry *ledger.JournalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockJournalEntryRepository) SaveWithLock(ctx context.Context, entry *ledger.JournalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockJournalEntryRepository) SumPeriodActivityByType(ctx context.Context, periodStart, periodEnd time.Time, types []ledger.AccountType) ([]ledger.PeriodActivity, error) {
	args := m.Called(ctx, periodStart, periodEnd, types)
	return args.Get(0).([]ledger.PeriodActivity), args.Error(1)
}

func (m *MockJournalEntryRepository) NextEntryNumber(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockAccountRepository is a mock implementation of ledger.AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByCode(ctx context.Context, code string) (*ledger.Account, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByType(ctx context.Context, accountType ledger.AccountType) ([]ledger.Account, error) {
	args := m.Called(ctx, accountType)
	return args.Get(0).([]ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) Save(ctx context.Context, account *ledger.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// MockExchangeRateRepository is a mock implementation of currency.ExchangeRateRepository
type MockExchangeRateRepository struct {
	mock.Mock
}

func (m *MockExchangeRateRepository) FindByID(ctx context.Context, id uuid.UUID) (*currency.ExchangeRate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*currency.ExchangeRate), args.Error(1)
}

func (m *MockExchangeRateRepository) FindRate(ctx context.Context, from, to valueobject.CurrencyCode, date time.Time) (*currency.ExchangeRate, error) {
	args := m.Called(ctx, from, to, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*currency.ExchangeRate), args.Error(1)
}

func (m *MockExchangeRateRepository) Save(ctx context.Context, rate *currency.ExchangeRate) error {
	args := m.Called(ctx, rate)
	return args.Error(0)
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type postingFixture struct {
	invoices *MockInvoiceRepository
	entries  *MockJournalEntryRepository
	accounts *MockAccountRepository
	rates    *MockExchangeRateRepository
	service  *GLPostingService
}

func chartAccount(t *testing.T, code string, accountType ledger.AccountType) *ledger.Account {
	t.Helper()
	account, err := ledger.NewAccount(code, "Account "+code, accountType)
	require.NoError(t, err)
	return account
}

func newPostingFixture(t *testing.T) *postingFixture {
	t.Helper()

	invoices := new(MockInvoiceRepository)
	entries := new(MockJournalEntryRepository)
	accounts := new(MockAccountRepository)
	rates := new(MockExchangeRateRepository)

	mapping := ledger.RoleMapping{
		ledger.RoleARControl: "1100",
		ledger.RoleAPControl: "2100",
		ledger.RoleRevenue:   "4000",
		ledger.RoleExpense:   "5000",
		ledger.RoleVATOutput: "2200",
		ledger.RoleVATInput:  "2210",
	}
	accounts.On("FindByCode", mock.Anything, "1100").Return(chartAccount(t, "1100", ledger.AccountTypeAsset), nil).Maybe()
	accounts.On("FindByCode", mock.Anything, "2100").Return(chartAccount(t, "2100", ledger.AccountTypeLiability), nil).Maybe()
	accounts.On("FindByCode", mock.Anything, "4000").Return(chartAccount(t, "4000", ledger.AccountTypeIncome), nil).Maybe()
	accounts.On("FindByCode", mock.Anything, "5000").Return(chartAccount(t, "5000", ledger.AccountTypeExpense), nil).Maybe()
	accounts.On("FindByCode", mock.Anything, "2200").Return(chartAccount(t, "2200", ledger.AccountTypeLiability), nil).Maybe()
	accounts.On("FindByCode", mock.Anything, "2210").Return(chartAccount(t, "2210", ledger.AccountTypeLiability), nil).Maybe()

	registry, err := currency.NewBaseCurrencyRegistry(valueobject.AED)
	require.NoError(t, err)

	service := NewGLPostingService(
		invoices,
		entries,
		ledger.NewAccountResolver(mapping, accounts),
		currency.NewRateService(rates, registry),
		shared.NopTransactionManager{},
		nil,
		shared.IdempotencyConfig{Enabled: false},
		nil,
	)

	return &postingFixture{
		invoices: invoices,
		entries:  entries,
		accounts: accounts,
		rates:    rates,
		service:  service,
	}
}

func approvedInvoice(t *testing.T, kind invoicing.InvoiceKind, curr valueobject.CurrencyCode, category invoicing.TaxCategory) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice(kind, uuid.New(), "Acme Trading LLC", "INV-2026-001",
		time.Now(), nil, curr, "AE")
	require.NoError(t, err)
	_, err = inv.AddLine("Consulting", d("10"), d("100"), d("5"), category)
	require.NoError(t, err)
	require.NoError(t, inv.SubmitForApproval())
	require.NoError(t, inv.Approve())
	return inv
}

func lineAmounts(entry *ledger.JournalEntry, accountCode string) (debit, credit decimal.Decimal) {
	for _, line := range entry.Lines {
		if line.AccountCode == accountCode {
			debit = debit.Add(line.Debit)
			credit = credit.Add(line.Credit)
		}
	}
	return debit, credit
}

func TestGLPostingService_Post(t *testing.T) {
	ctx := context.Background()

	t.Run("posts a foreign currency receivable at the day's rate", func(t *testing.T) {
		f := newPostingFixture(t)
		inv := approvedInvoice(t, invoicing.InvoiceKindAR, valueobject.USD, invoicing.TaxCategoryStandard)

		f.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)
		usdRate, err := currency.NewExchangeRate(valueobject.USD, valueobject.AED, d("3.6725"), time.Now(), currency.RateTypeSpot)
		require.NoError(t, err)
		f.rates.On("FindRate", ctx, valueobject.USD, valueobject.AED, mock.Anything).Return(usdRate, nil)
		f.entries.On("NextEntryNumber", ctx).Return("JE-00000042", nil)

		var saved *ledger.JournalEntry
		f.entries.On("Save", ctx, mock.AnythingOfType("*ledger.JournalEntry")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*ledger.JournalEntry) }).
			Return(nil)
		f.invoices.On("SaveWithLock", ctx, inv).Return(nil)

		resp, err := f.service.Post(ctx, inv.ID)
		require.NoError(t, err)

		assert.Equal(t, "JE-00000042", resp.EntryNumber)
		assert.Equal(t, "3672.50", resp.BaseSubtotal.StringFixed(2))
		assert.Equal(t, "183.63", resp.BaseTaxAmount.StringFixed(2))
		assert.Equal(t, "3856.13", resp.BaseCurrencyTotal.StringFixed(2))
		assert.Equal(t, "AED", resp.BaseCurrency)

		require.NotNil(t, saved)
		assert.True(t, saved.Posted)
		assert.True(t, saved.IsBalanced())
		require.Len(t, saved.Lines, 3)

		arDebit, _ := lineAmounts(saved, "1100")
		_, revenueCredit := lineAmounts(saved, "4000")
		_, vatCredit := lineAmounts(saved, "2200")
		assert.Equal(t, "3856.13", arDebit.StringFixed(2))
		assert.Equal(t, "3672.50", revenueCredit.StringFixed(2))
		assert.Equal(t, "183.63", vatCredit.StringFixed(2))

		assert.Equal(t, invoicing.PostingStatusPosted, inv.PostingStatus)
		require.NotNil(t, inv.ExchangeRateAtPosting)
		assert.Equal(t, "3.6725", inv.ExchangeRateAtPosting.String())

		f.invoices.AssertExpectations(t)
		f.entries.AssertExpectations(t)
	})

	t.Run("reverse charge payable books both VAT sides", func(t *testing.T) {
		f := newPostingFixture(t)
		inv := approvedInvoice(t, invoicing.InvoiceKindAP, valueobject.AED, invoicing.TaxCategoryReverseCharge)

		f.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)
		f.entries.On("NextEntryNumber", ctx).Return("JE-00000043", nil)

		var saved *ledger.JournalEntry
		f.entries.On("Save", ctx, mock.AnythingOfType("*ledger.JournalEntry")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*ledger.JournalEntry) }).
			Return(nil)
		f.invoices.On("SaveWithLock", ctx, inv).Return(nil)

		resp, err := f.service.Post(ctx, inv.ID)
		require.NoError(t, err)

		// 10 x 100 reverse charged at 5%: no tax in the payable total,
		// but 50.00 self-assessed on both VAT accounts
		assert.Equal(t, "1000.00", resp.BaseCurrencyTotal.StringFixed(2))
		require.NotNil(t, saved)
		assert.True(t, saved.IsBalanced())
		require.Len(t, saved.Lines, 4)

		expenseDebit, _ := lineAmounts(saved, "5000")
		_, apCredit := lineAmounts(saved, "2100")
		inputDebit, _ := lineAmounts(saved, "2210")
		_, outputCredit := lineAmounts(saved, "2200")
		assert.Equal(t, "1000.00", expenseDebit.StringFixed(2))
		assert.Equal(t, "1000.00", apCredit.StringFixed(2))
		assert.Equal(t, "50.00", inputDebit.StringFixed(2))
		assert.Equal(t, "50.00", outputCredit.StringFixed(2))
	})

	t.Run("already posted invoice is rejected", func(t *testing.T) {
		f := newPostingFixture(t)
		inv := approvedInvoice(t, invoicing.InvoiceKindAR, valueobject.AED, invoicing.TaxCategoryStandard)
		require.NoError(t, inv.MarkPosted(uuid.New(), d("1"), inv.Subtotal, inv.TaxAmount, inv.Total))

		f.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)

		_, err := f.service.Post(ctx, inv.ID)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, shared.ErrCodeAlreadyPosted, domainErr.Code)
		f.entries.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("missing rate aborts before anything is written", func(t *testing.T) {
		f := newPostingFixture(t)
		inv := approvedInvoice(t, invoicing.InvoiceKindAR, valueobject.EUR, invoicing.TaxCategoryStandard)

		f.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)
		f.rates.On("FindRate", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

		_, err := f.service.Post(ctx, inv.ID)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, shared.ErrCodeRateUnavailable, domainErr.Code)
		assert.Equal(t, invoicing.PostingStatusUnposted, inv.PostingStatus)
		f.entries.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		f.invoices.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("unknown invoice is not found", func(t *testing.T) {
		f := newPostingFixture(t)
		id := uuid.New()
		f.invoices.On("FindByID", ctx, id).Return(nil, nil)

		_, err := f.service.Post(ctx, id)
		assert.Error(t, err)
	})
}

func TestGLPostingService_ReversePosting(t *testing.T) {
	ctx := context.Background()

	postedFixture := func(t *testing.T) (*postingFixture, *invoicing.Invoice, *ledger.JournalEntry) {
		t.Helper()
		f := newPostingFixture(t)
		inv := approvedInvoice(t, invoicing.InvoiceKindAR, valueobject.AED, invoicing.TaxCategoryStandard)

		ar := chartAccount(t, "1100", ledger.AccountTypeAsset)
		revenue := chartAccount(t, "4000", ledger.AccountTypeIncome)
		vat := chartAccount(t, "2200", ledger.AccountTypeLiability)
		entry, err := ledger.NewJournalEntry("JE-00000042", time.Now(), valueobject.AED,
			"Posting of invoice INV-2026-001",
			[]ledger.LineInput{
				ledger.DebitLine(ar, d("1050")),
				ledger.CreditLine(revenue, d("1000")),
				ledger.CreditLine(vat, d("50")),
			})
		require.NoError(t, err)
		require.NoError(t, entry.Post())
		require.NoError(t, inv.MarkPosted(entry.ID, d("1"), d("1000"), d("50"), d("1050")))
		return f, inv, entry
	}

	t.Run("books a mirror entry and marks the invoice reversed", func(t *testing.T) {
		f, inv, entry := postedFixture(t)

		f.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)
		f.entries.On("FindByID", ctx, entry.ID).Return(entry, nil)
		f.entries.On("NextEntryNumber", ctx).Return("JE-00000050", nil)

		var saved *ledger.JournalEntry
		f.entries.On("Save", ctx, mock.AnythingOfType("*ledger.JournalEntry")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*ledger.JournalEntry) }).
			Return(nil)
		f.entries.On("SaveWithLock", ctx, entry).Return(nil)
		f.invoices.On("SaveWithLock", ctx, inv).Return(nil)

		resp, err := f.service.ReversePosting(ctx, inv.ID)
		require.NoError(t, err)

		assert.Equal(t, "JE-00000050", resp.EntryNumber)
		assert.Equal(t, invoicing.PostingStatusReversed, inv.PostingStatus)

		require.NotNil(t, saved)
		assert.True(t, saved.Posted)
		require.NotNil(t, saved.ReversalOfID)
		assert.Equal(t, entry.ID, *saved.ReversalOfID)

		_, arCredit := lineAmounts(saved, "1100")
		revenueDebit, _ := lineAmounts(saved, "4000")
		assert.Equal(t, "1050.00", arCredit.StringFixed(2))
		assert.Equal(t, "1000.00", revenueDebit.StringFixed(2))

		// The audit snapshot stays on the invoice
		assert.NotNil(t, inv.ExchangeRateAtPosting)
		assert.NotNil(t, inv.JournalEntryID)
	})

	t.Run("unposted invoice cannot be reversed", func(t *testing.T) {
		f := newPostingFixture(t)
		inv := approvedInvoice(t, invoicing.InvoiceKindAR, valueobject.AED, invoicing.TaxCategoryStandard)
		f.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)

		_, err := f.service.ReversePosting(ctx, inv.ID)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, shared.ErrCodeInvalidPostingState, domainErr.Code)
	})
}
