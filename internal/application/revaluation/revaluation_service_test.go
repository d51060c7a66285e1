package revaluation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/currency"
	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/payment"
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

// MockPaymentRepository is a mock implementation of payment.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByAllocationID(ctx context.Context, allocationID uuid.UUID) (*payment.Payment, error) {
	args := m.Called(ctx, allocationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Save(ctx context.Context, pay *payment.Payment) error {
	args := m.Called(ctx, pay)
	return args.Error(0)
}

func (m *MockPaymentRepository) SaveWithLock(ctx context.Context, pay *payment.Payment) error {
	args := m.Called(ctx, pay)
	return args.Error(0)
}

func (m *MockPaymentRepository) SumAllocatedToInvoice(ctx context.Context, ref invoicing.InvoiceRef) (decimal.Decimal, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(decimal.Decimal), args.Error(1)
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

type revaluationFixture struct {
	invoices *MockInvoiceRepository
	payments *MockPaymentRepository
	entries  *MockJournalEntryRepository
	rates    *MockExchangeRateRepository
	service  *RevaluationService
}

func chartAccount(t *testing.T, code string, accountType ledger.AccountType) *ledger.Account {
	t.Helper()
	account, err := ledger.NewAccount(code, "Account "+code, accountType)
	require.NoError(t, err)
	return account
}

func newRevaluationFixture(t *testing.T) *revaluationFixture {
	t.Helper()

	invoices := new(MockInvoiceRepository)
	payments := new(MockPaymentRepository)
	entries := new(MockJournalEntryRepository)
	accounts := new(MockAccountRepository)
	rates := new(MockExchangeRateRepository)

	mapping := ledger.RoleMapping{
		ledger.RoleARControl: "1100",
		ledger.RoleAPControl: "2100",
		ledger.RoleFXGain:    "4900",
		ledger.RoleFXLoss:    "5950",
	}
	accounts.On("FindByCode", mock.Anything, "1100").Return(chartAccount(t, "1100", ledger.AccountTypeAsset), nil).Maybe()
	accounts.On("FindByCode", mock.Anything, "2100").Return(chartAccount(t, "2100", ledger.AccountTypeLiability), nil).Maybe()
	accounts.On("FindByCode", mock.Anything, "4900").Return(chartAccount(t, "4900", ledger.AccountTypeIncome), nil).Maybe()
	accounts.On("FindByCode", mock.Anything, "5950").Return(chartAccount(t, "5950", ledger.AccountTypeExpense), nil).Maybe()

	registry, err := currency.NewBaseCurrencyRegistry(valueobject.AED)
	require.NoError(t, err)

	service := NewRevaluationService(
		invoices,
		payments,
		entries,
		ledger.NewAccountResolver(mapping, accounts),
		currency.NewRateService(rates, registry),
		shared.NopTransactionManager{},
		nil,
	)

	return &revaluationFixture{
		invoices: invoices,
		payments: payments,
		entries:  entries,
		rates:    rates,
		service:  service,
	}
}

// openInvoice builds a posted invoice with one 10 x 100 line at 5% tax,
// posted at the given rate.
func openInvoice(t *testing.T, kind invoicing.InvoiceKind, number string, curr valueobject.CurrencyCode, rate string) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice(kind, uuid.New(), "Acme Trading LLC", number,
		time.Now(), nil, curr, "AE")
	require.NoError(t, err)
	_, err = inv.AddLine("Consulting", d("10"), d("100"), d("5"), invoicing.TaxCategoryStandard)
	require.NoError(t, err)
	require.NoError(t, inv.SubmitForApproval())
	require.NoError(t, inv.Approve())

	r := d(rate)
	baseSubtotal := inv.Subtotal.Mul(r).Round(valueobject.MoneyPlaces)
	baseTax := inv.TaxAmount.Mul(r).Round(valueobject.MoneyPlaces)
	require.NoError(t, inv.MarkPosted(uuid.New(), r, baseSubtotal, baseTax, baseSubtotal.Add(baseTax)))
	return inv
}

func TestRevaluationService_Revalue(t *testing.T) {
	ctx := context.Background()
	asOf := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	t.Run("books an aggregate unrealized gain entry", func(t *testing.T) {
		f := newRevaluationFixture(t)
		// USD receivable 1050 posted at 3.65, revalued at 3.70
		inv := openInvoice(t, invoicing.InvoiceKindAR, "INV-2026-001", valueobject.USD, "3.65")

		usdRate, err := currency.NewExchangeRate(valueobject.USD, valueobject.AED, d("3.70"), asOf, currency.RateTypeSpot)
		require.NoError(t, err)

		f.invoices.On("FindOpenPosted", ctx).Return([]invoicing.Invoice{*inv}, nil)
		f.rates.On("FindRate", ctx, valueobject.USD, valueobject.AED, asOf).Return(usdRate, nil)
		f.payments.On("SumAllocatedToInvoice", ctx, mock.Anything).Return(decimal.Zero, nil)
		f.entries.On("NextEntryNumber", ctx).Return("JE-00000100", nil)

		var saved *ledger.JournalEntry
		f.entries.On("Save", ctx, mock.AnythingOfType("*ledger.JournalEntry")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*ledger.JournalEntry) }).
			Return(nil)

		resp, err := f.service.Revalue(ctx, asOf)
		require.NoError(t, err)

		// 1050 USD * (3.70 - 3.65) = 52.50 AED
		assert.Equal(t, 1, resp.InvoicesRevalued)
		assert.Equal(t, "52.50", resp.ARGainLoss.StringFixed(2))
		assert.True(t, resp.APGainLoss.IsZero())
		assert.Equal(t, "JE-00000100", resp.EntryNumber)
		require.NotNil(t, resp.JournalEntryID)

		require.NotNil(t, saved)
		assert.True(t, saved.Posted)
		require.Len(t, saved.Lines, 2)
		assert.Equal(t, "1100", saved.Lines[0].AccountCode)
		assert.Equal(t, "52.50", saved.Lines[0].Debit.StringFixed(2))
		assert.Equal(t, "4900", saved.Lines[1].AccountCode)
		assert.Equal(t, "52.50", saved.Lines[1].Credit.StringFixed(2))
	})

	t.Run("a weaker payable currency is reported as a gain", func(t *testing.T) {
		f := newRevaluationFixture(t)
		// USD payable 1050 posted at 3.70, revalued at 3.65
		inv := openInvoice(t, invoicing.InvoiceKindAP, "BILL-2026-001", valueobject.USD, "3.70")

		usdRate, err := currency.NewExchangeRate(valueobject.USD, valueobject.AED, d("3.65"), asOf, currency.RateTypeSpot)
		require.NoError(t, err)

		f.invoices.On("FindOpenPosted", ctx).Return([]invoicing.Invoice{*inv}, nil)
		f.rates.On("FindRate", ctx, valueobject.USD, valueobject.AED, asOf).Return(usdRate, nil)
		f.payments.On("SumAllocatedToInvoice", ctx, mock.Anything).Return(decimal.Zero, nil)
		f.entries.On("NextEntryNumber", ctx).Return("JE-00000101", nil)

		var saved *ledger.JournalEntry
		f.entries.On("Save", ctx, mock.AnythingOfType("*ledger.JournalEntry")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*ledger.JournalEntry) }).
			Return(nil)

		resp, err := f.service.Revalue(ctx, asOf)
		require.NoError(t, err)

		// The payable shrank by 1050 * 0.05 = 52.50 AED
		assert.Equal(t, "52.50", resp.APGainLoss.StringFixed(2))
		require.NotNil(t, saved)
		require.Len(t, saved.Lines, 2)
		assert.Equal(t, "2100", saved.Lines[0].AccountCode)
		assert.Equal(t, "52.50", saved.Lines[0].Debit.StringFixed(2))
		assert.Equal(t, "4900", saved.Lines[1].AccountCode)
		assert.Equal(t, "52.50", saved.Lines[1].Credit.StringFixed(2))
	})

	t.Run("base currency invoices are skipped", func(t *testing.T) {
		f := newRevaluationFixture(t)
		inv := openInvoice(t, invoicing.InvoiceKindAR, "INV-2026-002", valueobject.AED, "1")

		f.invoices.On("FindOpenPosted", ctx).Return([]invoicing.Invoice{*inv}, nil)

		resp, err := f.service.Revalue(ctx, asOf)
		require.NoError(t, err)

		assert.Equal(t, 0, resp.InvoicesRevalued)
		assert.Nil(t, resp.JournalEntryID)
		f.rates.AssertNotCalled(t, "FindRate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.entries.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("an unchanged rate produces no entry", func(t *testing.T) {
		f := newRevaluationFixture(t)
		inv := openInvoice(t, invoicing.InvoiceKindAR, "INV-2026-003", valueobject.USD, "3.6725")

		usdRate, err := currency.NewExchangeRate(valueobject.USD, valueobject.AED, d("3.6725"), asOf, currency.RateTypeSpot)
		require.NoError(t, err)

		f.invoices.On("FindOpenPosted", ctx).Return([]invoicing.Invoice{*inv}, nil)
		f.rates.On("FindRate", ctx, valueobject.USD, valueobject.AED, asOf).Return(usdRate, nil)
		f.payments.On("SumAllocatedToInvoice", ctx, mock.Anything).Return(decimal.Zero, nil)

		resp, err := f.service.Revalue(ctx, asOf)
		require.NoError(t, err)

		assert.Equal(t, 0, resp.InvoicesRevalued)
		assert.Nil(t, resp.JournalEntryID)
		f.entries.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("a missing rate aborts the whole run", func(t *testing.T) {
		f := newRevaluationFixture(t)
		usd := openInvoice(t, invoicing.InvoiceKindAR, "INV-2026-004", valueobject.USD, "3.65")
		eur := openInvoice(t, invoicing.InvoiceKindAR, "INV-2026-005", valueobject.EUR, "4.00")

		usdRate, err := currency.NewExchangeRate(valueobject.USD, valueobject.AED, d("3.70"), asOf, currency.RateTypeSpot)
		require.NoError(t, err)

		f.invoices.On("FindOpenPosted", ctx).Return([]invoicing.Invoice{*usd, *eur}, nil)
		f.rates.On("FindRate", ctx, valueobject.USD, valueobject.AED, asOf).Return(usdRate, nil).Maybe()
		f.rates.On("FindRate", ctx, valueobject.EUR, valueobject.AED, asOf).Return(nil, nil)
		f.rates.On("FindRate", ctx, valueobject.AED, valueobject.EUR, asOf).Return(nil, nil)
		f.payments.On("SumAllocatedToInvoice", ctx, mock.Anything).Return(decimal.Zero, nil).Maybe()

		_, err = f.service.Revalue(ctx, asOf)

		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, shared.ErrCodeRateUnavailable, domainErr.Code)
		f.entries.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("fully settled invoices contribute nothing", func(t *testing.T) {
		f := newRevaluationFixture(t)
		inv := openInvoice(t, invoicing.InvoiceKindAR, "INV-2026-006", valueobject.USD, "3.65")

		usdRate, err := currency.NewExchangeRate(valueobject.USD, valueobject.AED, d("3.70"), asOf, currency.RateTypeSpot)
		require.NoError(t, err)

		f.invoices.On("FindOpenPosted", ctx).Return([]invoicing.Invoice{*inv}, nil)
		f.rates.On("FindRate", ctx, valueobject.USD, valueobject.AED, asOf).Return(usdRate, nil)
		f.payments.On("SumAllocatedToInvoice", ctx, mock.Anything).Return(d("1050"), nil)

		resp, err := f.service.Revalue(ctx, asOf)
		require.NoError(t, err)

		assert.Equal(t, 0, resp.InvoicesRevalued)
		assert.Nil(t, resp.JournalEntryID)
	})
}
