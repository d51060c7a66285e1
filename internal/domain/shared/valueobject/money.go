package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyCode is an ISO 4217 currency code.
type CurrencyCode string

const (
	AED CurrencyCode = "AED" // UAE Dirham
	USD CurrencyCode = "USD" // US Dollar
	EUR CurrencyCode = "EUR" // Euro
	GBP CurrencyCode = "GBP" // British Pound
	SAR CurrencyCode = "SAR" // Saudi Riyal
	JPY CurrencyCode = "JPY" // Japanese Yen
)

func (c CurrencyCode) String() string { return string(c) }

// MoneyPlaces is the scale all stored monetary amounts are rounded to.
// Rounding is half away from zero and is applied at the line level and at
// the base-currency conversion step, never only once at the end.
const MoneyPlaces int32 = 2

// Money is an immutable amount in a single currency. Operations that
// combine two Money values fail when the currencies differ rather than
// converting silently.
type Money struct {
	amount   decimal.Decimal
	currency CurrencyCode
}

// NewMoney builds a Money, rejecting an empty currency.
func NewMoney(amount decimal.Decimal, currency CurrencyCode) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: amount, currency: currency}, nil
}

// MustMoney creates a new Money, panicking on an empty currency.
// Intended for literals in wiring and tests.
func MustMoney(amount decimal.Decimal, currency CurrencyCode) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// NewMoneyFromString parses a decimal string amount.
func NewMoneyFromString(amount string, currency CurrencyCode) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoney(d, currency)
}

// NewMoneyFromFloat builds a Money from a float64 amount.
func NewMoneyFromFloat(amount float64, currency CurrencyCode) (Money, error) {
	return NewMoney(decimal.NewFromFloat(amount), currency)
}

// Zero returns a zero amount in the given currency.
func Zero(currency CurrencyCode) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }

func (m Money) Currency() CurrencyCode { return m.currency }

func (m Money) IsZero() bool { return m.amount.IsZero() }

func (m Money) IsPositive() bool { return m.amount.IsPositive() }

func (m Money) IsNegative() bool { return m.amount.IsNegative() }

func currencyMismatch(op string, a, b CurrencyCode) error {
	return fmt.Errorf("cannot %s money with different currencies: %s and %s", op, a, b)
}

// Add sums two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, currencyMismatch("add", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// MustAdd is Add for callers that have already checked the currencies.
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract returns the difference of two amounts of the same currency.
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, currencyMismatch("subtract", m.currency, other.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// MustSubtract is Subtract for callers that have already checked the
// currencies.
func (m Money) MustSubtract(other Money) Money {
	result, err := m.Subtract(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Multiply scales the amount by a factor, keeping full precision. Round
// separately where the result is going to be stored.
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

// Negate flips the sign.
func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// Abs strips the sign.
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs(), currency: m.currency}
}

// Round rounds half away from zero to the given number of places.
func (m Money) Round(places int32) Money {
	return Money{amount: m.amount.Round(places), currency: m.currency}
}

// Convert applies an exchange rate and returns the amount in the target
// currency, rounded to MoneyPlaces. The rate is target units per source unit.
func (m Money) Convert(rate decimal.Decimal, target CurrencyCode) Money {
	return Money{
		amount:   m.amount.Mul(rate).Round(MoneyPlaces),
		currency: target,
	}
}

// CalculatePercentage returns the given percentage of this Money,
// rounded to MoneyPlaces.
func (m Money) CalculatePercentage(percent decimal.Decimal) Money {
	return Money{
		amount:   m.amount.Mul(percent).Div(decimal.NewFromInt(100)).Round(MoneyPlaces),
		currency: m.currency,
	}
}

// Equals reports whether both currency and amount match.
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// LessThan compares two amounts of the same currency.
func (m Money) LessThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, currencyMismatch("compare", m.currency, other.currency)
	}
	return m.amount.LessThan(other.amount), nil
}

// GreaterThan compares two amounts of the same currency.
func (m Money) GreaterThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, currencyMismatch("compare", m.currency, other.currency)
	}
	return m.amount.GreaterThan(other.amount), nil
}

// String renders the amount at MoneyPlaces followed by the currency,
// e.g. "1250.00 AED".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(MoneyPlaces), m.currency)
}

type moneyJSON struct {
	Amount   string       `json:"amount"`
	Currency CurrencyCode `json:"currency"`
}

// MarshalJSON encodes the amount as a string to avoid float precision
// loss in clients.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{
		Amount:   m.amount.String(),
		Currency: m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(v.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	m.amount = amount
	m.currency = v.Currency
	return nil
}

// Value implements driver.Valuer for database storage (amount only; the
// currency lives in its own column on the owning row).
func (m Money) Value() (driver.Value, error) {
	return m.amount.String(), nil
}

// Scan implements sql.Scanner. A NULL column scans as a zero amount.
func (m *Money) Scan(value any) error {
	if value == nil {
		m.amount = decimal.Zero
		return nil
	}

	var strVal string
	switch v := value.(type) {
	case string:
		strVal = v
	case []byte:
		strVal = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}

	amount, err := decimal.NewFromString(strVal)
	if err != nil {
		return fmt.Errorf("invalid decimal value: %w", err)
	}
	m.amount = amount
	return nil
}
