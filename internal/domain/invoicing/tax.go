package invoicing

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// TaxCategory determines how a line's tax is computed and routed
type TaxCategory string

const (
	TaxCategoryStandard      TaxCategory = "STANDARD"       // Net × rate, charged on the document
	TaxCategoryZero          TaxCategory = "ZERO"           // Taxable at 0%
	TaxCategoryExempt        TaxCategory = "EXEMPT"         // Outside the scope of the tax
	TaxCategoryReverseCharge TaxCategory = "REVERSE_CHARGE" // Buyer self-assesses the tax
)

// IsValid checks if the tax category is valid
func (c TaxCategory) IsValid() bool {
	switch c {
	case TaxCategoryStandard, TaxCategoryZero, TaxCategoryExempt, TaxCategoryReverseCharge:
		return true
	}
	return false
}

// String returns the string representation of TaxCategory
func (c TaxCategory) String() string {
	return string(c)
}

// LineTax is the result of computing one invoice line. SelfAssessed marks
// reverse-charge tax: it is computed for reporting and self-assessment
// posting but excluded from the amount charged on the document.
type LineTax struct {
	Net          decimal.Decimal
	Tax          decimal.Decimal
	SelfAssessed bool
}

// ComputeLine calculates the net and tax amounts for a quantity, unit
// price and tax rate. Both values are rounded half away from zero to
// money precision at the line level; invoice totals are sums of already
// rounded lines so the ledger balances exactly.
func ComputeLine(quantity, unitPrice, ratePercent decimal.Decimal, category TaxCategory) (LineTax, error) {
	if !category.IsValid() {
		return LineTax{}, shared.NewDomainError("INVALID_TAX_CATEGORY", "Tax category is not valid").
			WithDetail("category", string(category))
	}
	if quantity.IsNegative() {
		return LineTax{}, shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	if ratePercent.IsNegative() {
		return LineTax{}, shared.NewDomainError("INVALID_TAX_RATE", "Tax rate cannot be negative")
	}

	net := quantity.Mul(unitPrice).Round(valueobject.MoneyPlaces)

	switch category {
	case TaxCategoryZero, TaxCategoryExempt:
		return LineTax{Net: net, Tax: decimal.Zero}, nil
	case TaxCategoryReverseCharge:
		tax := net.Mul(ratePercent).Div(decimal.NewFromInt(100)).Round(valueobject.MoneyPlaces)
		return LineTax{Net: net, Tax: tax, SelfAssessed: true}, nil
	default:
		tax := net.Mul(ratePercent).Div(decimal.NewFromInt(100)).Round(valueobject.MoneyPlaces)
		return LineTax{Net: net, Tax: tax}, nil
	}
}
