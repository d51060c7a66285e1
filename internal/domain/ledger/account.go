package ledger

import (
	"github.com/erp/ledger/internal/domain/shared"
)

// AccountType classifies a ledger account for reporting and for the
// normal-balance convention used by the accrual aggregation.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// IsValid checks if the account type is valid
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// String returns the string representation of AccountType
func (t AccountType) String() string {
	return string(t)
}

// Account represents a chart-of-accounts entry. Accounts are created by
// configuration and only read by the posting engine; journal lines
// reference them and they are never deleted.
type Account struct {
	shared.BaseAggregateRoot
	Code   string      `gorm:"type:varchar(20);not null;uniqueIndex"`
	Name   string      `gorm:"type:varchar(200);not null"`
	Type   AccountType `gorm:"type:varchar(20);not null;index"`
	Active bool        `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Account) TableName() string {
	return "accounts"
}

// NewAccount creates a new ledger account
func NewAccount(code, name string, accountType AccountType) (*Account, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_CODE", "Account code cannot be empty")
	}
	if len(code) > 20 {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_CODE", "Account code cannot exceed 20 characters")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_NAME", "Account name cannot be empty")
	}
	if !accountType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_TYPE", "Account type is not valid")
	}

	return &Account{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              name,
		Type:              accountType,
		Active:            true,
	}, nil
}

// Deactivate marks the account inactive; the resolver will refuse it
func (a *Account) Deactivate() {
	a.Active = false
	a.IncrementVersion()
}
