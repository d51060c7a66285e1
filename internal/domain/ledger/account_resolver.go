package ledger

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
)

// AccountRole is a semantic role the posting engine needs an account for.
// Roles are a closed set; deployments map them to concrete account codes
// through a RoleMapping instead of compiled-in constants.
type AccountRole string

const (
	RoleBank           AccountRole = "bank"
	RoleARControl      AccountRole = "ar_control"
	RoleAPControl      AccountRole = "ap_control"
	RoleVATOutput      AccountRole = "vat_output"
	RoleVATInput       AccountRole = "vat_input"
	RoleRevenue        AccountRole = "revenue"
	RoleExpense        AccountRole = "expense"
	RoleCorpTaxPayable AccountRole = "corp_tax_payable"
	RoleCorpTaxExpense AccountRole = "corp_tax_expense"
	RoleFXGain         AccountRole = "fx_gain"
	RoleFXLoss         AccountRole = "fx_loss"
)

// IsValid checks if the role is part of the closed set
func (r AccountRole) IsValid() bool {
	switch r {
	case RoleBank, RoleARControl, RoleAPControl, RoleVATOutput, RoleVATInput,
		RoleRevenue, RoleExpense, RoleCorpTaxPayable, RoleCorpTaxExpense,
		RoleFXGain, RoleFXLoss:
		return true
	}
	return false
}

// String returns the string representation of AccountRole
func (r AccountRole) String() string {
	return string(r)
}

// ExpectedType returns the account type a role must resolve to
func (r AccountRole) ExpectedType() AccountType {
	switch r {
	case RoleBank, RoleARControl:
		return AccountTypeAsset
	case RoleAPControl, RoleVATOutput, RoleVATInput, RoleCorpTaxPayable:
		return AccountTypeLiability
	case RoleRevenue, RoleFXGain:
		return AccountTypeIncome
	case RoleExpense, RoleCorpTaxExpense, RoleFXLoss:
		return AccountTypeExpense
	}
	return ""
}

// RoleMapping maps semantic roles to chart-of-accounts codes. It is
// supplied by configuration and injected into the resolver.
type RoleMapping map[AccountRole]string

// Code returns the configured account code for a role
func (m RoleMapping) Code(role AccountRole) (string, bool) {
	code, ok := m[role]
	return code, ok
}

// Validate checks that every required role is mapped to a non-empty code
func (m RoleMapping) Validate(required ...AccountRole) error {
	for _, role := range required {
		if code, ok := m[role]; !ok || code == "" {
			return shared.NewDomainError("INVALID_ROLE_MAPPING",
				fmt.Sprintf("Role %s has no account code mapped", role)).
				WithDetail("role", role.String())
		}
	}
	return nil
}

// AccountResolver resolves semantic roles to concrete active accounts.
// Resolution failures are fatal to the calling operation: the posting
// engine never auto-creates accounts and never continues with a partial
// set of lines.
type AccountResolver struct {
	mapping  RoleMapping
	accounts AccountRepository
}

// NewAccountResolver creates a new AccountResolver
func NewAccountResolver(mapping RoleMapping, accounts AccountRepository) *AccountResolver {
	return &AccountResolver{mapping: mapping, accounts: accounts}
}

// Resolve maps a role to its configured, active account of the expected
// type, or fails with MISSING_ACCOUNT naming the role, the mapped code and
// the expected type.
func (r *AccountResolver) Resolve(ctx context.Context, role AccountRole) (*Account, error) {
	if !role.IsValid() {
		return nil, shared.NewDomainError("INVALID_ROLE", fmt.Sprintf("Unknown account role %q", role)).
			WithDetail("role", role.String())
	}

	code, ok := r.mapping.Code(role)
	if !ok || code == "" {
		return nil, missingAccount(role, "", "No account code mapped for role")
	}

	account, err := r.accounts.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account %s: %w", code, err)
	}
	if account == nil {
		return nil, missingAccount(role, code, "Mapped account does not exist")
	}
	if !account.Active {
		return nil, missingAccount(role, code, "Mapped account is inactive")
	}
	if expected := role.ExpectedType(); account.Type != expected {
		return nil, missingAccount(role, code,
			fmt.Sprintf("Mapped account has type %s, expected %s", account.Type, expected))
	}

	return account, nil
}

func missingAccount(role AccountRole, code, reason string) *shared.DomainError {
	err := shared.NewDomainError(shared.ErrCodeMissingAccount,
		fmt.Sprintf("Cannot resolve account for role %s: %s", role, reason)).
		WithDetail("role", role.String()).
		WithDetail("expected_type", role.ExpectedType().String())
	if code != "" {
		err = err.WithDetail("account_code", code)
	}
	return err
}
