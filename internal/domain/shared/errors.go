package shared

// DomainError represents a domain-level error.
// Details carries structured context (role names, currency pairs, computed
// limits) so the HTTP layer can render an actionable message without
// parsing the message text.
type DomainError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code, so detailed copies of a sentinel
// still satisfy errors.Is against the sentinel itself
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// WithDetail returns a copy of the error with an additional detail entry.
// Copying keeps the package-level sentinels immutable.
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Code: e.Code, Message: e.Message, Details: details}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithDetails creates a new domain error with structured details
func NewDomainErrorWithDetails(code, message string, details map[string]any) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Error codes used across the posting and reconciliation engine
const (
	ErrCodeMissingAccount         = "MISSING_ACCOUNT"
	ErrCodeRateUnavailable        = "RATE_UNAVAILABLE"
	ErrCodeUnbalancedEntry        = "UNBALANCED_ENTRY"
	ErrCodeInvalidPostingState    = "INVALID_POSTING_STATE"
	ErrCodeAllocationExceedsLimit = "ALLOCATION_EXCEEDS_LIMIT"
	ErrCodeDuplicateAllocation    = "DUPLICATE_ALLOCATION"
	ErrCodeAlreadyPosted          = "ALREADY_POSTED"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)
