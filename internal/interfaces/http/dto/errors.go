package dto

import "net/http"

// General error codes used by the HTTP layer itself
const (
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeInternal   = "INTERNAL_ERROR"
)

// DomainErrorHTTPStatus maps domain error codes to HTTP status codes.
// Codes not listed default to 400: domain errors are rejections of the
// request, not server faults.
var DomainErrorHTTPStatus = map[string]int{
	"NOT_FOUND": http.StatusNotFound,

	// Conflicts with existing state
	"ALREADY_EXISTS":       http.StatusConflict,
	"ALREADY_POSTED":       http.StatusConflict,
	"DUPLICATE_ALLOCATION": http.StatusConflict,
	"CONCURRENCY_CONFLICT": http.StatusConflict,

	// Business rule violations on otherwise well-formed requests
	"MISSING_ACCOUNT":          http.StatusUnprocessableEntity,
	"RATE_UNAVAILABLE":         http.StatusUnprocessableEntity,
	"UNBALANCED_ENTRY":         http.StatusUnprocessableEntity,
	"INVALID_POSTING_STATE":    http.StatusUnprocessableEntity,
	"ALLOCATION_EXCEEDS_LIMIT": http.StatusUnprocessableEntity,
	"INVALID_STATE":            http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status for a domain error code
func GetHTTPStatus(code string) int {
	if status, ok := DomainErrorHTTPStatus[code]; ok {
		return status
	}
	return http.StatusBadRequest
}
