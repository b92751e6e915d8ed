package dto

import (
	"net/http"

	"github.com/lotes/backend/internal/domain/lote"
)

// Codes used by the HTTP layer itself
const (
	ErrCodeInvalidJSON  = "INVALID_JSON"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeTooLarge     = "REQUEST_TOO_LARGE"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
)

// ErrorCodeHTTPStatus maps domain error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	"NOT_FOUND":            http.StatusNotFound,
	"ALREADY_EXISTS":       http.StatusConflict,
	"INVALID_INPUT":        http.StatusBadRequest,
	"INVALID_EMAIL":        http.StatusBadRequest,
	"INVALID_PASSWORD":     http.StatusBadRequest,
	"CONCURRENCY_CONFLICT": http.StatusConflict,
	"UNAUTHORIZED":         http.StatusUnauthorized,
	"INVALID_CREDENTIALS":  http.StatusUnauthorized,
	"FORBIDDEN":            http.StatusForbidden,
	"INVALID_STATE":        http.StatusConflict,
	"INSUFFICIENT_BALANCE": http.StatusConflict,

	ErrCodeInvalidJSON: http.StatusBadRequest,
	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeRateLimited: http.StatusTooManyRequests,
	ErrCodeTooLarge:    http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AcquisitionStatus maps an acquisition failure kind to its HTTP status.
// Every kind is listed; anything else is treated as internal.
func AcquisitionStatus(kind lote.Kind) int {
	switch kind {
	case lote.KindInvalidRequest:
		return http.StatusBadRequest
	case lote.KindUnauthorized:
		return http.StatusUnauthorized
	case lote.KindAlreadyOwned, lote.KindInsufficientBalance:
		return http.StatusConflict
	case lote.KindInternal:
		return http.StatusForbidden
	default:
		return http.StatusForbidden
	}
}
