package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx response. Error is always a
// plain string so clients can rely on `{"error": "..."}` parsing.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeMalformedKey       = "MALFORMED_CREDENTIAL"
	ErrCodeInvalidCredential  = "INVALID_CREDENTIAL"
	ErrCodeCredentialDisabled = "CREDENTIAL_DISABLED"
	ErrCodeCredentialExpired  = "CREDENTIAL_EXPIRED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeRouteNotFound      = "ROUTE_NOT_FOUND"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeQuotaExceeded      = "QUOTA_EXCEEDED"
	ErrCodeUpstream           = "UPSTREAM_FAILURE"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
		Code:  code,
	})
}
