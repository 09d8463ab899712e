package mfasdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/mfagate/pkg/httpx"
)

// Machine-readable error codes used across the API.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidCode        = "invalid_code"
	ErrorCodeLocked             = "locked"
	ErrorCodeNotEnrolled        = "not_enrolled"
	ErrorCodeAlreadyEnrolled    = "already_enrolled"
	ErrorCodeBypassDenied       = "bypass_denied"
	ErrorCodeServerError        = "server_error"
	ErrorCodeServiceUnavailable = "service_unavailable"
)

// GateError is the API's error envelope. It implements the error interface
// and is used both by the server (to write HTTP responses) and by the SDK
// client (to represent errors).
type GateError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine-readable error code (e.g., "invalid_code")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`

	// RetryAfter, when set, tells the caller when a locked principal may try
	// again (RFC 3339). Only populated for "locked" errors.
	RetryAfter string `json:"retry_after,omitempty"`
}

// Error implements the error interface.
func (e *GateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this GateError to an HTTP response writer.
func (e *GateError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

var (
	ErrInvalidRequest = &GateError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidCode deliberately does not say why the code was rejected.
	ErrInvalidCode = &GateError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidCode,
		Description: "the verification code was not accepted",
	}

	ErrNotEnrolled = &GateError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeNotEnrolled,
		Description: "MFA enrollment has not been completed for this principal",
	}

	ErrAlreadyEnrolled = &GateError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeAlreadyEnrolled,
		Description: "an active MFA enrollment already exists for this principal",
	}

	ErrBypassDenied = &GateError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeBypassDenied,
		Description: "the principal is not eligible for an emergency bypass",
	}

	ErrServerError = &GateError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "an internal error occurred",
	}

	ErrServiceUnavailable = &GateError{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeServiceUnavailable,
		Description: "a required backend is unavailable",
	}
)

// NewLockedError builds the "locked" error carrying the retry time.
func NewLockedError(retryAfter string) *GateError {
	return &GateError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        ErrorCodeLocked,
		Description: "too many failed attempts; try again later",
		RetryAfter:  retryAfter,
	}
}
