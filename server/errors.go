package server

import (
	"fmt"
	"net/http"
)

// OAuth error codes as constants (RFC 6749 §5.2 and §4.1.2.1)
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidGrant            = "invalid_grant"
	ErrorCodeInvalidClient           = "invalid_client"
	ErrorCodeInvalidScope            = "invalid_scope"
	ErrorCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
	ErrorCodeServerError             = "server_error"
	ErrorCodeAccessDenied            = "access_denied"
	ErrorCodeInvalidRedirectURI      = "invalid_redirect_uri"
)

// Error represents an OAuth 2.0 protocol error. It is rendered to clients as
// the RFC 6749 {error, error_description} JSON shape.
type Error struct {
	Code        string // OAuth error code (e.g., "invalid_request", "invalid_grant")
	Description string // Human-readable error description
	Status      int    // HTTP status code
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewError creates a new OAuth protocol error
func NewError(code, description string, status int) *Error {
	return &Error{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// Common OAuth errors as reusable constructors
var (
	// ErrInvalidRequest indicates the request is malformed or missing required parameters
	ErrInvalidRequest = func(desc string) *Error {
		return NewError(ErrorCodeInvalidRequest, desc, http.StatusBadRequest)
	}

	// ErrInvalidGrant indicates the authorization code or refresh token is invalid or expired
	ErrInvalidGrant = func(desc string) *Error {
		return NewError(ErrorCodeInvalidGrant, desc, http.StatusBadRequest)
	}

	// ErrInvalidClient indicates client authentication failed
	ErrInvalidClient = func(desc string) *Error {
		return NewError(ErrorCodeInvalidClient, desc, http.StatusUnauthorized)
	}

	// ErrInvalidScope indicates the requested scope is invalid or exceeds the original grant
	ErrInvalidScope = func(desc string) *Error {
		return NewError(ErrorCodeInvalidScope, desc, http.StatusBadRequest)
	}

	// ErrUnsupportedGrantType indicates the grant type is not supported
	ErrUnsupportedGrantType = func(desc string) *Error {
		return NewError(ErrorCodeUnsupportedGrantType, desc, http.StatusBadRequest)
	}

	// ErrServerError indicates an internal server error occurred
	ErrServerError = func(desc string) *Error {
		return NewError(ErrorCodeServerError, desc, http.StatusInternalServerError)
	}

	// ErrInvalidRedirectURI indicates the redirect URI is invalid or not registered
	ErrInvalidRedirectURI = func(desc string) *Error {
		return NewError(ErrorCodeInvalidRedirectURI, desc, http.StatusBadRequest)
	}
)

// APIError represents a non-protocol error (registration, consent, sessions).
// It is rendered to clients as a {detail} JSON body.
type APIError struct {
	Detail string
	Status int
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Detail
}

// NewValidationError creates a 400 validation failure
func NewValidationError(detail string) *APIError {
	return &APIError{Detail: detail, Status: http.StatusBadRequest}
}

// NewUnauthorizedError creates a 401 for failed user authentication
func NewUnauthorizedError(detail string) *APIError {
	return &APIError{Detail: detail, Status: http.StatusUnauthorized}
}

// NewForbiddenError creates a 403 for ownership or session violations
func NewForbiddenError(detail string) *APIError {
	return &APIError{Detail: detail, Status: http.StatusForbidden}
}

// NewNotFoundError creates a 404 for absent or expired records
func NewNotFoundError(detail string) *APIError {
	return &APIError{Detail: detail, Status: http.StatusNotFound}
}

// NewConflictError creates a 409 for uniqueness violations
func NewConflictError(detail string) *APIError {
	return &APIError{Detail: detail, Status: http.StatusConflict}
}

// NewInternalError creates an opaque 500. The underlying cause is logged
// server-side and never included in the response.
func NewInternalError() *APIError {
	return &APIError{Detail: "internal server error", Status: http.StatusInternalServerError}
}
