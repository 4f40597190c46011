package oauth

import "github.com/guilherme-hl1ma/project-library-oauth/server"

// OAuth error codes, re-exported from the server package so callers only
// need this package to inspect errors.
const (
	ErrorCodeInvalidRequest          = server.ErrorCodeInvalidRequest
	ErrorCodeInvalidGrant            = server.ErrorCodeInvalidGrant
	ErrorCodeInvalidClient           = server.ErrorCodeInvalidClient
	ErrorCodeInvalidScope            = server.ErrorCodeInvalidScope
	ErrorCodeUnsupportedGrantType    = server.ErrorCodeUnsupportedGrantType
	ErrorCodeUnsupportedResponseType = server.ErrorCodeUnsupportedResponseType
	ErrorCodeServerError             = server.ErrorCodeServerError
	ErrorCodeAccessDenied            = server.ErrorCodeAccessDenied
	ErrorCodeInvalidRedirectURI      = server.ErrorCodeInvalidRedirectURI

	// ErrorCodeRateLimitExceeded is used by the HTTP layer for 429 responses
	ErrorCodeRateLimitExceeded = "rate_limit_exceeded"
)

// Error is an OAuth 2.0 protocol error, rendered to clients as the
// RFC 6749 {error, error_description} JSON shape.
type Error = server.Error

// APIError is a non-protocol error (registration, consent, sessions),
// rendered to clients as a {detail} JSON body.
type APIError = server.APIError

// NewError creates a new OAuth protocol error
var NewError = server.NewError

// Protocol error constructors
var (
	ErrInvalidRequest       = server.ErrInvalidRequest
	ErrInvalidGrant         = server.ErrInvalidGrant
	ErrInvalidClient        = server.ErrInvalidClient
	ErrInvalidScope         = server.ErrInvalidScope
	ErrUnsupportedGrantType = server.ErrUnsupportedGrantType
	ErrServerError          = server.ErrServerError
	ErrInvalidRedirectURI   = server.ErrInvalidRedirectURI
)

// Non-protocol error constructors
var (
	NewValidationError   = server.NewValidationError
	NewUnauthorizedError = server.NewUnauthorizedError
	NewForbiddenError    = server.NewForbiddenError
	NewNotFoundError     = server.NewNotFoundError
	NewConflictError     = server.NewConflictError
	NewInternalError     = server.NewInternalError
)
