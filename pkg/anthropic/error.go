package anthropic

import (
	"errors"
	"fmt"
)

// Error type strings returned by the API.
const (
	ErrTypeInvalidRequest = "invalid_request_error"
	ErrTypeAuthentication = "authentication_error"
	ErrTypePermission     = "permission_error"
	ErrTypeNotFound       = "not_found_error"
	ErrTypeRequestTooLong = "request_too_large"
	ErrTypeRateLimit      = "rate_limit_error"
	ErrTypeAPI            = "api_error"
	ErrTypeOverloaded     = "overloaded_error"
)

// Error represents an Anthropic API error.
type Error struct {
	// Type is the API error type, e.g. "rate_limit_error".
	Type string `json:"type"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// HTTPStatus is the HTTP status code.
	HTTPStatus int `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("anthropic: %s (type=%s, status=%d)", e.Message, e.Type, e.HTTPStatus)
}

// IsRateLimit returns true if this is a rate limit error.
func (e *Error) IsRateLimit() bool {
	return e.Type == ErrTypeRateLimit || e.HTTPStatus == 429
}

// IsAuthentication returns true if the API key was rejected.
func (e *Error) IsAuthentication() bool {
	return e.Type == ErrTypeAuthentication || e.HTTPStatus == 401
}

// IsOverloaded returns true if the API is temporarily overloaded.
func (e *Error) IsOverloaded() bool {
	return e.Type == ErrTypeOverloaded || e.HTTPStatus == 529
}

// IsInvalidRequest returns true if the request was malformed.
func (e *Error) IsInvalidRequest() bool {
	return e.Type == ErrTypeInvalidRequest || e.HTTPStatus == 400
}

// IsServerError returns true if this is a server-side error.
func (e *Error) IsServerError() bool {
	return e.Type == ErrTypeAPI || e.HTTPStatus >= 500
}

// Retryable returns true if the request can be retried.
func (e *Error) Retryable() bool {
	return e.IsRateLimit() || e.IsOverloaded() || e.IsServerError()
}

// AsError extracts *Error from an error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
