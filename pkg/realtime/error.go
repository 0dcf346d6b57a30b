package realtime

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned to waiters when the session or manager is
// closed while they are blocked.
var ErrSessionClosed = errors.New("realtime: session closed")

// Error is a typed protocol error, either decoded from an "error" server
// event or synthesized from a failed HTTP exchange.
type Error struct {
	// Type is the error type (e.g. "invalid_request_error").
	Type string `json:"type,omitzero"`

	// Code is the error code (e.g. "invalid_value").
	Code string `json:"code,omitzero"`

	// Message is the human-readable error message.
	Message string `json:"message,omitzero"`

	// Param is the parameter that caused the error, if any.
	Param string `json:"param,omitzero"`

	// EventID is the ID of the client event that caused the error.
	EventID string `json:"event_id,omitzero"`

	// HTTPStatus is set when the error came from an HTTP response.
	HTTPStatus int `json:"-"`
}

func (e *Error) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("realtime: %s: %s", e.Code, e.Message)
	case e.Type != "":
		return fmt.Sprintf("realtime: %s: %s", e.Type, e.Message)
	default:
		return fmt.Sprintf("realtime: %s", e.Message)
	}
}
