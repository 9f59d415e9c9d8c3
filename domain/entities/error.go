package entities

import "fmt"

// ErrorDetail is the structured form of an error crossing the plugin boundary
// or reported by the CLI.
// Types: "argument", "decode", "lifecycle", "handle", "call", "validation", "panic", "internal"
type ErrorDetail struct {
	// Wrapped carries the cause, if it was itself structured.
	Wrapped *ErrorDetail `json:"wrapped,omitempty"`

	// Details holds extra context such as the argument name or plugin.
	Details map[string]any `json:"details,omitempty"`

	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Code is the machine-readable code, usually a last-error register name.
	Code string `json:"code,omitempty"`

	// Stack is set for recovered panics.
	Stack []byte `json:"stack,omitempty"`

	// IsNotFound marks lookups of absent arguments, functions or plugins.
	IsNotFound bool `json:"is_not_found,omitempty"`
}

// Error implements the error interface.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != "internal" {
		msg = fmt.Sprintf("%s: %s", e.Type, msg)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped.Error())
	}
	return msg
}

// NewErrorDetail creates an ErrorDetail with the given type and message.
func NewErrorDetail(errorType, message string) *ErrorDetail {
	return &ErrorDetail{
		Type:    errorType,
		Message: message,
	}
}

// WithDetail attaches one key to Details and returns e.
func (e *ErrorDetail) WithDetail(key string, value any) *ErrorDetail {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

// WithCode sets Code and returns e.
func (e *ErrorDetail) WithCode(code string) *ErrorDetail {
	e.Code = code
	return e
}
