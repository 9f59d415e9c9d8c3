// Package errors provides the typed errors of the plugin boundary.
// All error types support unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/plugabi/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

var (
	// ErrNullInput is returned when JSON argument text is absent or empty.
	ErrNullInput = stdErrors.New("null input")

	// ErrNotReady is wrapped by LifecycleError when a plugin is called before
	// a successful init or after uninit.
	ErrNotReady = stdErrors.New("plugin not ready")
)

// DetailedError is implemented by error types that know their structured
// form. New error types only need to implement it to be picked up by
// ToErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to the structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	if stdErrors.Is(err, ErrNullInput) {
		return &entities.ErrorDetail{Message: err.Error(), Type: "decode", Code: "NULL_INPUT"}
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// CodeOf extracts the register code carried by err, or Internal when err
// carries none. A nil error is OK.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var ce codeError
	if stdErrors.As(err, &ce) {
		return Code(ce)
	}
	return Internal
}

// ArgumentError is a failed accessor call observed through the last-error
// register: the name is absent or holds a different kind.
type ArgumentError struct {
	Name string
	Kind entities.ValueKind
	Code Code
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q (%s): %s", e.Name, e.Kind, e.Code)
}

func (e *ArgumentError) Unwrap() error {
	return e.Code.Err()
}

// ToErrorDetail implements DetailedError.
func (e *ArgumentError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message:    e.Error(),
		Type:       "argument",
		Code:       e.Code.Name(),
		IsNotFound: e.Code == NotFound,
		Details:    map[string]any{"name": e.Name, "kind": e.Kind.String()},
	}
}

// ParseError is returned when JSON argument text is not well-formed.
type ParseError struct {
	Err    error
	Offset int
}

func (e *ParseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("parse error at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ParseError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "decode", Code: "PARSE"}
}

// ShapeError reports decoded JSON that does not have the expected shape.
type ShapeError struct {
	Field string
	Want  string
	Got   string
}

func (e *ShapeError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("field %q: missing, want %s", e.Field, e.Want)
	}
	return fmt.Sprintf("field %q: got %s, want %s", e.Field, e.Got, e.Want)
}

// ToErrorDetail implements DetailedError.
func (e *ShapeError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message:    e.Error(),
		Type:       "decode",
		Code:       "SHAPE",
		IsNotFound: e.Got == "",
	}
}

// LifecycleError marks a plugin instance that must not be invoked: init
// returned a non-zero status, or the instance is not (or no longer) ready.
type LifecycleError struct {
	Err    error
	Plugin string
	Stage  string
	Status int32
}

func (e *LifecycleError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("plugin %s: %s: %v", e.Plugin, e.Stage, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("plugin %s: %s returned status %d", e.Plugin, e.Stage, e.Status)
	default:
		return fmt.Sprintf("plugin %s: %s failed", e.Plugin, e.Stage)
	}
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *LifecycleError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "lifecycle",
		Code:    e.Stage,
		Details: map[string]any{"plugin": e.Plugin, "status": e.Status},
	}
}

// HandleError is a deterministic failure on a released, stale or unknown
// string/object handle.
type HandleError struct {
	Op     string
	Handle entities.Handle
	Code   Code
}

func (e *HandleError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Handle, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Handle, e.Code)
}

func (e *HandleError) Unwrap() error {
	return e.Code.Err()
}

// ToErrorDetail implements DetailedError.
func (e *HandleError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "handle", Code: e.Code.Name()}
}

// CallError is a host-side failure of one plugin invocation.
type CallError struct {
	Err      error
	Plugin   string
	Function string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call %s.%s: %v", e.Plugin, e.Function, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *CallError) ToErrorDetail() *entities.ErrorDetail {
	detail := &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "call",
		Code:    CodeOf(e.Err).Name(),
		Details: map[string]any{"plugin": e.Plugin, "function": e.Function},
	}
	var de DetailedError
	if stdErrors.As(e.Err, &de) {
		detail.Wrapped = de.ToErrorDetail()
	}
	detail.IsNotFound = stdErrors.Is(e.Err, NotFound.Err())
	return detail
}

// PanicError wraps a value recovered from a panic inside an entry point.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	return Internal.Err()
}

// ToErrorDetail implements DetailedError.
func (e *PanicError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "panic", Code: Internal.Name(), Stack: e.Stack}
}

// RemoteError is a failure a plugin reported in structured form across the
// boundary. It unwraps to the register code named by the detail, so
// errors.Is works the same as for errors raised in-process.
type RemoteError struct {
	Detail *entities.ErrorDetail
}

// FromDetail rebuilds an error from its structured form. It returns nil for
// a nil detail.
func FromDetail(d *entities.ErrorDetail) error {
	if d == nil {
		return nil
	}
	return &RemoteError{Detail: d}
}

func (e *RemoteError) Error() string {
	return e.Detail.Error()
}

func (e *RemoteError) Unwrap() error {
	if e.Detail.IsNotFound {
		return NotFound.Err()
	}
	if c, ok := CodeByName(e.Detail.Code); ok {
		return c.Err()
	}
	return nil
}

// ToErrorDetail implements DetailedError.
func (e *RemoteError) ToErrorDetail() *entities.ErrorDetail {
	return e.Detail
}
