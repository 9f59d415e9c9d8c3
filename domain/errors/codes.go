package errors

import "fmt"

// Code is a last-error register value. Zero means no error. Codes are part of
// the boundary ABI and never change value.
type Code int32

const (
	OK Code = iota
	InvalidArgument
	NotFound
	KindMismatch
	InvalidHandle
	InvalidValue
	Unsupported
	Internal
)

var codeText = [...]string{
	OK:              "ok",
	InvalidArgument: "invalid argument",
	NotFound:        "value not found",
	KindMismatch:    "wrong type",
	InvalidHandle:   "invalid or released handle",
	InvalidValue:    "invalid value",
	Unsupported:     "unsupported type",
	Internal:        "internal host fault",
}

var codeNames = [...]string{
	OK:              "OK",
	InvalidArgument: "INVALID_ARGUMENT",
	NotFound:        "NOT_FOUND",
	KindMismatch:    "KIND_MISMATCH",
	InvalidHandle:   "INVALID_HANDLE",
	InvalidValue:    "INVALID_VALUE",
	Unsupported:     "UNSUPPORTED",
	Internal:        "INTERNAL",
}

// String returns the human-readable description of the code.
func (c Code) String() string {
	if c >= 0 && int(c) < len(codeText) {
		return codeText[c]
	}
	return fmt.Sprintf("unknown error (%d)", int32(c))
}

// Name returns the stable identifier used in ErrorDetail.Code.
func (c Code) Name() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "UNKNOWN"
}

// CodeByName is the inverse of Name.
func CodeByName(name string) (Code, bool) {
	for c, n := range codeNames {
		if n == name {
			return Code(c), true
		}
	}
	return Internal, false
}

// Err returns nil for OK and a comparable error for every other code, so
// callers can write errors.Is(err, errors.NotFound.Err()).
func (c Code) Err() error {
	if c == OK {
		return nil
	}
	return codeError(c)
}

// Failed reports whether c signals a fault.
func (c Code) Failed() bool { return c != OK }

type codeError Code

func (e codeError) Error() string { return Code(e).String() }
