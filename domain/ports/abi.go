package ports

import (
	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
)

// ArgumentAccessor is the Value Accessor Protocol: one fetch per value kind,
// keyed by bag and exact, case-sensitive name. The returned value is only
// meaningful when LastError reports OK immediately afterwards. Strings and
// blobs are borrowed views valid for the current call.
type ArgumentAccessor interface {
	ArgumentInt8(bag entities.BagHandle, name string) int8
	ArgumentInt16(bag entities.BagHandle, name string) int16
	ArgumentInt32(bag entities.BagHandle, name string) int32
	ArgumentInt64(bag entities.BagHandle, name string) int64
	ArgumentUint8(bag entities.BagHandle, name string) uint8
	ArgumentUint16(bag entities.BagHandle, name string) uint16
	ArgumentUint32(bag entities.BagHandle, name string) uint32
	ArgumentUint64(bag entities.BagHandle, name string) uint64
	ArgumentFloat32(bag entities.BagHandle, name string) float32
	ArgumentFloat64(bag entities.BagHandle, name string) float64
	ArgumentBool(bag entities.BagHandle, name string) bool
	ArgumentPointer(bag entities.BagHandle, name string) uintptr
	ArgumentString(bag entities.BagHandle, name string) string
	ArgumentBlob(bag entities.BagHandle, name string) []byte

	// Argument is the kind-dispatched form used by runtimes that marshal
	// values generically. A fault yields the zero value of kind.
	Argument(bag entities.BagHandle, name string, kind entities.ValueKind) entities.Value

	// ArgumentsJSON renders the whole bag as a JSON object and returns it as
	// an OWNED string handle.
	ArgumentsJSON(bag entities.BagHandle) entities.Handle
}

// ErrorRegister is the last-error register of one call context.
type ErrorRegister interface {
	LastError() errors.Code
}

// HandleBridge is the Reference-Counted Value Bridge. Reads copy; writes and
// releases return a status code that is also stored in the register.
type HandleBridge interface {
	StringRead(h entities.Handle) string
	StringWrite(h entities.Handle, text string) errors.Code
	// ObjectToString returns an OWNED string handle holding the object's
	// textual form.
	ObjectToString(h entities.Handle) entities.Handle
	ObjectWrite(h entities.Handle, text string) errors.Code
	Release(h entities.Handle) errors.Code

	// ConfigGet returns an OWNED object handle for one configuration entry.
	ConfigGet(block, entry string) entities.Handle
	ConfigSet(block, entry, text string) errors.Code
}

// HostABI is everything a plugin may call on its host during one call.
type HostABI interface {
	ArgumentAccessor
	ErrorRegister
	HandleBridge
}
