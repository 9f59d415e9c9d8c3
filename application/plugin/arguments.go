package plugin

import (
	"context"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/domain/ports"
)

// Call is what a handler sees of one invocation.
type Call struct {
	ctx  context.Context
	abi  ports.HostABI
	spec entities.FunctionSpec
	bag  entities.BagHandle
}

// NewCall builds a Call. Runtimes other than Definition.Invoke use it to run
// handlers directly.
func NewCall(ctx context.Context, abi ports.HostABI, spec entities.FunctionSpec, bag entities.BagHandle) *Call {
	return &Call{ctx: ctx, abi: abi, spec: spec, bag: bag}
}

// Context returns the call context.
func (c *Call) Context() context.Context { return c.ctx }

// Function returns the schema entry of the function being called.
func (c *Call) Function() entities.FunctionSpec { return c.spec }

// Host returns the raw host ABI.
func (c *Call) Host() ports.HostABI { return c.abi }

// Args returns the typed accessors for this call's bag.
func (c *Call) Args() *Arguments { return &Arguments{abi: c.abi, bag: c.bag} }

// Config returns the host configuration accessors.
func (c *Call) Config() *ConfigFile { return &ConfigFile{abi: c.abi} }

// Arguments wraps the accessor protocol: every fetch polls the last-error
// register immediately and turns a fault into an *errors.ArgumentError.
type Arguments struct {
	abi ports.HostABI
	bag entities.BagHandle
}

func (a *Arguments) check(name string, kind entities.ValueKind) error {
	if code := a.abi.LastError(); code.Failed() {
		return &errors.ArgumentError{Name: name, Kind: kind, Code: code}
	}
	return nil
}

// fetch runs one accessor and discards its result on fault.
func fetch[T any](a *Arguments, name string, kind entities.ValueKind, get func(entities.BagHandle, string) T) (T, error) {
	v := get(a.bag, name)
	if err := a.check(name, kind); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

func or[T any](v T, err error, def T) T {
	if err != nil {
		return def
	}
	return v
}

// Int8 fetches name as int8. It fails with an *errors.ArgumentError when name
// is absent or holds another kind.
func (a *Arguments) Int8(name string) (int8, error) {
	return fetch(a, name, entities.KindInt8, a.abi.ArgumentInt8)
}

// Int16 fetches name as int16.
func (a *Arguments) Int16(name string) (int16, error) {
	return fetch(a, name, entities.KindInt16, a.abi.ArgumentInt16)
}

// Int32 fetches name as int32.
func (a *Arguments) Int32(name string) (int32, error) {
	return fetch(a, name, entities.KindInt32, a.abi.ArgumentInt32)
}

// Int64 fetches name as int64.
func (a *Arguments) Int64(name string) (int64, error) {
	return fetch(a, name, entities.KindInt64, a.abi.ArgumentInt64)
}

// Uint8 fetches name as uint8.
func (a *Arguments) Uint8(name string) (uint8, error) {
	return fetch(a, name, entities.KindUint8, a.abi.ArgumentUint8)
}

// Uint16 fetches name as uint16.
func (a *Arguments) Uint16(name string) (uint16, error) {
	return fetch(a, name, entities.KindUint16, a.abi.ArgumentUint16)
}

// Uint32 fetches name as uint32.
func (a *Arguments) Uint32(name string) (uint32, error) {
	return fetch(a, name, entities.KindUint32, a.abi.ArgumentUint32)
}

// Uint64 fetches name as uint64.
func (a *Arguments) Uint64(name string) (uint64, error) {
	return fetch(a, name, entities.KindUint64, a.abi.ArgumentUint64)
}

// Float32 fetches name as float32.
func (a *Arguments) Float32(name string) (float32, error) {
	return fetch(a, name, entities.KindFloat32, a.abi.ArgumentFloat32)
}

// Float64 fetches name as float64.
func (a *Arguments) Float64(name string) (float64, error) {
	return fetch(a, name, entities.KindFloat64, a.abi.ArgumentFloat64)
}

// Bool fetches name as bool.
func (a *Arguments) Bool(name string) (bool, error) {
	return fetch(a, name, entities.KindBool, a.abi.ArgumentBool)
}

// Pointer returns an opaque address. What it points to is agreed between one
// plugin and one host.
func (a *Arguments) Pointer(name string) (uintptr, error) {
	return fetch(a, name, entities.KindPointer, a.abi.ArgumentPointer)
}

// String returns a copy of a string argument.
func (a *Arguments) String(name string) (string, error) {
	return fetch(a, name, entities.KindString, a.abi.ArgumentString)
}

// Blob returns a copy of a blob argument.
func (a *Arguments) Blob(name string) ([]byte, error) {
	return fetch(a, name, entities.KindBlob, a.abi.ArgumentBlob)
}

// Value fetches name as kind through the kind-dispatched accessor.
func (a *Arguments) Value(name string, kind entities.ValueKind) (entities.Value, error) {
	v := a.abi.Argument(a.bag, name, kind)
	if err := a.check(name, kind); err != nil {
		return entities.Void(), err
	}
	return v, nil
}

// Tagged fetches a declared parameter by the kind its tag maps to.
func (a *Arguments) Tagged(name string, tag entities.TypeTag) (entities.Value, error) {
	return a.Value(name, tag.Kind())
}

// Int8Or returns name, or def when it cannot be fetched for any reason.
func (a *Arguments) Int8Or(name string, def int8) int8 {
	v, err := a.Int8(name)
	return or(v, err, def)
}

// Int16Or returns name, or def when it cannot be fetched.
func (a *Arguments) Int16Or(name string, def int16) int16 {
	v, err := a.Int16(name)
	return or(v, err, def)
}

// Int32Or returns name, or def when it cannot be fetched.
func (a *Arguments) Int32Or(name string, def int32) int32 {
	v, err := a.Int32(name)
	return or(v, err, def)
}

// Int64Or returns name, or def when it cannot be fetched.
func (a *Arguments) Int64Or(name string, def int64) int64 {
	v, err := a.Int64(name)
	return or(v, err, def)
}

// Uint8Or returns name, or def when it cannot be fetched.
func (a *Arguments) Uint8Or(name string, def uint8) uint8 {
	v, err := a.Uint8(name)
	return or(v, err, def)
}

// Uint16Or returns name, or def when it cannot be fetched.
func (a *Arguments) Uint16Or(name string, def uint16) uint16 {
	v, err := a.Uint16(name)
	return or(v, err, def)
}

// Uint32Or returns name, or def when it cannot be fetched.
func (a *Arguments) Uint32Or(name string, def uint32) uint32 {
	v, err := a.Uint32(name)
	return or(v, err, def)
}

// Uint64Or returns name, or def when it cannot be fetched.
func (a *Arguments) Uint64Or(name string, def uint64) uint64 {
	v, err := a.Uint64(name)
	return or(v, err, def)
}

// Float32Or returns name, or def when it cannot be fetched.
func (a *Arguments) Float32Or(name string, def float32) float32 {
	v, err := a.Float32(name)
	return or(v, err, def)
}

// Float64Or returns name, or def when it cannot be fetched.
func (a *Arguments) Float64Or(name string, def float64) float64 {
	v, err := a.Float64(name)
	return or(v, err, def)
}

// BoolOr returns name, or def when it cannot be fetched.
func (a *Arguments) BoolOr(name string, def bool) bool {
	v, err := a.Bool(name)
	return or(v, err, def)
}

// StringOr returns name, or def when it cannot be fetched.
func (a *Arguments) StringOr(name string, def string) string {
	v, err := a.String(name)
	return or(v, err, def)
}

// JSON fetches the whole bag as JSON text and decodes it. The owned string
// handle is released on every path.
func (a *Arguments) JSON() (*JSONArguments, error) {
	h := a.abi.ArgumentsJSON(a.bag)
	if code := a.abi.LastError(); code.Failed() {
		return nil, &errors.HandleError{Op: "arguments_json", Handle: h, Code: code}
	}

	var text string
	err := WithString(a.abi, h, entities.Owned, func(s *String) error {
		var rerr error
		text, rerr = s.Read()
		return rerr
	})
	if err != nil {
		return nil, err
	}
	return DecodeArguments(&text)
}
