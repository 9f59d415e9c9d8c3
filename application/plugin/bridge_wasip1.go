//go:build wasip1

package plugin

import (
	"context"
	"encoding/json"
	"runtime"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/domain/ports"
	"github.com/reglet-dev/plugabi/internal/abi"
	"github.com/reglet-dev/plugabi/log"
)

// Scalar accessors return the raw 64-bit payload (entities.Value.Bits).
// String and blob accessors return a packed region the host wrote into
// memory obtained from allocate; the guest takes ownership of it.

//go:wasmimport plugabi_host argument_int8
func hostArgumentInt8(bag uint32, name uint64) uint64

//go:wasmimport plugabi_host argument_int16
func hostArgumentInt16(bag uint32, name uint64) uint64

//go:wasmimport plugabi_host argument_int32
func hostArgumentInt32(bag uint32, name uint64) uint64

//go:wasmimport plugabi_host argument_int64
func hostArgumentInt64(bag uint32, name uint64) uint64

//go:wasmimport plugabi_host argument_uint8
func hostArgumentUint8(bag uint32, name uint64) uint64

//go:wasmimport plugabi_host argument_uint16
func hostArgumentUint16(bag uint32, name uint64) uint64

//go:wasmimport plugabi_host argument_uint32
func hostArgumentUint32(bag uint32, name uint64) uint64

//go:wasmimport plugabi_host argument_uint64
func hostArgumentUint64(bag uint32, name uint64) uint64

//go:wasmimport plugabi_host argument_float32
func hostArgumentFloat32(bag uint32, name uint64) uint64

//go:wasmimport plugabi_host argument_float64
func hostArgumentFloat64(bag uint32, name uint64) uint64

//go:wasmimport plugabi_host argument_bool
func hostArgumentBool(bag uint32, name uint64) uint64

//go:wasmimport plugabi_host argument_pointer
func hostArgumentPointer(bag uint32, name uint64) uint64

//go:wasmimport plugabi_host argument_string
func hostArgumentString(bag uint32, name uint64) uint64

//go:wasmimport plugabi_host argument_blob
func hostArgumentBlob(bag uint32, name uint64) uint64

//go:wasmimport plugabi_host last_error
func hostLastError() int32

//go:wasmimport plugabi_host arguments_json
func hostArgumentsJSON(bag uint32) uint64

//go:wasmimport plugabi_host string_read
func hostStringRead(h uint64) uint64

//go:wasmimport plugabi_host string_write
func hostStringWrite(h uint64, text uint64) int32

//go:wasmimport plugabi_host object_to_string
func hostObjectToString(h uint64) uint64

//go:wasmimport plugabi_host object_write
func hostObjectWrite(h uint64, text uint64) int32

//go:wasmimport plugabi_host release
func hostRelease(h uint64) int32

//go:wasmimport plugabi_host config_get
func hostConfigGet(block, entry uint64) uint64

//go:wasmimport plugabi_host config_set
func hostConfigSet(block, entry, text uint64) int32

var hostAccessors = map[entities.ValueKind]func(uint32, uint64) uint64{
	entities.KindInt8:    hostArgumentInt8,
	entities.KindInt16:   hostArgumentInt16,
	entities.KindInt32:   hostArgumentInt32,
	entities.KindInt64:   hostArgumentInt64,
	entities.KindUint8:   hostArgumentUint8,
	entities.KindUint16:  hostArgumentUint16,
	entities.KindUint32:  hostArgumentUint32,
	entities.KindUint64:  hostArgumentUint64,
	entities.KindFloat32: hostArgumentFloat32,
	entities.KindFloat64: hostArgumentFloat64,
	entities.KindBool:    hostArgumentBool,
	entities.KindPointer: hostArgumentPointer,
	entities.KindString:  hostArgumentString,
	entities.KindBlob:    hostArgumentBlob,
}

// guestABI is ports.HostABI over the plugabi_host imports.
type guestABI struct{}

var _ ports.HostABI = guestABI{}

func (guestABI) Argument(bag entities.BagHandle, name string, kind entities.ValueKind) entities.Value {
	fetch, ok := hostAccessors[kind]
	if !ok {
		return entities.Zero(kind)
	}
	raw := fetch(uint32(bag), abi.StringPtr(name))
	runtime.KeepAlive(name)

	switch kind {
	case entities.KindString:
		return entities.String(string(abi.TakeBytes(raw)))
	case entities.KindBlob:
		return entities.Blob(abi.TakeBytes(raw))
	}
	v, err := entities.FromBits(kind, raw)
	if err != nil {
		return entities.Zero(kind)
	}
	return v
}

func (g guestABI) ArgumentInt8(bag entities.BagHandle, name string) int8 {
	v, _ := g.Argument(bag, name, entities.KindInt8).AsInt8()
	return v
}

func (g guestABI) ArgumentInt16(bag entities.BagHandle, name string) int16 {
	v, _ := g.Argument(bag, name, entities.KindInt16).AsInt16()
	return v
}

func (g guestABI) ArgumentInt32(bag entities.BagHandle, name string) int32 {
	v, _ := g.Argument(bag, name, entities.KindInt32).AsInt32()
	return v
}

func (g guestABI) ArgumentInt64(bag entities.BagHandle, name string) int64 {
	v, _ := g.Argument(bag, name, entities.KindInt64).AsInt64()
	return v
}

func (g guestABI) ArgumentUint8(bag entities.BagHandle, name string) uint8 {
	v, _ := g.Argument(bag, name, entities.KindUint8).AsUint8()
	return v
}

func (g guestABI) ArgumentUint16(bag entities.BagHandle, name string) uint16 {
	v, _ := g.Argument(bag, name, entities.KindUint16).AsUint16()
	return v
}

func (g guestABI) ArgumentUint32(bag entities.BagHandle, name string) uint32 {
	v, _ := g.Argument(bag, name, entities.KindUint32).AsUint32()
	return v
}

func (g guestABI) ArgumentUint64(bag entities.BagHandle, name string) uint64 {
	v, _ := g.Argument(bag, name, entities.KindUint64).AsUint64()
	return v
}

func (g guestABI) ArgumentFloat32(bag entities.BagHandle, name string) float32 {
	v, _ := g.Argument(bag, name, entities.KindFloat32).AsFloat32()
	return v
}

func (g guestABI) ArgumentFloat64(bag entities.BagHandle, name string) float64 {
	v, _ := g.Argument(bag, name, entities.KindFloat64).AsFloat64()
	return v
}

func (g guestABI) ArgumentBool(bag entities.BagHandle, name string) bool {
	v, _ := g.Argument(bag, name, entities.KindBool).AsBool()
	return v
}

func (g guestABI) ArgumentPointer(bag entities.BagHandle, name string) uintptr {
	v, _ := g.Argument(bag, name, entities.KindPointer).AsPointer()
	return v
}

func (g guestABI) ArgumentString(bag entities.BagHandle, name string) string {
	v, _ := g.Argument(bag, name, entities.KindString).AsString()
	return v
}

func (g guestABI) ArgumentBlob(bag entities.BagHandle, name string) []byte {
	v, _ := g.Argument(bag, name, entities.KindBlob).AsBlob()
	return v
}

func (guestABI) ArgumentsJSON(bag entities.BagHandle) entities.Handle {
	return entities.Handle(hostArgumentsJSON(uint32(bag)))
}

func (guestABI) LastError() errors.Code { return errors.Code(hostLastError()) }

func (guestABI) StringRead(h entities.Handle) string {
	return string(abi.TakeBytes(hostStringRead(uint64(h))))
}

func (guestABI) StringWrite(h entities.Handle, text string) errors.Code {
	code := hostStringWrite(uint64(h), abi.StringPtr(text))
	runtime.KeepAlive(text)
	return errors.Code(code)
}

func (guestABI) ObjectToString(h entities.Handle) entities.Handle {
	return entities.Handle(hostObjectToString(uint64(h)))
}

func (guestABI) ObjectWrite(h entities.Handle, text string) errors.Code {
	code := hostObjectWrite(uint64(h), abi.StringPtr(text))
	runtime.KeepAlive(text)
	return errors.Code(code)
}

func (guestABI) Release(h entities.Handle) errors.Code {
	return errors.Code(hostRelease(uint64(h)))
}

func (guestABI) ConfigGet(block, entry string) entities.Handle {
	h := hostConfigGet(abi.StringPtr(block), abi.StringPtr(entry))
	runtime.KeepAlive(block)
	runtime.KeepAlive(entry)
	return entities.Handle(h)
}

func (guestABI) ConfigSet(block, entry, text string) errors.Code {
	code := hostConfigSet(abi.StringPtr(block), abi.StringPtr(entry), abi.StringPtr(text))
	runtime.KeepAlive(block)
	runtime.KeepAlive(entry)
	runtime.KeepAlive(text)
	return errors.Code(code)
}

// Descriptor text is borrowed: it is pinned once and the host must copy it
// without calling deallocate.
var descriptorText = map[string]uint64{}

func borrowed(key, text string) uint64 {
	if packed, ok := descriptorText[key]; ok {
		return packed
	}
	packed := abi.PtrFromBytes([]byte(text))
	descriptorText[key] = packed
	return packed
}

func describe(key string, get func(*Definition) string) uint64 {
	d := Registered()
	if d == nil {
		return 0
	}
	return borrowed(key, get(d))
}

//go:wasmexport plugin_name
func pluginName() uint64 { return describe("name", (*Definition).Name) }

//go:wasmexport plugin_version
func pluginVersion() uint64 { return describe("version", (*Definition).Version) }

//go:wasmexport plugin_author
func pluginAuthor() uint64 { return describe("author", (*Definition).Author) }

//go:wasmexport plugin_description
func pluginDescription() uint64 { return describe("description", (*Definition).Description) }

//go:wasmexport plugin_api
func pluginAPI() uint64 { return describe("api", (*Definition).API) }

//go:wasmexport plugin_init
func pluginInit() int32 {
	d := Registered()
	if d == nil {
		return -1
	}
	return d.Init()
}

//go:wasmexport plugin_uninit
func pluginUninit() {
	if d := Registered(); d != nil {
		d.Uninit()
	}
	clear(descriptorText)
	abi.FreeAllTracked()
}

// pluginCall runs one capability. name is a region the host allocated; the
// result is a JSON CallResultWire the host owns and must deallocate.
//
//go:wasmexport plugin_call
func pluginCall(name uint64, bag uint32) uint64 {
	function := string(abi.TakeBytes(name))
	var result entities.CallResultWire

	d := Registered()
	if d == nil {
		result.Error = errors.ToErrorDetail(&errors.LifecycleError{Stage: "call", Err: errors.ErrNotReady})
	} else {
		ctx := log.WithCall(context.Background(), entities.ContextWire{Plugin: d.Name(), Function: function})
		v, err := d.Invoke(ctx, guestABI{}, function, entities.BagHandle(bag))
		if err != nil {
			result.Error = errors.ToErrorDetail(err)
		} else {
			result = entities.ResultWire(v)
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		data, _ = json.Marshal(entities.CallResultWire{Error: errors.ToErrorDetail(err)})
	}
	return abi.PtrFromBytes(data)
}
