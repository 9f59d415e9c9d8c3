package goja

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dop251/goja"
	"github.com/reglet-dev/plugabi/application/plugin"
	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/domain/ports"
)

// hostObject is the script's global host. Accessors keep the register
// protocol: they return a zero value on fault and the script polls
// lastError. The arguments and config helpers throw instead.
type hostObject struct {
	module *Module
	call   *plugin.Call
}

func (h *hostObject) throw(err error) {
	panic(h.module.vm.NewGoError(err))
}

func (h *hostObject) abi() ports.HostABI {
	if h.call == nil {
		h.throw(fmt.Errorf("host ABI used outside a call: %w", errors.Internal.Err()))
	}
	return h.call.Host()
}

func (h *hostObject) ArgumentInt8(bag uint32, name string) int8 {
	return h.abi().ArgumentInt8(entities.BagHandle(bag), name)
}

func (h *hostObject) ArgumentInt16(bag uint32, name string) int16 {
	return h.abi().ArgumentInt16(entities.BagHandle(bag), name)
}

func (h *hostObject) ArgumentInt32(bag uint32, name string) int32 {
	return h.abi().ArgumentInt32(entities.BagHandle(bag), name)
}

func (h *hostObject) ArgumentInt64(bag uint32, name string) int64 {
	return h.abi().ArgumentInt64(entities.BagHandle(bag), name)
}

func (h *hostObject) ArgumentUint8(bag uint32, name string) uint8 {
	return h.abi().ArgumentUint8(entities.BagHandle(bag), name)
}

func (h *hostObject) ArgumentUint16(bag uint32, name string) uint16 {
	return h.abi().ArgumentUint16(entities.BagHandle(bag), name)
}

func (h *hostObject) ArgumentUint32(bag uint32, name string) uint32 {
	return h.abi().ArgumentUint32(entities.BagHandle(bag), name)
}

func (h *hostObject) ArgumentUint64(bag uint32, name string) uint64 {
	return h.abi().ArgumentUint64(entities.BagHandle(bag), name)
}

func (h *hostObject) ArgumentFloat32(bag uint32, name string) float32 {
	return h.abi().ArgumentFloat32(entities.BagHandle(bag), name)
}

func (h *hostObject) ArgumentFloat64(bag uint32, name string) float64 {
	return h.abi().ArgumentFloat64(entities.BagHandle(bag), name)
}

func (h *hostObject) ArgumentBool(bag uint32, name string) bool {
	return h.abi().ArgumentBool(entities.BagHandle(bag), name)
}

func (h *hostObject) ArgumentPointer(bag uint32, name string) uint64 {
	return uint64(h.abi().ArgumentPointer(entities.BagHandle(bag), name))
}

func (h *hostObject) ArgumentString(bag uint32, name string) string {
	return h.abi().ArgumentString(entities.BagHandle(bag), name)
}

// ArgumentBlob returns an ArrayBuffer holding a copy of the blob.
func (h *hostObject) ArgumentBlob(bag uint32, name string) goja.ArrayBuffer {
	return h.module.vm.NewArrayBuffer(h.abi().ArgumentBlob(entities.BagHandle(bag), name))
}

func (h *hostObject) LastError() int32 {
	return int32(h.abi().LastError())
}

func (h *hostObject) ArgumentsJSON(bag uint32) uint64 {
	return uint64(h.abi().ArgumentsJSON(entities.BagHandle(bag)))
}

func (h *hostObject) StringRead(handle uint64) string {
	return h.abi().StringRead(entities.Handle(handle))
}

func (h *hostObject) StringWrite(handle uint64, text string) int32 {
	return int32(h.abi().StringWrite(entities.Handle(handle), text))
}

func (h *hostObject) ObjectToString(handle uint64) uint64 {
	return uint64(h.abi().ObjectToString(entities.Handle(handle)))
}

func (h *hostObject) ObjectWrite(handle uint64, text string) int32 {
	return int32(h.abi().ObjectWrite(entities.Handle(handle), text))
}

func (h *hostObject) Release(handle uint64) int32 {
	return int32(h.abi().Release(entities.Handle(handle)))
}

func (h *hostObject) ConfigGet(block, entry string) uint64 {
	return uint64(h.abi().ConfigGet(block, entry))
}

func (h *hostObject) ConfigSet(block, entry, text string) int32 {
	return int32(h.abi().ConfigSet(block, entry, text))
}

// Arguments decodes the whole bag from its JSON text into a plain object.
func (h *hostObject) Arguments(bag uint32) goja.Value {
	h.abi()
	args, err := plugin.NewCall(h.call.Context(), h.call.Host(), h.call.Function(), entities.BagHandle(bag)).Args().JSON()
	if err != nil {
		h.throw(err)
	}
	var v any
	if err := args.Decode(&v); err != nil {
		h.throw(err)
	}
	return h.module.vm.ToValue(v)
}

// Config returns a config entry as text, throwing when it cannot be read.
func (h *hostObject) Config(block, entry string) string {
	h.abi()
	text, err := h.call.Config().Get(block, entry)
	if err != nil {
		h.throw(err)
	}
	return text
}

// Log writes msg at level (debug, info, warn or error).
func (h *hostObject) Log(level, msg string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	ctx := context.Background()
	if h.call != nil {
		ctx = h.call.Context()
	}
	h.module.logger.Log(ctx, l, msg)
}
