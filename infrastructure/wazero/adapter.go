package wazero

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/hostfuncs"
	"github.com/reglet-dev/plugabi/internal/abi"
	"github.com/reglet-dev/plugabi/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// DefaultMaxRequestSize limits strings read from guest memory (1 MiB).
const DefaultMaxRequestSize = 1 << 20

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	Logger *slog.Logger

	// ModuleName is the host module name (default: abi.HostModule).
	ModuleName string

	// MaxRequestSize limits the size of strings read from guest memory.
	MaxRequestSize uint32
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name.
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxRequestSize sets the maximum request size from guest memory.
func WithMaxRequestSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxRequestSize = size
	}
}

// WithLogger sets the logger that receives guest log records and bridge
// diagnostics.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		c.Logger = logger
	}
}

// defaultAdapterConfig returns the default adapter configuration.
func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Logger:         slog.Default(),
		ModuleName:     abi.HostModule,
		MaxRequestSize: DefaultMaxRequestSize,
	}
}

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

type hostModule struct {
	cfg AdapterConfig
}

// RegisterWithRuntime instantiates the host module guests import: one
// accessor per value kind, last_error, the handle bridge, the config
// accessors and log_message. Every function resolves the call in progress
// from its context; outside a call they fail with Internal.
//
// Pointer/length pairs travel packed in one i64 (pointer high). Text the
// host returns is written into memory from the guest's allocate and
// becomes the guest's to free.
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	h := &hostModule{cfg: cfg}

	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)
	export := func(name string, fn api.GoModuleFunc, params, results []api.ValueType) {
		builder.NewFunctionBuilder().WithGoModuleFunction(fn, params, results).Export(name)
	}

	for _, kind := range entities.AllKinds() {
		export(hostfuncs.EntryPointName(kind), h.argument(kind), []api.ValueType{i32, i64}, []api.ValueType{i64})
	}
	export("last_error", h.lastError, nil, []api.ValueType{i32})
	export("arguments_json", h.argumentsJSON, []api.ValueType{i32}, []api.ValueType{i64})
	export("string_read", h.stringRead, []api.ValueType{i64}, []api.ValueType{i64})
	export("string_write", h.stringWrite, []api.ValueType{i64, i64}, []api.ValueType{i32})
	export("object_to_string", h.objectToString, []api.ValueType{i64}, []api.ValueType{i64})
	export("object_write", h.objectWrite, []api.ValueType{i64, i64}, []api.ValueType{i32})
	export("release", h.release, []api.ValueType{i64}, []api.ValueType{i32})
	export("config_get", h.configGet, []api.ValueType{i64, i64}, []api.ValueType{i64})
	export("config_set", h.configSet, []api.ValueType{i64, i64, i64}, []api.ValueType{i32})
	export("log_message", h.logMessage, []api.ValueType{i64}, nil)

	_, err := builder.Instantiate(ctx)
	return err
}

// begin returns the call in progress with its bridge fault cleared.
func (h *hostModule) begin(ctx context.Context, fn string) *callState {
	c := callStateFrom(ctx)
	if c == nil {
		h.cfg.Logger.ErrorContext(ctx, "wazero: host function called outside a plugin call", "function", fn)
		return nil
	}
	c.fault = errors.OK
	return c
}

func (h *hostModule) argument(kind entities.ValueKind) api.GoModuleFunc {
	fn := hostfuncs.EntryPointName(kind)
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		c := h.begin(ctx, fn)
		if c == nil {
			stack[0] = 0
			return
		}
		name, ok := h.readString(ctx, c, mod, stack[1])
		if !ok {
			stack[0] = 0
			return
		}

		v := c.abi.Argument(entities.BagHandle(api.DecodeU32(stack[0])), name, kind)
		switch kind {
		case entities.KindString:
			s, _ := v.AsString()
			stack[0] = h.writeBytes(ctx, c, mod, []byte(s))
		case entities.KindBlob:
			b, _ := v.AsBlob()
			stack[0] = h.writeBytes(ctx, c, mod, b)
		default:
			stack[0] = v.Bits()
		}
	}
}

func (h *hostModule) lastError(ctx context.Context, _ api.Module, stack []uint64) {
	c := callStateFrom(ctx)
	if c == nil {
		stack[0] = api.EncodeI32(int32(errors.Internal))
		return
	}
	stack[0] = api.EncodeI32(int32(c.lastError()))
}

func (h *hostModule) argumentsJSON(ctx context.Context, _ api.Module, stack []uint64) {
	c := h.begin(ctx, "arguments_json")
	if c == nil {
		stack[0] = 0
		return
	}
	stack[0] = uint64(c.abi.ArgumentsJSON(entities.BagHandle(api.DecodeU32(stack[0]))))
}

func (h *hostModule) stringRead(ctx context.Context, mod api.Module, stack []uint64) {
	c := h.begin(ctx, "string_read")
	if c == nil {
		stack[0] = 0
		return
	}
	text := c.abi.StringRead(entities.Handle(stack[0]))
	if c.abi.LastError() != errors.OK {
		stack[0] = 0
		return
	}
	stack[0] = h.writeBytes(ctx, c, mod, []byte(text))
}

func (h *hostModule) stringWrite(ctx context.Context, mod api.Module, stack []uint64) {
	h.writeText(ctx, mod, stack, "string_write", func(c *callState, text string) errors.Code {
		return c.abi.StringWrite(entities.Handle(stack[0]), text)
	})
}

func (h *hostModule) objectToString(ctx context.Context, _ api.Module, stack []uint64) {
	c := h.begin(ctx, "object_to_string")
	if c == nil {
		stack[0] = 0
		return
	}
	stack[0] = uint64(c.abi.ObjectToString(entities.Handle(stack[0])))
}

func (h *hostModule) objectWrite(ctx context.Context, mod api.Module, stack []uint64) {
	h.writeText(ctx, mod, stack, "object_write", func(c *callState, text string) errors.Code {
		return c.abi.ObjectWrite(entities.Handle(stack[0]), text)
	})
}

func (h *hostModule) release(ctx context.Context, _ api.Module, stack []uint64) {
	c := h.begin(ctx, "release")
	if c == nil {
		stack[0] = api.EncodeI32(int32(errors.Internal))
		return
	}
	stack[0] = api.EncodeI32(int32(c.abi.Release(entities.Handle(stack[0]))))
}

func (h *hostModule) configGet(ctx context.Context, mod api.Module, stack []uint64) {
	c := h.begin(ctx, "config_get")
	if c == nil {
		stack[0] = 0
		return
	}
	block, ok := h.readString(ctx, c, mod, stack[0])
	if !ok {
		stack[0] = 0
		return
	}
	entry, ok := h.readString(ctx, c, mod, stack[1])
	if !ok {
		stack[0] = 0
		return
	}
	stack[0] = uint64(c.abi.ConfigGet(block, entry))
}

func (h *hostModule) configSet(ctx context.Context, mod api.Module, stack []uint64) {
	c := h.begin(ctx, "config_set")
	if c == nil {
		stack[0] = api.EncodeI32(int32(errors.Internal))
		return
	}
	var parts [3]string
	for i := range parts {
		s, ok := h.readString(ctx, c, mod, stack[i])
		if !ok {
			stack[0] = api.EncodeI32(int32(c.fault))
			return
		}
		parts[i] = s
	}
	stack[0] = api.EncodeI32(int32(c.abi.ConfigSet(parts[0], parts[1], parts[2])))
}

// writeText handles the (handle, text) -> status shape.
func (h *hostModule) writeText(ctx context.Context, mod api.Module, stack []uint64, fn string, do func(*callState, string) errors.Code) {
	c := h.begin(ctx, fn)
	if c == nil {
		stack[0] = api.EncodeI32(int32(errors.Internal))
		return
	}
	text, ok := h.readString(ctx, c, mod, stack[1])
	if !ok {
		stack[0] = api.EncodeI32(int32(c.fault))
		return
	}
	stack[0] = api.EncodeI32(int32(do(c, text)))
}

// logMessage replays a guest log record into the host logger. It works
// outside a call too, so init hooks can log.
func (h *hostModule) logMessage(ctx context.Context, mod api.Module, stack []uint64) {
	ptr, length := unpackPtrLen(stack[0])
	if length > h.cfg.MaxRequestSize {
		h.cfg.Logger.WarnContext(ctx, "wazero: dropping oversized log record", "size", length)
		return
	}
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		h.cfg.Logger.ErrorContext(ctx, "wazero: failed to read log record from guest memory")
		return
	}

	var msg log.LogMessageWire
	if err := json.Unmarshal(data, &msg); err != nil {
		h.cfg.Logger.InfoContext(ctx, "plugin log (raw)", "plugin", GetPluginName(ctx, mod), "payload", string(data))
		return
	}
	if msg.Context.Plugin == "" {
		msg.Context.Plugin = GetPluginName(ctx, mod)
	}
	log.Replay(ctx, h.cfg.Logger, msg)
}

// readString copies a packed guest region. On failure it records
// InvalidArgument as the bridge fault.
func (h *hostModule) readString(ctx context.Context, c *callState, mod api.Module, packed uint64) (string, bool) {
	ptr, length := unpackPtrLen(packed)
	if length == 0 {
		return "", true
	}
	if length > h.cfg.MaxRequestSize {
		h.cfg.Logger.ErrorContext(ctx, "wazero: request exceeds maximum size", "size", length, "max", h.cfg.MaxRequestSize)
		c.fault = errors.InvalidArgument
		return "", false
	}
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		h.cfg.Logger.ErrorContext(ctx, "wazero: failed to read guest memory", "ptr", ptr, "len", length)
		c.fault = errors.InvalidArgument
		return "", false
	}
	return string(data), true
}

// writeBytes copies data into memory from the guest's allocate and returns
// it packed. Empty data is packed as zero. On failure it records Internal
// as the bridge fault.
func (h *hostModule) writeBytes(ctx context.Context, c *callState, mod api.Module, data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	packed, err := writeGuest(ctx, mod, data)
	if err != nil {
		h.cfg.Logger.ErrorContext(ctx, "wazero: failed to write guest memory", "error", err)
		c.fault = errors.Internal
		return 0
	}
	return packed
}

// unpackPtrLen tolerates malformed values from the guest; a null pointer
// reads as empty.
func unpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> abi.PtrHighBits) //nolint:gosec // G115: packed format stores 32-bit values
	length = uint32(packed)                 //nolint:gosec // G115: packed format stores 32-bit values
	if ptr == 0 {
		return 0, 0
	}
	return ptr, length
}
