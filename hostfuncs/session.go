package hostfuncs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/domain/ports"
)

// Runtime is the host-side state shared by all calls: the bag table, the
// handle table, the accessor registry and the default config store.
type Runtime struct {
	bags      *BagTable
	handles   *HandleTable
	config    *ConfigStore
	accessors *AccessorRegistry
	logger    *slog.Logger
}

type runtimeConfig struct {
	handles   *HandleTable
	config    *ConfigStore
	accessors *AccessorRegistry
	logger    *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*runtimeConfig)

// WithLogger sets the logger used for accessor and leak diagnostics.
func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(c *runtimeConfig) {
		c.logger = logger
	}
}

// WithConfigStore sets the config store served when a call has none of its own.
func WithConfigStore(store *ConfigStore) RuntimeOption {
	return func(c *runtimeConfig) {
		c.config = store
	}
}

// WithAccessorRegistry replaces the default accessor registry.
func WithAccessorRegistry(r *AccessorRegistry) RuntimeOption {
	return func(c *runtimeConfig) {
		c.accessors = r
	}
}

// WithHandleTable shares an existing handle table.
func WithHandleTable(t *HandleTable) RuntimeOption {
	return func(c *runtimeConfig) {
		c.handles = t
	}
}

// NewRuntime creates a Runtime. The default accessor registry serves every
// kind behind panic recovery and debug logging.
func NewRuntime(opts ...RuntimeOption) (*Runtime, error) {
	cfg := runtimeConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.accessors == nil {
		reg, err := NewAccessorRegistry(
			WithMiddleware(PanicRecoveryMiddleware(cfg.logger), LoggingMiddleware(cfg.logger)),
			WithStandardAccessors(),
		)
		if err != nil {
			return nil, err
		}
		cfg.accessors = reg
	}
	if cfg.handles == nil {
		cfg.handles = NewHandleTable()
	}

	return &Runtime{
		bags:      NewBagTable(),
		handles:   cfg.handles,
		config:    cfg.config,
		accessors: cfg.accessors,
		logger:    cfg.logger,
	}, nil
}

// Handles returns the shared handle table.
func (r *Runtime) Handles() *HandleTable { return r.handles }

// Bags returns the bag table.
func (r *Runtime) Bags() *BagTable { return r.bags }

// Accessors returns the accessor registry.
func (r *Runtime) Accessors() *AccessorRegistry { return r.accessors }

// Logger returns the runtime logger.
func (r *Runtime) Logger() *slog.Logger { return r.logger }

// CallOptions describe one call for Begin.
type CallOptions struct {
	// Config overrides the runtime's config store for this call.
	Config *ConfigStore
	Info   CallInfo
}

// Begin opens a bag for args and returns the Session for one call. The
// caller must call End on every path.
func (r *Runtime) Begin(ctx context.Context, opts CallOptions, args ...entities.Argument) (*Session, error) {
	bag, err := NewArgumentBag(args...)
	if err != nil {
		return nil, err
	}
	config := opts.Config
	if config == nil {
		config = r.config
	}
	s := &Session{
		ctx:     WithCallInfo(ctx, opts.Info),
		runtime: r,
		config:  config,
		info:    opts.Info,
	}
	s.bag = r.bags.Open(bag)
	return s, nil
}

// Session is the host ABI for exactly one call. It owns the call's
// last-error register, so concurrent calls never share fault state.
type Session struct {
	ctx     context.Context
	runtime *Runtime
	config  *ConfigStore
	info    CallInfo
	owned   []entities.Handle
	granted map[entities.Handle]struct{}
	reg     Register
	leaked  int
	bag     entities.BagHandle
	mu      sync.Mutex
	ended   bool
}

var _ ports.HostABI = (*Session)(nil)

// Bag returns the handle of this call's argument bag.
func (s *Session) Bag() entities.BagHandle { return s.bag }

// Context returns the call context.
func (s *Session) Context() context.Context { return s.ctx }

// Info returns the call description.
func (s *Session) Info() CallInfo { return s.info }

// End closes the bag and reports owned handles the plugin never released.
// Leaked handles are logged, not reclaimed.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.runtime.bags.Close(s.bag)
	for _, h := range s.owned {
		if s.runtime.handles.Alive(h) {
			s.leaked++
		}
	}
	if s.leaked > 0 {
		s.runtime.logger.WarnContext(s.ctx, "plugin did not release owned handles",
			"plugin", s.info.Plugin,
			"function", s.info.Function,
			"count", s.leaked)
	}
}

// Leaked returns how many owned handles were still alive at End.
func (s *Session) Leaked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaked
}

// LastError implements ports.ErrorRegister.
func (s *Session) LastError() errors.Code { return s.reg.Load() }

func (s *Session) track(h entities.Handle) entities.Handle {
	s.mu.Lock()
	s.owned = append(s.owned, h)
	s.grantLocked(h)
	s.mu.Unlock()
	return h
}

// Grant hands a host-created handle to the plugin for this call. Handles the
// session neither created nor was granted are answered with InvalidHandle.
func (s *Session) Grant(h entities.Handle) entities.Handle {
	s.mu.Lock()
	s.grantLocked(h)
	s.mu.Unlock()
	return h
}

func (s *Session) grantLocked(h entities.Handle) {
	if s.granted == nil {
		s.granted = make(map[entities.Handle]struct{})
	}
	s.granted[h] = struct{}{}
}

// admit reports whether h belongs to this call and sets InvalidHandle if not.
func (s *Session) admit(h entities.Handle) bool {
	s.mu.Lock()
	_, ok := s.granted[h]
	s.mu.Unlock()
	if !ok {
		s.reg.Set(errors.InvalidHandle)
	}
	return ok
}

func (s *Session) lookupBag(bag entities.BagHandle) (*ArgumentBag, bool) {
	if bag != s.bag {
		return nil, false
	}
	return s.runtime.bags.Lookup(bag)
}

// Argument implements ports.ArgumentAccessor.
func (s *Session) Argument(bag entities.BagHandle, name string, kind entities.ValueKind) entities.Value {
	s.reg.Clear()
	b, ok := s.lookupBag(bag)
	if !ok {
		s.reg.Set(errors.InvalidHandle)
		return entities.Zero(kind)
	}
	v, code := s.runtime.accessors.Fetch(s.ctx, kind, b, name)
	s.reg.Set(code)
	return v
}

// ArgumentInt8 implements ports.ArgumentAccessor.
func (s *Session) ArgumentInt8(bag entities.BagHandle, name string) int8 {
	v, _ := s.Argument(bag, name, entities.KindInt8).AsInt8()
	return v
}

// ArgumentInt16 implements ports.ArgumentAccessor.
func (s *Session) ArgumentInt16(bag entities.BagHandle, name string) int16 {
	v, _ := s.Argument(bag, name, entities.KindInt16).AsInt16()
	return v
}

// ArgumentInt32 implements ports.ArgumentAccessor.
func (s *Session) ArgumentInt32(bag entities.BagHandle, name string) int32 {
	v, _ := s.Argument(bag, name, entities.KindInt32).AsInt32()
	return v
}

// ArgumentInt64 implements ports.ArgumentAccessor.
func (s *Session) ArgumentInt64(bag entities.BagHandle, name string) int64 {
	v, _ := s.Argument(bag, name, entities.KindInt64).AsInt64()
	return v
}

// ArgumentUint8 implements ports.ArgumentAccessor.
func (s *Session) ArgumentUint8(bag entities.BagHandle, name string) uint8 {
	v, _ := s.Argument(bag, name, entities.KindUint8).AsUint8()
	return v
}

// ArgumentUint16 implements ports.ArgumentAccessor.
func (s *Session) ArgumentUint16(bag entities.BagHandle, name string) uint16 {
	v, _ := s.Argument(bag, name, entities.KindUint16).AsUint16()
	return v
}

// ArgumentUint32 implements ports.ArgumentAccessor.
func (s *Session) ArgumentUint32(bag entities.BagHandle, name string) uint32 {
	v, _ := s.Argument(bag, name, entities.KindUint32).AsUint32()
	return v
}

// ArgumentUint64 implements ports.ArgumentAccessor.
func (s *Session) ArgumentUint64(bag entities.BagHandle, name string) uint64 {
	v, _ := s.Argument(bag, name, entities.KindUint64).AsUint64()
	return v
}

// ArgumentFloat32 implements ports.ArgumentAccessor.
func (s *Session) ArgumentFloat32(bag entities.BagHandle, name string) float32 {
	v, _ := s.Argument(bag, name, entities.KindFloat32).AsFloat32()
	return v
}

// ArgumentFloat64 implements ports.ArgumentAccessor.
func (s *Session) ArgumentFloat64(bag entities.BagHandle, name string) float64 {
	v, _ := s.Argument(bag, name, entities.KindFloat64).AsFloat64()
	return v
}

// ArgumentBool implements ports.ArgumentAccessor.
func (s *Session) ArgumentBool(bag entities.BagHandle, name string) bool {
	v, _ := s.Argument(bag, name, entities.KindBool).AsBool()
	return v
}

// ArgumentPointer implements ports.ArgumentAccessor.
func (s *Session) ArgumentPointer(bag entities.BagHandle, name string) uintptr {
	v, _ := s.Argument(bag, name, entities.KindPointer).AsPointer()
	return v
}

// ArgumentString implements ports.ArgumentAccessor.
func (s *Session) ArgumentString(bag entities.BagHandle, name string) string {
	v, _ := s.Argument(bag, name, entities.KindString).AsString()
	return v
}

// ArgumentBlob implements ports.ArgumentAccessor.
func (s *Session) ArgumentBlob(bag entities.BagHandle, name string) []byte {
	v, _ := s.Argument(bag, name, entities.KindBlob).AsBlob()
	return v
}

// ArgumentsJSON implements ports.ArgumentAccessor. The returned handle is
// owned by the caller.
func (s *Session) ArgumentsJSON(bag entities.BagHandle) entities.Handle {
	s.reg.Clear()
	b, ok := s.lookupBag(bag)
	if !ok {
		s.reg.Set(errors.InvalidHandle)
		return entities.NullHandle
	}
	data, err := b.ToJSON()
	if err != nil {
		s.reg.Set(errors.Internal)
		return entities.NullHandle
	}
	return s.track(s.runtime.handles.NewString(string(data)))
}

func (s *Session) setErr(err error) errors.Code {
	code := errors.CodeOf(err)
	s.reg.Set(code)
	return code
}

// StringRead implements ports.HandleBridge.
func (s *Session) StringRead(h entities.Handle) string {
	s.reg.Clear()
	if !s.admit(h) {
		return ""
	}
	text, err := s.runtime.handles.ReadString(h)
	s.setErr(err)
	return text
}

// StringWrite implements ports.HandleBridge.
func (s *Session) StringWrite(h entities.Handle, text string) errors.Code {
	s.reg.Clear()
	if !s.admit(h) {
		return errors.InvalidHandle
	}
	return s.setErr(s.runtime.handles.WriteString(h, text))
}

// ObjectToString implements ports.HandleBridge. The returned string handle
// is owned by the caller.
func (s *Session) ObjectToString(h entities.Handle) entities.Handle {
	s.reg.Clear()
	if !s.admit(h) {
		return entities.NullHandle
	}
	sh, err := s.runtime.handles.ObjectString(h)
	if s.setErr(err).Failed() {
		return entities.NullHandle
	}
	return s.track(sh)
}

// ObjectWrite implements ports.HandleBridge.
func (s *Session) ObjectWrite(h entities.Handle, text string) errors.Code {
	s.reg.Clear()
	if !s.admit(h) {
		return errors.InvalidHandle
	}
	return s.setErr(s.runtime.handles.WriteObject(h, text))
}

// Release implements ports.HandleBridge.
func (s *Session) Release(h entities.Handle) errors.Code {
	s.reg.Clear()
	if !s.admit(h) {
		return errors.InvalidHandle
	}
	return s.setErr(s.runtime.handles.Release(h))
}

// ConfigGet implements ports.HandleBridge. The returned object handle is
// owned by the caller; writes through it update the config store.
func (s *Session) ConfigGet(block, entry string) entities.Handle {
	s.reg.Clear()
	if s.config == nil {
		s.reg.Set(errors.Unsupported)
		return entities.NullHandle
	}
	v, ok := s.config.Get(block, entry)
	if !ok {
		s.reg.Set(errors.NotFound)
		return entities.NullHandle
	}
	store := s.config
	hook := func(nv entities.Value) error {
		store.Set(block, entry, nv)
		return nil
	}
	return s.track(s.runtime.handles.NewObject(v, hook))
}

// ConfigSet implements ports.HandleBridge.
func (s *Session) ConfigSet(block, entry, text string) errors.Code {
	s.reg.Clear()
	if s.config == nil {
		s.reg.Set(errors.Unsupported)
		return errors.Unsupported
	}
	if err := s.config.SetText(block, entry, text); err != nil {
		s.runtime.logger.DebugContext(s.ctx, "config write rejected",
			"block", block, "entry", entry, "error", err)
		s.reg.Set(errors.InvalidValue)
		return errors.InvalidValue
	}
	return errors.OK
}

func (s *Session) String() string {
	return fmt.Sprintf("session(%s.%s bag=%d)", s.info.Plugin, s.info.Function, s.bag)
}
