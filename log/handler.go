// Package log forwards plugin-side slog records to the host as
// LogMessageWire records and replays them into the host's logger.
package log

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"

	"github.com/reglet-dev/plugabi/domain/entities"
)

// Sink receives every record the handler accepts.
type Sink func(ctx context.Context, msg LogMessageWire)

// Handler implements slog.Handler by converting records to LogMessageWire
// and passing them to a Sink.
type Handler struct {
	sink   Sink
	attrs  []LogAttrWire
	prefix string
	opts   handlerConfig
}

// HandlerOption configures the Handler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	sink      Sink
	level     slog.Level
	addSource bool
}

func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
		sink:  defaultSink,
	}
}

// WithLevel sets the minimum level forwarded.
func WithLevel(level slog.Level) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource adds the caller's file:line as a "source" attribute.
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// WithSink replaces the default sink (the host import in WASM builds).
func WithSink(sink Sink) HandlerOption {
	return func(c *handlerConfig) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// NewHandler creates a Handler with the given options.
func NewHandler(opts ...HandlerOption) *Handler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Handler{opts: cfg, sink: cfg.sink}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level
}

// Handle converts record and passes it to the sink.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	msg := LogMessageWire{
		Context:   CallFrom(ctx),
		Level:     record.Level.String(),
		Message:   record.Message,
		Timestamp: record.Time,
	}
	msg.Attrs = append(msg.Attrs, h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		msg.Attrs = appendAttrWire(msg.Attrs, h.prefix, attr)
		return true
	})
	if h.opts.addSource && record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		msg.Attrs = append(msg.Attrs, LogAttrWire{
			Key:   slog.SourceKey,
			Type:  "string",
			Value: frame.File + ":" + strconv.Itoa(frame.Line),
		})
	}
	h.sink(ctx, msg)
	return nil
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]LogAttrWire, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = appendAttrWire(next.attrs, h.prefix, a)
	}
	return &next
}

// WithGroup returns a handler that prefixes later keys with name. Groups are
// flattened into dotted keys on the wire.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

type callKey struct{}

// WithCall attaches the call identity that log records are tagged with.
func WithCall(ctx context.Context, call entities.ContextWire) context.Context {
	return context.WithValue(ctx, callKey{}, call)
}

// CallFrom returns the call identity attached by WithCall.
func CallFrom(ctx context.Context) entities.ContextWire {
	if ctx == nil {
		return entities.ContextWire{}
	}
	call, _ := ctx.Value(callKey{}).(entities.ContextWire)
	return call
}
