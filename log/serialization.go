package log

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/reglet-dev/plugabi/domain/entities"
)

// LogMessageWire is the JSON wire format for a log record sent from a plugin
// to its host.
type LogMessageWire struct {
	Timestamp time.Time            `json:"timestamp"`
	Attrs     []LogAttrWire        `json:"attrs,omitempty"`
	Level     string               `json:"level"`
	Message   string               `json:"message"`
	Context   entities.ContextWire `json:"context"`
}

// LogAttrWire is one flattened slog attribute. Type names the slog kind the
// value came from, so the host can rebuild it.
type LogAttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// appendAttrWire encodes attr onto dst. Groups are flattened into dotted keys
// under prefix; empty attributes are dropped.
func appendAttrWire(dst []LogAttrWire, prefix string, attr slog.Attr) []LogAttrWire {
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix += attr.Key + "."
		}
		for _, a := range attr.Value.Group() {
			dst = appendAttrWire(dst, prefix, a)
		}
		return dst
	}
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	attr.Key = prefix + attr.Key
	return append(dst, toLogAttrWire(attr))
}

// toLogAttrWire encodes a single non-group attribute.
func toLogAttrWire(attr slog.Attr) LogAttrWire {
	v := attr.Value.Resolve()
	w := LogAttrWire{Key: attr.Key, Type: "any"}
	switch v.Kind() {
	case slog.KindString:
		w.Type, w.Value = "string", v.String()
	case slog.KindInt64:
		w.Type, w.Value = "int64", strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		w.Type, w.Value = "uint64", strconv.FormatUint(v.Uint64(), 10)
	case slog.KindBool:
		w.Type, w.Value = "bool", strconv.FormatBool(v.Bool())
	case slog.KindFloat64:
		w.Type, w.Value = "float64", strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case slog.KindTime:
		w.Type, w.Value = "time", v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		w.Type, w.Value = "duration", v.Duration().String()
	default:
		switch x := v.Any().(type) {
		case nil:
			w.Value = "<nil>"
		case error:
			w.Type, w.Value = "error", x.Error()
		default:
			if data, err := json.Marshal(x); err == nil {
				w.Type, w.Value = "json", string(data)
			} else {
				w.Value = fmt.Sprint(x)
			}
		}
	}
	return w
}

// Attr converts the wire attribute back to a slog.Attr. Values that fail to
// parse are kept as strings.
func (w LogAttrWire) Attr() slog.Attr {
	switch w.Type {
	case "int64":
		if n, err := strconv.ParseInt(w.Value, 10, 64); err == nil {
			return slog.Int64(w.Key, n)
		}
	case "uint64":
		if n, err := strconv.ParseUint(w.Value, 10, 64); err == nil {
			return slog.Uint64(w.Key, n)
		}
	case "bool":
		if b, err := strconv.ParseBool(w.Value); err == nil {
			return slog.Bool(w.Key, b)
		}
	case "float64":
		if f, err := strconv.ParseFloat(w.Value, 64); err == nil {
			return slog.Float64(w.Key, f)
		}
	case "time":
		if t, err := time.Parse(time.RFC3339Nano, w.Value); err == nil {
			return slog.Time(w.Key, t)
		}
	case "duration":
		if d, err := time.ParseDuration(w.Value); err == nil {
			return slog.Duration(w.Key, d)
		}
	case "json":
		return slog.Any(w.Key, json.RawMessage(w.Value))
	}
	return slog.String(w.Key, w.Value)
}

// ParseLevel converts a slog level name ("INFO", "WARN+2") back to a level.
// Unknown names map to INFO.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Replay writes a plugin's record into logger, tagged with the plugin and
// function it came from.
func Replay(ctx context.Context, logger *slog.Logger, msg LogMessageWire) {
	level := ParseLevel(msg.Level)
	if !logger.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(msg.Attrs)+2)
	if msg.Context.Plugin != "" {
		attrs = append(attrs, slog.String("plugin", msg.Context.Plugin))
	}
	if msg.Context.Function != "" {
		attrs = append(attrs, slog.String("function", msg.Context.Function))
	}
	for _, a := range msg.Attrs {
		attrs = append(attrs, a.Attr())
	}
	logger.LogAttrs(ctx, level, msg.Message, attrs...)
}
