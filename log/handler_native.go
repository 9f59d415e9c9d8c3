//go:build !wasip1

package log

import (
	"context"
	"log/slog"
)

// defaultSink replays records into slog.Default outside WASM.
func defaultSink(ctx context.Context, msg LogMessageWire) {
	Replay(ctx, slog.Default(), msg)
}
