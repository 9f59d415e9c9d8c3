//go:build wasip1

package log

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/plugabi/internal/abi"
)

//go:wasmimport plugabi_host log_message
//nolint:revive // intentional snake_case to match WASM import convention
func host_log_message(messagePacked uint64)

// defaultSink sends the record to the host's log_message import.
func defaultSink(_ context.Context, msg LogMessageWire) {
	data, err := json.Marshal(msg)
	if err != nil {
		fmt.Printf("plugabi: failed to marshal log message for host: %v, original: %s\n", err, msg.Message)
		return
	}
	packed := abi.PtrFromBytes(data)
	host_log_message(packed)
	abi.DeallocatePacked(packed)
}

func init() {
	slog.SetDefault(slog.New(NewHandler()))
}
