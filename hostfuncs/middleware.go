package hostfuncs

import (
	"log/slog"
	"runtime/debug"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
)

// Middleware wraps an AccessorFunc to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
//
// Example usage:
//
//	counting := func(next AccessorFunc) AccessorFunc {
//	    return func(ctx HostContext, bag *ArgumentBag, name string) (entities.Value, errors.Code) {
//	        calls.Add(1)
//	        return next(ctx, bag, name)
//	    }
//	}
type Middleware func(next AccessorFunc) AccessorFunc

// RegistryOption is a functional option for configuring an AccessorRegistry.
type RegistryOption func(*registryBuilder)

// PanicRecoveryMiddleware converts a panic inside an accessor into the
// Internal register code instead of crashing the host.
func PanicRecoveryMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next AccessorFunc) AccessorFunc {
		return func(ctx HostContext, bag *ArgumentBag, name string) (v entities.Value, code errors.Code) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "accessor panicked",
						"entry_point", ctx.EntryPoint(),
						"argument", name,
						"panic", r,
						"stack", string(debug.Stack()))
					v, code = entities.Zero(ctx.Kind()), errors.Internal
				}
			}()
			return next(ctx, bag, name)
		}
	}
}

// LoggingMiddleware logs every accessor call and fault at debug level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next AccessorFunc) AccessorFunc {
		return func(ctx HostContext, bag *ArgumentBag, name string) (entities.Value, errors.Code) {
			v, code := next(ctx, bag, name)
			call := ctx.Call()
			if code.Failed() {
				logger.DebugContext(ctx, "accessor fault",
					"plugin", call.Plugin,
					"function", call.Function,
					"entry_point", ctx.EntryPoint(),
					"argument", name,
					"code", code.Name())
			} else {
				logger.DebugContext(ctx, "accessor call",
					"plugin", call.Plugin,
					"function", call.Function,
					"entry_point", ctx.EntryPoint(),
					"argument", name)
			}
			return v, code
		}
	}
}
