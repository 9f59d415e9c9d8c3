package hostfuncs

import (
	"sync/atomic"

	"github.com/reglet-dev/plugabi/domain/errors"
)

// Register is a last-error register. Each Session owns one, so concurrent
// calls never observe each other's faults.
type Register struct {
	code atomic.Int32
}

// Set stores c.
func (r *Register) Set(c errors.Code) { r.code.Store(int32(c)) }

// Clear resets the register to OK.
func (r *Register) Clear() { r.code.Store(int32(errors.OK)) }

// Load returns the most recent code.
func (r *Register) Load() errors.Code { return errors.Code(r.code.Load()) }
