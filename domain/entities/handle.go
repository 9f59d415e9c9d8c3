package entities

import "fmt"

// BagHandle identifies one argument bag for the duration of a single call.
// Zero is never a valid bag.
type BagHandle uint32

// Handle identifies a host-owned, reference-counted string or object.
// The high 32 bits carry the slot generation, the low 32 bits the slot index,
// so a handle whose slot was freed and reused never aliases the new value.
type Handle uint64

// NullHandle is returned by operations that failed. It never resolves.
const NullHandle Handle = 0

// NewHandle packs a slot index and generation.
func NewHandle(slot, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(slot))
}

// Slot returns the slot index.
func (h Handle) Slot() uint32 { return uint32(h) }

// Generation returns the slot generation the handle was issued for.
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

func (h Handle) String() string {
	return fmt.Sprintf("handle(%d@%d)", h.Slot(), h.Generation())
}

// Ownership records what a holder of a handle is allowed to do with it.
type Ownership uint8

const (
	// Borrowed handles are valid for the current call only and must not be
	// released by the holder.
	Borrowed Ownership = iota
	// Owned handles carry one reference that the holder must release exactly
	// once.
	Owned
)

func (o Ownership) String() string {
	if o == Owned {
		return "owned"
	}
	return "borrowed"
}
