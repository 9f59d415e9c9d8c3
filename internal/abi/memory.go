//go:build wasip1

package abi

import (
	"fmt"
	"sync"
	"unsafe"
)

// DefaultMaxTotalAllocations bounds the bytes the guest keeps pinned for
// the host at any time.
const DefaultMaxTotalAllocations = 100 * 1024 * 1024

// Option configures the allocator.
type Option func(*config)

type config struct {
	maxTotal int
}

// WithMaxTotalAllocations sets the pinned-bytes limit. Non-positive values
// are ignored.
func WithMaxTotalAllocations(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxTotal = n
		}
	}
}

// memory pins slices handed to the host so the GC keeps them alive until
// deallocate.
var memory = struct {
	ptrs  map[uint32][]byte
	cfg   config
	total int
	sync.Mutex
}{
	ptrs: make(map[uint32][]byte),
	cfg:  config{maxTotal: DefaultMaxTotalAllocations},
}

// Configure applies allocator options.
func Configure(opts ...Option) {
	memory.Lock()
	defer memory.Unlock()
	for _, opt := range opts {
		opt(&memory.cfg)
	}
}

// allocate reserves size bytes the host can write into. It panics when the
// pinned-bytes limit would be exceeded.
//
//go:wasmexport allocate
func allocate(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	memory.Lock()
	defer memory.Unlock()

	if memory.total+int(size) > memory.cfg.maxTotal {
		panic(fmt.Sprintf("abi: memory allocation limit exceeded (requested: %d bytes, current: %d bytes, limit: %d bytes)",
			size, memory.total, memory.cfg.maxTotal))
	}
	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	memory.ptrs[ptr] = buf
	memory.total += int(size)
	return ptr
}

// deallocate unpins ptr. Unknown pointers are ignored; accounting uses the
// pinned length, not size.
//
//go:wasmexport deallocate
func deallocate(ptr uint32, size uint32) {
	memory.Lock()
	defer memory.Unlock()

	buf, ok := memory.ptrs[ptr]
	if !ok {
		return
	}
	delete(memory.ptrs, ptr)
	memory.total -= len(buf)
	if memory.total < 0 {
		memory.total = 0
	}
}

// Stats returns the number of pinned buffers and their total size.
func Stats() (count, total int) {
	memory.Lock()
	defer memory.Unlock()
	return len(memory.ptrs), memory.total
}

// FreeAllTracked unpins everything. Used after a trapped call.
func FreeAllTracked() {
	memory.Lock()
	defer memory.Unlock()
	clear(memory.ptrs)
	memory.total = 0
}

// PtrFromBytes copies data into pinned memory and returns it packed. The
// buffer stays pinned until DeallocatePacked or the host's deallocate.
func PtrFromBytes(data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	size := uint32(len(data))
	ptr := allocate(size)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(data)), data) //nolint:gosec // G103: linear memory
	return PackPtrLen(ptr, size)
}

// BytesFromPtr copies a packed region of linear memory.
func BytesFromPtr(packed uint64) []byte {
	ptr, length := UnpackPtrLen(packed)
	if ptr == 0 || length == 0 {
		return nil
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length) //nolint:gosec // G103: linear memory
	data := make([]byte, length)
	copy(data, src)
	return data
}

// TakeBytes copies a packed region written by the host and unpins it.
func TakeBytes(packed uint64) []byte {
	data := BytesFromPtr(packed)
	DeallocatePacked(packed)
	return data
}

// DeallocatePacked unpins a packed region.
func DeallocatePacked(packed uint64) {
	ptr, length := UnpackPtrLen(packed)
	if ptr != 0 && length > 0 {
		deallocate(ptr, length)
	}
}

// StringPtr passes s to the host without copying. s must stay reachable
// until the host call returns.
func StringPtr(s string) uint64 {
	if len(s) == 0 {
		return 0
	}
	return PackPtrLen(uint32(uintptr(unsafe.Pointer(unsafe.StringData(s)))), uint32(len(s))) //nolint:gosec // G103: linear memory
}
