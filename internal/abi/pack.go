// Package abi holds the conventions shared by WASM hosts and guests: the
// packed pointer/length encoding, the host module and export names, and the
// guest-side linear memory allocator.
package abi

import "fmt"

// PtrHighBits is the shift of the pointer half of a packed value.
const PtrHighBits = 32

// HostModule is the import module every guest links against.
const HostModule = "plugabi_host"

// Guest export names.
const (
	ExportAllocate    = "allocate"
	ExportDeallocate  = "deallocate"
	ExportName        = "plugin_name"
	ExportVersion     = "plugin_version"
	ExportAuthor      = "plugin_author"
	ExportDescription = "plugin_description"
	ExportAPI         = "plugin_api"
	ExportInit        = "plugin_init"
	ExportUninit      = "plugin_uninit"
	ExportCall        = "plugin_call"
)

// PackPtrLen packs a pointer and length into a single uint64, pointer in the
// high half. It panics on a null pointer with a non-zero length.
func PackPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid pack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return (uint64(ptr) << PtrHighBits) | uint64(length)
}

// UnpackPtrLen is the inverse of PackPtrLen.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> PtrHighBits) //nolint:gosec // G115: packed format stores 32-bit values
	length = uint32(packed)             //nolint:gosec // G115: packed format stores 32-bit values
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid unpack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return ptr, length
}
