// Package wazero runs WASM plugins with the wazero runtime.
//
// It provides the plugabi_host module every guest imports and a driver that
// opens .wasm files as plugin modules. It handles:
//
//   - Resolving the call in progress (its host ABI session) from the context
//     wazero passes to every host function
//   - Converting between packed i64 pointer+length values and guest memory
//   - Writing host text into memory from the guest's allocate export
//   - Replaying guest log records into the host logger
//
// # Basic Usage
//
//	driver, err := wazero.NewDriver(ctx, wazero.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer driver.Close(ctx)
//
//	manager, err := host.NewManager(host.WithDriver(driver))
//
// # Guest contract
//
// Scalar accessors return the raw 64-bit payload of the value. Text and
// blob accessors, string_read and plugin_call results are owned by their
// receiver; descriptor exports are borrowed and copied by the host.
package wazero
