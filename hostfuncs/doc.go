// Package hostfuncs implements the host side of the plugin boundary in pure
// Go: argument bags, the typed accessor entry points, the per-call last-error
// register and the reference-counted string/object table. It has no WASM or
// scripting runtime dependencies; runtime adapters in infrastructure/ expose
// a Session to their guests.
package hostfuncs
