package plugin

import "sync"

var (
	registeredMu sync.RWMutex
	registered   *Definition
)

// Register makes d the plugin served by this binary. In a wasip1 build it
// backs the plugin_* exports; elsewhere hosts can pick it up with
// Registered.
func Register(d *Definition) {
	registeredMu.Lock()
	defer registeredMu.Unlock()
	registered = d
}

// Registered returns the definition passed to Register, or nil.
func Registered() *Definition {
	registeredMu.RLock()
	defer registeredMu.RUnlock()
	return registered
}
