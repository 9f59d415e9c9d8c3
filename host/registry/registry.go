// Package registry resolves plugin sources to the driver that can open them.
package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/reglet-dev/plugabi/domain/ports"
)

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	strictMode bool // Fail on duplicate registrations
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		strictMode: true, // Secure default: prevent accidental overwrites
	}
}

// RegistryOption configures a Registry instance.
type RegistryOption func(*registryConfig)

// WithStrictMode enables/disables strict mode for duplicate registrations.
// Default is true (fail on duplicates). Disable only for testing or hot-reloading.
func WithStrictMode(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.strictMode = enabled
	}
}

// Registry implements ports.DriverRegistry.
type Registry struct {
	config     registryConfig
	drivers    sync.Map // map[string]ports.Driver
	extensions sync.Map // map[string]string (extension -> driver name)
	mu         sync.Mutex
}

var _ ports.DriverRegistry = (*Registry)(nil)

// NewRegistry creates a new Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{config: cfg}
}

// Register adds a driver and claims its file extensions.
func (r *Registry) Register(d ports.Driver) error {
	if d == nil || d.Name() == "" {
		return fmt.Errorf("driver must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config.strictMode {
		if _, exists := r.drivers.Load(d.Name()); exists {
			return fmt.Errorf("driver %q already registered", d.Name())
		}
		for _, ext := range d.Extensions() {
			if owner, taken := r.extensions.Load(normalizeExt(ext)); taken {
				return fmt.Errorf("extension %q already claimed by driver %q", ext, owner)
			}
		}
	}

	r.drivers.Store(d.Name(), d)
	for _, ext := range d.Extensions() {
		r.extensions.Store(normalizeExt(ext), d.Name())
	}
	return nil
}

// Lookup returns the driver registered under name.
func (r *Registry) Lookup(name string) (ports.Driver, bool) {
	v, ok := r.drivers.Load(name)
	if !ok {
		return nil, false
	}
	return v.(ports.Driver), true
}

// ForPath selects a driver by the file extension of path.
func (r *Registry) ForPath(path string) (ports.Driver, bool) {
	ext := filepath.Ext(path)
	if ext == "" {
		return nil, false
	}
	name, ok := r.extensions.Load(normalizeExt(ext))
	if !ok {
		return nil, false
	}
	return r.Lookup(name.(string))
}

// List returns all registered driver names, sorted.
func (r *Registry) List() []string {
	var keys []string
	r.drivers.Range(func(k, _ interface{}) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
