package host

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/reglet-dev/plugabi/application/validation"
	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/domain/ports"
	"github.com/reglet-dev/plugabi/host/registry"
	"github.com/reglet-dev/plugabi/hostfuncs"
)

// Manager loads plugins through their drivers and owns the host runtime
// every call runs against.
type Manager struct {
	logger    *slog.Logger
	runtime   *hostfuncs.Runtime
	drivers   ports.DriverRegistry
	validator ports.APIValidator
	plugins   map[string]*Plugin
	tags      entities.TagPolicy
	mu        sync.RWMutex
	closed    bool
}

// NewManager creates a Manager with the given options.
func NewManager(opts ...Option) (*Manager, error) {
	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.registry == nil {
		cfg.registry = registry.NewRegistry()
	}
	for _, d := range cfg.drivers {
		if err := cfg.registry.Register(d); err != nil {
			return nil, fmt.Errorf("failed to register driver: %w", err)
		}
	}

	if cfg.validator == nil {
		v, err := validation.NewDescriptorValidator()
		if err != nil {
			return nil, fmt.Errorf("failed to create validator: %w", err)
		}
		cfg.validator = v
	}

	rtOpts := append([]hostfuncs.RuntimeOption{hostfuncs.WithLogger(cfg.logger)}, cfg.runtime...)
	if cfg.config != nil {
		rtOpts = append(rtOpts, hostfuncs.WithConfigStore(cfg.config))
	}
	rt, err := hostfuncs.NewRuntime(rtOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create host runtime: %w", err)
	}

	return &Manager{
		logger:    cfg.logger,
		runtime:   rt,
		drivers:   cfg.registry,
		validator: cfg.validator,
		plugins:   make(map[string]*Plugin),
		tags:      cfg.tags,
	}, nil
}

// Runtime returns the host runtime shared by all plugin calls.
func (m *Manager) Runtime() *hostfuncs.Runtime { return m.runtime }

// Drivers returns the registered driver names.
func (m *Manager) Drivers() []string { return m.drivers.List() }

// ParseSource resolves "driver:location" references against the registered
// drivers.
func (m *Manager) ParseSource(ref string) entities.Source {
	return entities.ParseSource(ref, m.drivers.List()...)
}

// LoadOption adjusts one Load.
type LoadOption func(*loadConfig)

type loadConfig struct {
	config *hostfuncs.ConfigStore
	tags   *entities.TagPolicy
}

// WithPluginConfig serves store to this plugin instead of the manager's.
func WithPluginConfig(store *hostfuncs.ConfigStore) LoadOption {
	return func(c *loadConfig) {
		c.config = store
	}
}

// WithPluginTagPolicy overrides the unknown tag policy for this plugin.
func WithPluginTagPolicy(p entities.TagPolicy) LoadOption {
	return func(c *loadConfig) {
		c.tags = &p
	}
}

// Load opens src, reads and validates its descriptor, and runs plugin_init.
// A non-zero init status closes the instance and returns a LifecycleError;
// such a plugin is never invoked.
func (m *Manager) Load(ctx context.Context, src entities.Source, opts ...LoadOption) (*Plugin, error) {
	var lc loadConfig
	for _, opt := range opts {
		opt(&lc)
	}
	policy := m.tags
	if lc.tags != nil {
		policy = *lc.tags
	}

	driver, err := m.driverFor(src)
	if err != nil {
		return nil, err
	}
	mod, err := driver.Open(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}

	desc, err := m.describe(ctx, mod, policy)
	if err != nil {
		return nil, stdErrors.Join(err, mod.Close(ctx))
	}

	status, err := mod.Init(ctx)
	if err != nil || status != 0 {
		lerr := &errors.LifecycleError{Plugin: desc.Name, Stage: "init", Status: status, Err: err}
		m.logger.ErrorContext(ctx, "plugin init failed", "plugin", desc.Name, "status", status, "error", err)
		return nil, stdErrors.Join(lerr, mod.Close(ctx))
	}

	p := &Plugin{
		module:  mod,
		runtime: m.runtime,
		config:  lc.config,
		logger:  m.logger.With("plugin", desc.Name),
		desc:    desc,
		source:  src,
		driver:  driver.Name(),
		state:   pluginReady,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, stdErrors.Join(fmt.Errorf("manager is closed"), p.shutdown(ctx))
	}
	if _, exists := m.plugins[desc.Name]; exists {
		return nil, stdErrors.Join(fmt.Errorf("plugin %q already loaded", desc.Name), p.shutdown(ctx))
	}
	m.plugins[desc.Name] = p

	m.logger.InfoContext(ctx, "plugin loaded",
		"plugin", desc.Name,
		"version", desc.Version,
		"driver", driver.Name(),
		"functions", len(desc.API.API))
	return p, nil
}

// Info reads the descriptor of src without initialising it.
func (m *Manager) Info(ctx context.Context, src entities.Source) (*entities.Descriptor, error) {
	driver, err := m.driverFor(src)
	if err != nil {
		return nil, err
	}
	mod, err := driver.Open(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	desc, err := m.describe(ctx, mod, m.tags)
	return desc, stdErrors.Join(err, mod.Close(ctx))
}

// Get returns a loaded plugin by name.
func (m *Manager) Get(name string) (*Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plugins[name]
	return p, ok
}

// Plugins returns the names of all loaded plugins, sorted.
func (m *Manager) Plugins() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.plugins))
	for name := range m.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unload runs plugin_uninit once and closes the instance.
func (m *Manager) Unload(ctx context.Context, name string) error {
	m.mu.Lock()
	p, ok := m.plugins[name]
	delete(m.plugins, name)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("plugin %q: %w", name, errors.NotFound.Err())
	}
	return p.shutdown(ctx)
}

// Close unloads every plugin. The manager cannot be used afterwards.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	plugins := m.plugins
	m.plugins = make(map[string]*Plugin)
	m.closed = true
	m.mu.Unlock()

	var errs []error
	for _, p := range plugins {
		errs = append(errs, p.shutdown(ctx))
	}
	return stdErrors.Join(errs...)
}

func (m *Manager) driverFor(src entities.Source) (ports.Driver, error) {
	if src.Driver != "" {
		d, ok := m.drivers.Lookup(src.Driver)
		if !ok {
			return nil, fmt.Errorf("no driver %q: %w", src.Driver, errors.NotFound.Err())
		}
		return d, nil
	}
	d, ok := m.drivers.ForPath(src.Location)
	if !ok {
		return nil, fmt.Errorf("no driver for %q: %w", src.Location, errors.Unsupported.Err())
	}
	return d, nil
}

// describe reads the five metadata entry points and checks the capability
// schema against the JSON Schema and the descriptor against its rules.
func (m *Manager) describe(ctx context.Context, mod ports.Module, policy entities.TagPolicy) (*entities.Descriptor, error) {
	text, err := mod.Descriptor(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}

	doc, dropped, err := entities.ParseAPIDocument([]byte(text.API), policy)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", text.Name, err)
	}
	for _, fn := range dropped {
		m.logger.WarnContext(ctx, "dropping function with unknown type tag", "plugin", text.Name, "function", fn)
	}

	raw := []byte(text.API)
	if len(dropped) > 0 {
		if raw, err = doc.Marshal(); err != nil {
			return nil, err
		}
	}
	res, err := m.validator.ValidateAPI(raw)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", text.Name, err)
	}
	if !res.Valid {
		return nil, fmt.Errorf("plugin %s: %w: %s", text.Name, entities.ErrInvalidAPI, res.Error())
	}

	desc := &entities.Descriptor{
		Name:        text.Name,
		Version:     text.Version,
		Author:      text.Author,
		Description: text.Description,
		API:         doc,
	}
	res, err = m.validator.ValidateDescriptor(desc)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, fmt.Errorf("invalid descriptor: %s", res.Error())
	}
	return desc, nil
}
