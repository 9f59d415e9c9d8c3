package host

import (
	"log/slog"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/ports"
	"github.com/reglet-dev/plugabi/hostfuncs"
)

// managerConfig holds configuration for the Manager.
type managerConfig struct {
	logger    *slog.Logger
	config    *hostfuncs.ConfigStore
	validator ports.APIValidator
	drivers   []ports.Driver
	registry  ports.DriverRegistry
	runtime   []hostfuncs.RuntimeOption
	tags      entities.TagPolicy
}

func defaultManagerConfig() managerConfig {
	return managerConfig{
		logger: slog.Default(),
		tags:   entities.RejectUnknownTags, // Secure default: never guess at tags
	}
}

// Option configures a Manager.
type Option func(*managerConfig)

// WithDriver registers a plugin driver.
func WithDriver(d ports.Driver) Option {
	return func(c *managerConfig) {
		c.drivers = append(c.drivers, d)
	}
}

// WithDriverRegistry replaces the default strict driver registry.
func WithDriverRegistry(r ports.DriverRegistry) Option {
	return func(c *managerConfig) {
		c.registry = r
	}
}

// WithLogger sets the logger for the manager and its runtime.
func WithLogger(logger *slog.Logger) Option {
	return func(c *managerConfig) {
		c.logger = logger
	}
}

// WithConfigStore sets the config store served to plugins that have none
// of their own.
func WithConfigStore(store *hostfuncs.ConfigStore) Option {
	return func(c *managerConfig) {
		c.config = store
	}
}

// WithUnknownTagPolicy decides whether a plugin advertising a type tag
// outside the vocabulary fails to load (default) or loses those functions.
func WithUnknownTagPolicy(p entities.TagPolicy) Option {
	return func(c *managerConfig) {
		c.tags = p
	}
}

// WithValidator replaces the default schema and descriptor validator.
func WithValidator(v ports.APIValidator) Option {
	return func(c *managerConfig) {
		c.validator = v
	}
}

// WithRuntimeOptions passes options through to the host runtime.
func WithRuntimeOptions(opts ...hostfuncs.RuntimeOption) Option {
	return func(c *managerConfig) {
		c.runtime = append(c.runtime, opts...)
	}
}
