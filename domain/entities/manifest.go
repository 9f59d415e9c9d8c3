package entities

// BundleManifest is the plugin.yaml found at the root of a plugin bundle.
type BundleManifest struct {
	Name   string `json:"name" yaml:"name" validate:"required"`
	Driver string `json:"driver" yaml:"driver" validate:"required"`
	// Entry is the plugin file, relative to the bundle root. It may not
	// leave the bundle.
	Entry string `json:"entry" yaml:"entry" validate:"required,localpath"`
	// Config is an optional YAML config file, relative to the bundle root,
	// served to the plugin through config_get/config_set.
	Config string `json:"config,omitempty" yaml:"config,omitempty" validate:"omitempty,localpath"`
	// UnknownTags overrides the host's tag policy for this plugin.
	UnknownTags string `json:"unknown_tags,omitempty" yaml:"unknown_tags,omitempty" validate:"omitempty,oneof=reject ignore"`
}
