// Package parser reads plugin bundle manifests.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/ports"
	"gopkg.in/yaml.v3"
)

// YamlManifestParser implements ManifestParser for YAML.
type YamlManifestParser struct {
	validate *validator.Validate
}

// NewYamlManifestParser creates a new YamlManifestParser. Besides the
// built-in rules it knows localpath: a relative path that stays inside the
// bundle root.
func NewYamlManifestParser() ports.ManifestParser {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("localpath", func(fl validator.FieldLevel) bool {
		return filepath.IsLocal(filepath.FromSlash(fl.Field().String()))
	})
	return &YamlManifestParser{validate: v}
}

// Parse decodes a plugin.yaml document. Unknown keys are rejected so typos
// in a manifest fail loudly.
func (p *YamlManifestParser) Parse(data []byte) (*entities.BundleManifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var manifest entities.BundleManifest
	if err := dec.Decode(&manifest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest is empty")
		}
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := p.validate.Struct(manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &manifest, nil
}
