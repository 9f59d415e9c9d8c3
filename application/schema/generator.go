// Package schema generates the JSON Schema of the capability document that
// plugins return from plugin_api.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/reglet-dev/plugabi/domain/entities"
)

// GenerateSchema reflects v into a JSON Schema (Draft 2020-12). Nested types
// are inlined and unknown properties are allowed, so documents written by
// newer plugins still validate.
func GenerateSchema(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		Anonymous:                 true,
		AllowAdditionalProperties: true,
	}
	s := reflector.Reflect(v)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

var (
	apiSchemaOnce sync.Once
	apiSchema     []byte
	apiSchemaErr  error
)

// APISchema returns the schema of entities.APIDocument. It is generated once.
func APISchema() ([]byte, error) {
	apiSchemaOnce.Do(func() {
		apiSchema, apiSchemaErr = GenerateSchema(&entities.APIDocument{})
	})
	return apiSchema, apiSchemaErr
}
