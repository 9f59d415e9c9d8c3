// Package validation checks what a plugin advertises before the host
// trusts it: the raw capability schema text against the generated JSON
// Schema, and the parsed descriptor against its struct rules.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/plugabi/application/schema"
	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/ports"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const apiSchemaURL = "plugabi:///api.schema.json"

// DescriptorValidator implements ports.APIValidator.
type DescriptorValidator struct {
	api    *jsonschema.Schema
	fields *validator.Validate
}

var _ ports.APIValidator = (*DescriptorValidator)(nil)

// NewDescriptorValidator compiles the capability schema.
func NewDescriptorValidator() (*DescriptorValidator, error) {
	raw, err := schema.APISchema()
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(apiSchemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to add api schema: %w", err)
	}
	sch, err := compiler.Compile(apiSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api schema: %w", err)
	}

	return &DescriptorValidator{
		api:    sch,
		fields: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// ValidateAPI checks plugin_api text. Malformed JSON is an error; schema
// violations are reported in the result.
func (v *DescriptorValidator) ValidateAPI(data []byte) (*entities.ValidationResult, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("api is not valid JSON: %w", err)
	}

	result := &entities.ValidationResult{Valid: true}
	if err := v.api.Validate(doc); err != nil {
		result.Valid = false
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			result.Errors = append(result.Errors, entities.ValidationError{Message: err.Error()})
			return result, nil
		}
		for _, leaf := range leaves(ve) {
			result.Errors = append(result.Errors, entities.ValidationError{
				Field:   pointer(leaf.InstanceLocation),
				Message: leaf.Message,
			})
		}
	}
	return result, nil
}

// leaves flattens the cause tree to the errors that carry a concrete reason.
func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

func pointer(loc string) string {
	if loc == "" {
		return "/"
	}
	return loc
}

// ValidateDescriptor checks descriptor fields and the structural rules of
// its capability schema.
func (v *DescriptorValidator) ValidateDescriptor(d *entities.Descriptor) (*entities.ValidationResult, error) {
	if d == nil {
		return nil, fmt.Errorf("descriptor is nil")
	}

	result := &entities.ValidationResult{Valid: true}
	if err := v.fields.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		for _, fe := range verrs {
			result.Errors = append(result.Errors, entities.ValidationError{
				Field:   strings.TrimPrefix(fe.Namespace(), "Descriptor."),
				Message: fmt.Sprintf("failed on %q", fe.Tag()),
			})
		}
	}
	if err := d.API.Check(); err != nil {
		result.Errors = append(result.Errors, entities.ValidationError{Field: "API", Message: err.Error()})
	}
	result.Valid = len(result.Errors) == 0
	return result, nil
}
