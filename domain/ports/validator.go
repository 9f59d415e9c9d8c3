package ports

import "github.com/reglet-dev/plugabi/domain/entities"

// APIValidator checks what a plugin advertises before the host trusts it.
type APIValidator interface {
	// ValidateAPI checks raw plugin_api text against the capability schema.
	ValidateAPI(data []byte) (*entities.ValidationResult, error)
	// ValidateDescriptor checks the parsed descriptor fields.
	ValidateDescriptor(d *entities.Descriptor) (*entities.ValidationResult, error)
}
