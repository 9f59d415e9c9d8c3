package entities

// Descriptor is the static metadata a plugin advertises to its host. It is
// read once at load time and never mutated.
type Descriptor struct {
	Name        string      `json:"name" validate:"required,printascii"`
	Version     string      `json:"version" validate:"required"`
	Author      string      `json:"author"`
	Description string      `json:"description"`
	API         APIDocument `json:"api"`
}

// Function looks up a capability in the descriptor's schema.
func (d *Descriptor) Function(name string) (FunctionSpec, bool) {
	return d.API.Function(name)
}

// DescriptorText is what a plugin's five metadata entry points return, before
// the host has parsed and checked the capability schema.
type DescriptorText struct {
	Name        string
	Version     string
	Author      string
	Description string
	API         string
}
