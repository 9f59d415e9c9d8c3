package ports

import (
	"context"

	"github.com/reglet-dev/plugabi/domain/entities"
)

// Driver opens plugins of one runtime kind.
type Driver interface {
	// Name is the driver's scheme, e.g. "wasm" or "native".
	Name() string
	// Extensions lists the file extensions selected for this driver.
	Extensions() []string
	Open(ctx context.Context, src entities.Source) (Module, error)
}

// Invocation is one call into a plugin capability.
type Invocation struct {
	ABI      HostABI
	Function entities.FunctionSpec
	Bag      entities.BagHandle
}

// Module is one opened plugin instance. The host guarantees Init is called
// before Invoke and that nothing but Close follows Uninit.
type Module interface {
	// Descriptor reads the five metadata entry points.
	Descriptor(ctx context.Context) (entities.DescriptorText, error)
	// Init runs plugin_init. A non-zero status is fatal for the instance.
	Init(ctx context.Context) (int32, error)
	Uninit(ctx context.Context) error
	Invoke(ctx context.Context, inv Invocation) (entities.Value, error)
	Close(ctx context.Context) error
}
