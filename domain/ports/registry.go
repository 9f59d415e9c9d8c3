package ports

// DriverRegistry resolves plugin sources to drivers.
type DriverRegistry interface {
	// Register adds a driver. Names and extensions must be unique.
	Register(d Driver) error

	// Lookup returns the driver registered under name.
	Lookup(name string) (Driver, bool)

	// ForPath selects a driver by the file extension of path.
	ForPath(path string) (Driver, bool)

	// List returns all registered driver names.
	List() []string
}
