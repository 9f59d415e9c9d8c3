package entities

import "strings"

// Source locates a plugin for a driver.
type Source struct {
	// Driver forces a driver by name. Empty selects by extension.
	Driver string
	// Location is a file path, or the registered name for in-process plugins.
	Location string
}

// ParseSource splits "driver:location" references. Anything without a known
// scheme prefix is treated as a path.
func ParseSource(ref string, drivers ...string) Source {
	for _, d := range drivers {
		if rest, ok := strings.CutPrefix(ref, d+":"); ok {
			return Source{Driver: d, Location: rest}
		}
	}
	return Source{Location: ref}
}

func (s Source) String() string {
	if s.Driver == "" {
		return s.Location
	}
	return s.Driver + ":" + s.Location
}
