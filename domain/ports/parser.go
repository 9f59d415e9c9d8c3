package ports

import "github.com/reglet-dev/plugabi/domain/entities"

// ManifestParser parses a plugin bundle manifest.
type ManifestParser interface {
	Parse(data []byte) (*entities.BundleManifest, error)
}
