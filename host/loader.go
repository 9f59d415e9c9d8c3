package host

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/ports"
	"github.com/reglet-dev/plugabi/hostfuncs"
	"github.com/reglet-dev/plugabi/infrastructure/parser"
	"github.com/xyproto/unzip"
)

// ManifestName is the manifest file at the root of every bundle.
const ManifestName = "plugin.yaml"

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	parser   ports.ManifestParser
	cacheDir string
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		parser:   parser.NewYamlManifestParser(),
		cacheDir: filepath.Join(os.TempDir(), "plugabi-bundles"),
	}
}

// LoaderOption configures the Loader.
type LoaderOption func(*loaderConfig)

// WithParser sets a custom manifest parser.
func WithParser(p ports.ManifestParser) LoaderOption {
	return func(c *loaderConfig) {
		c.parser = p
	}
}

// WithCacheDir sets where zipped bundles are extracted.
func WithCacheDir(dir string) LoaderOption {
	return func(c *loaderConfig) {
		c.cacheDir = dir
	}
}

// Bundle is a plugin directory described by its manifest.
type Bundle struct {
	Manifest *entities.BundleManifest
	// Dir is the bundle root holding the manifest.
	Dir string
	// Hash is the SHA-256 of the zip the bundle came from, if any.
	Hash string
}

// Loader opens plugin bundles (a directory or a .zip) and loads them into a
// Manager.
type Loader struct {
	manager *Manager
	config  loaderConfig
}

// NewLoader creates a new Loader with defaults.
func NewLoader(m *Manager, opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{manager: m, config: cfg}
}

// OpenBundle reads the manifest of the bundle at path. A zip is extracted
// once into the cache directory, keyed by its hash.
func (l *Loader) OpenBundle(path string) (*Bundle, error) {
	dir := path
	var hash string
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		var err error
		if hash, err = fileHash(path); err != nil {
			return nil, err
		}
		if dir, err = l.extract(path, hash); err != nil {
			return nil, err
		}
	}

	root, err := findManifest(dir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(root, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	manifest, err := l.config.parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for field, rel := range map[string]string{"entry": manifest.Entry, "config": manifest.Config} {
		if rel != "" && !filepath.IsLocal(filepath.FromSlash(rel)) {
			return nil, fmt.Errorf("%s: manifest %s %q leaves the bundle", path, field, rel)
		}
	}
	return &Bundle{Manifest: manifest, Dir: root, Hash: hash}, nil
}

// Source returns where the bundle's entry lives. Entries that are not files
// in the bundle (registered native plugins) are passed through as-is.
func (b *Bundle) Source() entities.Source {
	loc := filepath.Join(b.Dir, b.Manifest.Entry)
	if _, err := os.Stat(loc); err != nil {
		loc = b.Manifest.Entry
	}
	return entities.Source{Driver: b.Manifest.Driver, Location: loc}
}

// Load opens the bundle at path and loads its plugin, serving the bundle's
// config file to it when the manifest names one.
func (l *Loader) Load(ctx context.Context, path string) (*Plugin, error) {
	b, err := l.OpenBundle(path)
	if err != nil {
		return nil, err
	}

	var opts []LoadOption
	if b.Manifest.Config != "" {
		store, err := hostfuncs.LoadConfigFile(filepath.Join(b.Dir, b.Manifest.Config))
		if err != nil {
			return nil, fmt.Errorf("bundle %s: %w", b.Manifest.Name, err)
		}
		opts = append(opts, WithPluginConfig(store))
	}
	switch b.Manifest.UnknownTags {
	case "ignore":
		opts = append(opts, WithPluginTagPolicy(entities.IgnoreUnknownTags))
	case "reject":
		opts = append(opts, WithPluginTagPolicy(entities.RejectUnknownTags))
	}

	p, err := l.manager.Load(ctx, b.Source(), opts...)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", b.Manifest.Name, err)
	}
	if p.Name() != b.Manifest.Name {
		l.manager.logger.WarnContext(ctx, "bundle name differs from plugin name",
			"bundle", b.Manifest.Name, "plugin", p.Name())
	}
	return p, nil
}

func (l *Loader) extract(archive, hash string) (string, error) {
	dest := filepath.Join(l.config.cacheDir, hash)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := checkArchive(archive); err != nil {
		return "", err
	}
	if err := os.MkdirAll(l.config.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bundle cache: %w", err)
	}
	tmp, err := os.MkdirTemp(l.config.cacheDir, "extract-")
	if err != nil {
		return "", fmt.Errorf("failed to create bundle cache: %w", err)
	}
	if err := unzip.Extract(archive, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return "", fmt.Errorf("failed to extract %s: %w", archive, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.RemoveAll(tmp)
		return "", fmt.Errorf("failed to move extracted bundle: %w", err)
	}
	return dest, nil
}

// checkArchive rejects archives with entries that would be written outside
// the extraction directory, or that are symlinks.
func checkArchive(path string) error {
	r, err := zip.OpenReader(path)
	if errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("%s: archive entry escapes the bundle: %w", path, err)
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer r.Close()

	for _, f := range r.File {
		name := strings.TrimSuffix(f.Name, "/")
		if !filepath.IsLocal(filepath.FromSlash(name)) || strings.Contains(name, `\`) {
			return fmt.Errorf("%s: archive entry %q escapes the bundle", path, f.Name)
		}
		if f.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%s: archive entry %q is a symlink", path, f.Name)
		}
	}
	return nil
}

// findManifest accepts the manifest at dir or inside dir's only subdirectory,
// which is how most zip tools lay out an archived folder.
func findManifest(dir string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, ManifestName)); err == nil {
		return dir, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read bundle: %w", err)
	}
	var subdirs []string
	for _, e := range entries {
		if e.IsDir() {
			subdirs = append(subdirs, filepath.Join(dir, e.Name()))
		}
	}
	if len(subdirs) == 1 {
		if _, err := os.Stat(filepath.Join(subdirs[0], ManifestName)); err == nil {
			return subdirs[0], nil
		}
	}
	return "", fmt.Errorf("no %s in bundle %s", ManifestName, dir)
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
