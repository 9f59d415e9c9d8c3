package domain_test

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/reglet-dev/plugabi/"

// TestDomainHasNoExternalDependencies checks that the domain layer imports
// only the standard library and other domain packages.
func TestDomainHasNoExternalDependencies(t *testing.T) {
	fset := token.NewFileSet()
	for _, pkg := range []string{"entities", "errors", "ports"} {
		files, err := filepath.Glob(filepath.Join(pkg, "*.go"))
		require.NoError(t, err)
		require.NotEmpty(t, files, "domain/%s has no Go files", pkg)

		for _, file := range files {
			if strings.HasSuffix(file, "_test.go") {
				continue
			}
			f, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
			require.NoError(t, err, "failed to parse %s", file)

			for _, imp := range f.Imports {
				path := strings.Trim(imp.Path.Value, `"`)
				if rest, ok := strings.CutPrefix(path, modulePath); ok {
					assert.True(t, strings.HasPrefix(rest, "domain/"),
						"%s imports %s from outside the domain layer", file, path)
					continue
				}
				first, _, _ := strings.Cut(path, "/")
				assert.False(t, strings.Contains(first, "."),
					"%s imports third-party package %s", file, path)
			}
		}
	}
}
