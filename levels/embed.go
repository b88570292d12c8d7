package levels

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
)

// RegistryPath is the registry file's name on the content FS.
const RegistryPath = "registry.yaml"

//go:embed registry.yaml segments/*.yaml scripts/*.tengo
var contentFS embed.FS

// Content returns the embedded authored content: the registry, segment
// specs, and level scripts.
func Content() fs.FS {
	return contentFS
}

// DirContent returns a content FS rooted at dir, for dev-mode overrides of
// the embedded content.
func DirContent(dir string) (fs.FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}
	return os.DirFS(abs), nil
}
