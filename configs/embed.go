package configs

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

// DefaultCatalog is the catalog used when no other is selected.
const DefaultCatalog = "tools.yaml"

//go:embed *.yaml
var embeddedCatalogs embed.FS

// Names returns the list of embedded catalog filenames.
func Names() []string {
	entries, err := fs.Glob(embeddedCatalogs, "*.yaml")
	if err != nil {
		return nil
	}
	sort.Strings(entries)
	return entries
}

// Load returns the embedded catalog by filename.
func Load(name string) ([]byte, error) {
	if name == "" {
		name = DefaultCatalog
	}
	data, err := fs.ReadFile(embeddedCatalogs, name)
	if err != nil {
		return nil, fmt.Errorf("read embedded catalog %q (available: %v): %w", name, Names(), err)
	}
	return data, nil
}
