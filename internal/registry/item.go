package registry

import (
	"context"

	"github.com/vango-dev/uireg/internal/store"
)

// ItemType is the registry item type of every component.
const ItemType = "registry:ui"

// Item is an installable registry item.
type Item struct {
	Name                 string   `json:"name"`
	Type                 string   `json:"type"`
	Dependencies         []string `json:"dependencies"`
	RegistryDependencies []string `json:"registryDependencies"`
	Files                []File   `json:"files"`
}

// File is one file written by the installer.
type File struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Type     string `json:"type"`
	Checksum string `json:"checksum,omitempty"`
}

// Item builds the install item of c, fetching its code from storage.
func (r *Registry) Item(ctx context.Context, c *store.Component) (*Item, error) {
	content, err := r.fetchFile(ctx, c.CodeURL)
	if err != nil {
		return nil, err
	}

	item := &Item{
		Name:                 c.Slug,
		Type:                 ItemType,
		Dependencies:         PackageSpecs(c.Dependencies),
		RegistryDependencies: make([]string, 0, len(c.RegistryDependencies)),
		Files: []File{{
			Path:     c.Slug + ".tsx",
			Content:  string(content),
			Type:     ItemType,
			Checksum: checksum(content),
		}},
	}
	for _, ref := range c.RegistryDependencies {
		item.RegistryDependencies = append(item.RegistryDependencies, r.InstallURL(ref))
	}
	return item, nil
}

// PackageSpecs renders deps as installer arguments ("name@version"),
// sorted by name. "latest" and empty versions install unpinned.
func PackageSpecs(deps map[string]string) []string {
	specs := make([]string, 0, len(deps))
	for _, name := range sortedKeys(deps) {
		v := deps[name]
		if v == "" || v == "latest" {
			specs = append(specs, name)
			continue
		}
		specs = append(specs, name+"@"+v)
	}
	return specs
}
