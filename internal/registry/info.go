package registry

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/vango-dev/uireg/internal/store"
)

// Dependency is an npm package a component needs.
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	NPMURL  string `json:"npmUrl"`
	// Copy is the single "name": "version" line.
	Copy string `json:"copy"`
}

// Author is the component owner as shown on the page.
type Author struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// License describes a component license.
type License struct {
	SPDX        string `json:"spdx"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RegistryDependency is another registry component this one builds on.
type RegistryDependency struct {
	Ref        string `json:"ref"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	Slug       string `json:"slug"`
	InstallURL string `json:"installUrl"`
	ViewPath   string `json:"viewPath"`
}

// PageInfo is everything the component page shows besides the preview.
type PageInfo struct {
	Component            *store.Component     `json:"component"`
	Author               Author               `json:"author"`
	Dependencies         []Dependency         `json:"dependencies"`
	CopyAll              string               `json:"copyAll"`
	RegistryDependencies []RegistryDependency `json:"registryDependencies"`
	// Unresolved lists registry references that no longer exist.
	Unresolved []string `json:"unresolved,omitempty"`
	License    *License `json:"license,omitempty"`
	InstallURL string   `json:"installUrl"`
}

var licenses = map[string]License{
	"MIT":          {SPDX: "MIT", Name: "MIT License", Description: "Permissive. Keep the copyright notice."},
	"Apache-2.0":   {SPDX: "Apache-2.0", Name: "Apache License 2.0", Description: "Permissive with an express patent grant."},
	"BSD-3-Clause": {SPDX: "BSD-3-Clause", Name: "BSD 3-Clause License", Description: "Permissive. No endorsement using the authors' names."},
	"ISC":          {SPDX: "ISC", Name: "ISC License", Description: "Permissive, functionally equivalent to MIT."},
	"MPL-2.0":      {SPDX: "MPL-2.0", Name: "Mozilla Public License 2.0", Description: "File-level copyleft."},
	"GPL-3.0":      {SPDX: "GPL-3.0", Name: "GNU General Public License v3.0", Description: "Strong copyleft."},
	"Unlicense":    {SPDX: "Unlicense", Name: "The Unlicense", Description: "Public domain dedication."},
}

// LookupLicense returns the known license for an SPDX id. Unknown ids are
// returned with the id as their name.
func LookupLicense(spdx string) *License {
	if spdx == "" {
		return nil
	}
	for id, l := range licenses {
		if strings.EqualFold(id, spdx) {
			l := l
			return &l
		}
	}
	return &License{SPDX: spdx, Name: spdx}
}

// NPMURL is the npm page of a package.
func NPMURL(name string) string {
	return "https://www.npmjs.com/package/" + name
}

// FormatDependency renders one dependency as it appears in package.json.
func FormatDependency(name, version string) string {
	return `"` + name + `": "` + version + `"`
}

// FormatDependencies renders deps as a package.json dependencies block,
// sorted by name.
func FormatDependencies(deps map[string]string) string {
	if len(deps) == 0 {
		return "{}"
	}
	lines := make([]string, 0, len(deps))
	for _, name := range sortedKeys(deps) {
		lines = append(lines, FormatDependency(name, deps[name]))
	}
	return "{\n" + strings.Join(lines, ",\n") + "\n}"
}

// Dependencies lists deps sorted by name.
func Dependencies(deps map[string]string) []Dependency {
	out := make([]Dependency, 0, len(deps))
	for _, name := range sortedKeys(deps) {
		out = append(out, Dependency{
			Name:    name,
			Version: deps[name],
			NPMURL:  NPMURL(name),
			Copy:    FormatDependency(name, deps[name]),
		})
	}
	return out
}

// Info builds the page info of c.
func (r *Registry) Info(ctx context.Context, c *store.Component) (*PageInfo, error) {
	info := &PageInfo{
		Component:            c,
		Author:               Author{Username: c.Username, Name: c.Username},
		Dependencies:         Dependencies(c.Dependencies),
		CopyAll:              FormatDependencies(c.Dependencies),
		RegistryDependencies: []RegistryDependency{},
		License:              LookupLicense(c.License),
		InstallURL:           r.InstallURL(c.Ref()),
	}

	user, err := r.store.UserByUsername(ctx, c.Username)
	switch {
	case err == nil:
		if user.Name != "" {
			info.Author.Name = user.Name
		}
		info.Author.ImageURL = user.ImageURL
	case !stderrors.Is(err, store.ErrNotFound):
		return nil, err
	}

	if len(c.RegistryDependencies) == 0 {
		return info, nil
	}
	found, err := r.store.ComponentsByRefs(ctx, c.RegistryDependencies)
	if err != nil {
		return nil, err
	}
	byRef := make(map[string]store.Component, len(found))
	for _, dep := range found {
		byRef[dep.Ref()] = dep
	}
	for _, ref := range c.RegistryDependencies {
		dep, ok := byRef[ref]
		if !ok {
			info.Unresolved = append(info.Unresolved, ref)
			continue
		}
		info.RegistryDependencies = append(info.RegistryDependencies, RegistryDependency{
			Ref:        ref,
			Name:       dep.Name,
			Username:   dep.Username,
			Slug:       dep.Slug,
			InstallURL: r.InstallURL(ref),
			ViewPath:   "/" + ref,
		})
	}
	if len(info.Unresolved) > 0 {
		r.logger.Warn("unresolved registry dependencies",
			"component", c.Ref(), "refs", info.Unresolved)
	}
	return info, nil
}
