package deps

import (
	"sort"

	"github.com/vango-dev/uireg/internal/analyzer"
)

// Manifest maps npm package names to version constraints.
type Manifest map[string]string

// Clone returns a copy of m. A nil manifest clones to an empty one.
func (m Manifest) Clone() Manifest {
	out := make(Manifest, len(m))
	for pkg, v := range m {
		out[pkg] = v
	}
	return out
}

// Merge returns a new manifest holding m overlaid with each of others in
// turn. Later manifests win on conflicts, but only with a declared
// version: empty and "latest" entries never overwrite an existing one.
func (m Manifest) Merge(others ...Manifest) Manifest {
	out := m.Clone()
	for _, o := range others {
		for pkg, v := range o {
			if _, ok := out[pkg]; ok && !declared(v) {
				continue
			}
			out[pkg] = v
		}
	}
	return out
}

func declared(v string) bool {
	return v != "" && v != analyzer.LatestVersion
}

// Packages returns the package names in sorted order.
func (m Manifest) Packages() []string {
	pkgs := make([]string, 0, len(m))
	for pkg := range m {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}

// Unpinned returns the packages whose version is empty or "latest".
func (m Manifest) Unpinned() []string {
	var pkgs []string
	for _, pkg := range m.Packages() {
		if !declared(m[pkg]) {
			pkgs = append(pkgs, pkg)
		}
	}
	return pkgs
}
