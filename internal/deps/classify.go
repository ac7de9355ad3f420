package deps

import (
	"path"
	"sort"
	"strings"

	"github.com/vango-dev/uireg/internal/analyzer"
)

// Classification partitions the imports of a component and its demo.
type Classification struct {
	// External merges both sources' packages; the demo's version wins.
	External Manifest

	// PrimaryExternal and DemoExternal are the per-source manifests.
	PrimaryExternal Manifest
	DemoExternal    Manifest

	// Internal lists internal specifiers, primary first, de-duplicated.
	Internal []string

	// SelfImports are demo imports of the component being demonstrated.
	SelfImports []analyzer.Import
}

// Classify partitions primaryImports and demoImports. Every import lands in
// exactly one of External (by package) or Internal (by specifier).
func Classify(primaryExports []string, primaryImports, demoImports []analyzer.Import) Classification {
	c := Classification{
		PrimaryExternal: manifestOf(primaryImports),
		DemoExternal:    manifestOf(demoImports),
	}
	c.External = c.PrimaryExternal.Merge(c.DemoExternal)

	seen := make(map[string]bool)
	for _, imports := range [][]analyzer.Import{primaryImports, demoImports} {
		for _, imp := range imports {
			if !imp.Internal || seen[imp.Specifier] {
				continue
			}
			seen[imp.Specifier] = true
			c.Internal = append(c.Internal, imp.Specifier)
		}
	}

	c.SelfImports = FindSelfImports(demoImports, primaryExports)
	return c
}

func manifestOf(imports []analyzer.Import) Manifest {
	m := make(Manifest)
	for _, imp := range imports {
		if imp.Internal || imp.Package == "" {
			continue
		}
		if _, ok := m[imp.Package]; !ok {
			m[imp.Package] = imp.Version
		}
	}
	return m
}

// FindSelfImports returns the demo imports that bring in one of the
// primary component's exports. A binding that equals an export always
// matches; for internal specifiers the last path segment, extension
// stripped, matches too ("./button" does not match "Button").
func FindSelfImports(demoImports []analyzer.Import, primaryExports []string) []analyzer.Import {
	if len(primaryExports) == 0 {
		return nil
	}
	exports := make(map[string]bool, len(primaryExports))
	for _, name := range primaryExports {
		exports[name] = true
	}

	var out []analyzer.Import
	for _, imp := range demoImports {
		if isSelfImport(imp, exports) {
			out = append(out, imp)
		}
	}
	return out
}

func isSelfImport(imp analyzer.Import, exports map[string]bool) bool {
	for _, name := range imp.Bindings() {
		if exports[name] {
			return true
		}
	}
	if !imp.Internal {
		return false
	}
	base := path.Base(imp.Specifier)
	base = strings.TrimSuffix(base, path.Ext(base))
	return exports[base]
}

// RemoveImports deletes each import statement, and the line break that
// follows it, from demo. Statements not present are ignored.
func RemoveImports(demo string, imports []analyzer.Import) string {
	for _, imp := range imports {
		if imp.Statement == "" {
			continue
		}
		idx := strings.Index(demo, imp.Statement)
		if idx < 0 {
			continue
		}
		end := idx + len(imp.Statement)
		if end < len(demo) && demo[end] == ';' {
			end++
		}
		if end < len(demo) && demo[end] == '\r' {
			end++
		}
		if end < len(demo) && demo[end] == '\n' {
			end++
		}
		demo = demo[:idx] + demo[end:]
	}
	return demo
}

// InternalMap builds the specifier to slug map for the current internal
// set. Slugs already entered in previous are kept; specifiers that are no
// longer imported, or that are self-imports, are dropped.
func InternalMap(c Classification, previous map[string]string) map[string]string {
	self := make(map[string]bool, len(c.SelfImports))
	for _, imp := range c.SelfImports {
		self[imp.Specifier] = true
	}

	out := make(map[string]string, len(c.Internal))
	for _, spec := range c.Internal {
		if self[spec] {
			continue
		}
		out[spec] = previous[spec]
	}
	return out
}

// MissingSlugs returns the specifiers of m whose slug is still blank, in
// sorted order.
func MissingSlugs(m map[string]string) []string {
	var missing []string
	for spec, slug := range m {
		if strings.TrimSpace(slug) == "" {
			missing = append(missing, spec)
		}
	}
	sort.Strings(missing)
	return missing
}
