package analyzer

import "strings"

// LatestVersion is the version assigned to external packages that have no
// declared version.
const LatestVersion = "latest"

// Import is one static import statement.
type Import struct {
	// Statement is the import statement exactly as written in the source.
	Statement string `json:"statement"`

	// Specifier is the module specifier exactly as written, without quotes.
	Specifier string `json:"specifier"`

	// Package is the npm package name for external imports; empty for
	// internal ones.
	Package string `json:"package,omitempty"`

	// Default is the default import binding, if any.
	Default string `json:"default,omitempty"`

	// Named lists the imported names (not their local aliases).
	Named []string `json:"named,omitempty"`

	// Namespace is the binding of "import * as ns", if any.
	Namespace string `json:"namespace,omitempty"`

	// Internal reports whether the specifier refers to registry code rather
	// than a published package.
	Internal bool `json:"internal"`

	// Version is the resolved version constraint for external imports.
	Version string `json:"version,omitempty"`
}

// Bindings returns every name the import statement brings in, default first.
func (imp Import) Bindings() []string {
	var names []string
	if imp.Default != "" {
		names = append(names, imp.Default)
	}
	names = append(names, imp.Named...)
	if imp.Namespace != "" {
		names = append(names, imp.Namespace)
	}
	return names
}

// Result is the outcome of analysing one source text.
type Result struct {
	// Exports are the exported component names in source order.
	Exports []string `json:"exports"`

	// DefaultExport is the name of the default export, if it has one.
	DefaultExport string `json:"defaultExport,omitempty"`

	// Imports are the static imports in source order.
	Imports []Import `json:"imports"`
}

// Empty reports whether analysis found nothing.
func (r Result) Empty() bool {
	return len(r.Exports) == 0 && len(r.Imports) == 0
}

// Dependencies returns the external packages and their versions.
func (r Result) Dependencies() map[string]string {
	deps := make(map[string]string)
	for _, imp := range r.Imports {
		if imp.Internal || imp.Package == "" {
			continue
		}
		if _, ok := deps[imp.Package]; !ok {
			deps[imp.Package] = imp.Version
		}
	}
	return deps
}

// InternalSpecifiers returns the internal import specifiers, de-duplicated,
// in source order.
func (r Result) InternalSpecifiers() []string {
	seen := make(map[string]bool)
	var specs []string
	for _, imp := range r.Imports {
		if !imp.Internal || seen[imp.Specifier] {
			continue
		}
		seen[imp.Specifier] = true
		specs = append(specs, imp.Specifier)
	}
	return specs
}

// EntryComponent returns the component a demo renders: its default export,
// else its first export.
func (r Result) EntryComponent() (string, bool) {
	if r.DefaultExport != "" {
		return r.DefaultExport, true
	}
	if len(r.Exports) > 0 {
		return r.Exports[0], true
	}
	return "", false
}

// IsInternalSpecifier reports whether a module specifier is a path or an
// "@/" alias rather than a package name.
func IsInternalSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, ".") ||
		strings.HasPrefix(specifier, "/") ||
		strings.HasPrefix(specifier, "@/")
}

// PackageName returns the npm package name of an external specifier:
// "@scope/name/sub" -> "@scope/name", "name/sub" -> "name".
func PackageName(specifier string) string {
	if specifier == "" || IsInternalSpecifier(specifier) {
		return ""
	}
	parts := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") {
		if len(parts) < 2 || parts[1] == "" {
			return ""
		}
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// VersionResolver supplies version constraints for external packages.
type VersionResolver interface {
	// Version returns the declared version for pkg, if known.
	Version(pkg string) (string, bool)
}

// StaticVersions is a VersionResolver backed by a declared table.
type StaticVersions map[string]string

// Version implements VersionResolver.
func (s StaticVersions) Version(pkg string) (string, bool) {
	v, ok := s[pkg]
	return v, ok && v != ""
}
