// Package preview assembles the virtual file set and dependency manifest
// that a sandboxed renderer needs to show a live component preview.
package preview

import (
	"sort"
	"strings"

	"github.com/vango-dev/uireg/internal/deps"
)

// Paths of the two virtual files of a bundle.
const (
	ComponentPath = "/Component.tsx"
	AppPath       = "/App.tsx"
)

// DefaultBaseline is the runtime every preview gets.
var DefaultBaseline = deps.Manifest{
	"react":     "^18.0.0",
	"react-dom": "^18.0.0",
}

// Files maps virtual file paths to source.
type Files map[string]string

// Input is everything assembly needs. It is normally filled from a single
// analysis pass over the code and demo.
type Input struct {
	Code string
	Demo string

	// PrimaryExports are the names the demo receives from ./Component.
	// PrimaryDefault is the one among them exported as default, if any;
	// the demo receives it through a default import.
	PrimaryExports []string
	PrimaryDefault string

	// DemoComponent is the component the demo renders; DemoDefault is its
	// default export, empty when it has none.
	DemoComponent string
	DemoDefault   string

	// Internal maps internal specifiers to registry slugs.
	Internal map[string]string

	// SelfImports is the number of self-imports still in Demo.
	SelfImports int

	PrimaryExternal deps.Manifest
	DemoExternal    deps.Manifest

	// Baseline overrides DefaultBaseline when non-nil.
	Baseline deps.Manifest
}

// Bundle is the assembled preview.
type Bundle struct {
	Files        Files         `json:"files"`
	Dependencies deps.Manifest `json:"dependencies"`
	Entry        string        `json:"entry"`
}

// Ready reports whether in satisfies the preconditions of Assemble.
func Ready(in Input) bool {
	if strings.TrimSpace(in.Code) == "" || strings.TrimSpace(in.Demo) == "" {
		return false
	}
	if in.SelfImports > 0 {
		return false
	}
	for _, slug := range in.Internal {
		if strings.TrimSpace(slug) == "" {
			return false
		}
	}
	return true
}

// Assemble builds the preview bundle, or returns false when in is not
// ready. It has no side effects.
func Assemble(in Input) (*Bundle, bool) {
	if !Ready(in) {
		return nil, false
	}

	baseline := in.Baseline
	if baseline == nil {
		baseline = DefaultBaseline
	}

	return &Bundle{
		Files: Files{
			ComponentPath: in.Code,
			AppPath:       appSource(in),
		},
		Dependencies: baseline.Merge(in.PrimaryExternal, in.DemoExternal),
		Entry:        AppPath,
	}, true
}

func appSource(in Input) string {
	var b strings.Builder
	if line := componentImport(in.PrimaryExports, in.PrimaryDefault); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(in.Demo)
	if in.DemoDefault == "" && in.DemoComponent != "" {
		if !strings.HasSuffix(in.Demo, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\nexport default ")
		b.WriteString(in.DemoComponent)
		b.WriteString("\n")
	}
	return b.String()
}

// componentImport is the statement that brings the primary's exports into
// the demo, e.g. `import Button, { buttonVariants } from "./Component"`.
func componentImport(exports []string, def string) string {
	var named []string
	for _, name := range exports {
		if name != def {
			named = append(named, name)
		}
	}

	var clause []string
	if def != "" {
		clause = append(clause, def)
	}
	if len(named) > 0 {
		clause = append(clause, "{ "+strings.Join(named, ", ")+" }")
	}
	if len(clause) == 0 {
		return ""
	}
	return "import " + strings.Join(clause, ", ") + " from \"./Component\""
}

// Paths returns the bundle's file paths in sorted order.
func (b *Bundle) Paths() []string {
	paths := make([]string, 0, len(b.Files))
	for p := range b.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
