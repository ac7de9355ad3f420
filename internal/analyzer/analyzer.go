package analyzer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
)

// Analyzer parses component source with tree-sitter.
type Analyzer struct {
	language *sitter.Language
	versions VersionResolver
	logger   *slog.Logger
	observe  func(time.Duration)
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithVersions sets the resolver used to pick versions for external imports.
func WithVersions(v VersionResolver) Option {
	return func(a *Analyzer) {
		a.versions = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithObserver registers a callback that receives each analysis duration.
func WithObserver(fn func(time.Duration)) Option {
	return func(a *Analyzer) {
		a.observe = fn
	}
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		language: tsx.GetLanguage(),
		versions: StaticVersions(nil),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "analyzer")
	return a
}

// Analyze parses source and returns everything the pipeline needs from it.
// Source that is blank or does not parse cleanly yields an empty Result.
func (a *Analyzer) Analyze(source string) Result {
	if strings.TrimSpace(source) == "" {
		return Result{}
	}

	start := time.Now()
	defer func() {
		if a.observe != nil {
			a.observe(time.Since(start))
		}
	}()

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(a.language)

	content := []byte(source)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		a.logger.Debug("parse failed", "error", err)
		return Result{}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		a.logger.Debug("source has syntax errors, skipping", "bytes", len(content))
		return Result{}
	}

	w := walker{content: content, versions: a.versions}
	w.walkProgram(root)
	return w.result
}

// ExportedNames returns the exported component names of source, in order.
func (a *Analyzer) ExportedNames(source string) []string {
	return a.Analyze(source).Exports
}

// Imports returns the static imports of source.
func (a *Analyzer) Imports(source string) []Import {
	return a.Analyze(source).Imports
}

// Dependencies returns the external packages imported by source with their
// versions.
func (a *Analyzer) Dependencies(source string) map[string]string {
	return a.Analyze(source).Dependencies()
}

// DemoComponentName returns the component a demo renders.
func (a *Analyzer) DemoComponentName(demo string) (string, bool) {
	return a.Analyze(demo).EntryComponent()
}

// walker accumulates a Result while visiting top-level statements.
type walker struct {
	content  []byte
	versions VersionResolver
	result   Result
	seen     map[string]bool
}

func (w *walker) text(n *sitter.Node) string {
	return n.Content(w.content)
}

func (w *walker) addExport(name string) {
	if name == "" {
		return
	}
	if w.seen == nil {
		w.seen = make(map[string]bool)
	}
	if w.seen[name] {
		return
	}
	w.seen[name] = true
	w.result.Exports = append(w.result.Exports, name)
}

// walkProgram visits the statements of the program node. Imports and
// exports are only legal at the top level, so there is no recursion.
func (w *walker) walkProgram(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "import_statement":
			if imp, ok := w.parseImport(child); ok {
				w.result.Imports = append(w.result.Imports, imp)
			}
		case "export_statement":
			w.parseExport(child)
		}
	}
}

func (w *walker) parseImport(node *sitter.Node) (Import, bool) {
	source := node.ChildByFieldName("source")
	if source == nil {
		return Import{}, false
	}

	imp := Import{
		Statement: w.text(node),
		Specifier: unquote(w.text(source)),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type":
			// import type { X } from "y" has no runtime effect.
			return Import{}, false
		case "import_clause":
			w.parseImportClause(child, &imp)
		}
	}

	imp.Internal = IsInternalSpecifier(imp.Specifier)
	if !imp.Internal {
		// A bare specifier that is not a valid package name ("@scope")
		// is kept as its own package so it still shows up as external.
		imp.Package = PackageName(imp.Specifier)
		if imp.Package == "" {
			imp.Package = imp.Specifier
		}
		imp.Version = LatestVersion
		if w.versions != nil {
			if v, ok := w.versions.Version(imp.Package); ok {
				imp.Version = v
			}
		}
	}
	return imp, true
}

func (w *walker) parseImportClause(clause *sitter.Node, imp *Import) {
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		child := clause.NamedChild(i)
		switch child.Type() {
		case "identifier":
			imp.Default = w.text(child)
		case "namespace_import":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if id := child.NamedChild(j); id.Type() == "identifier" {
					imp.Namespace = w.text(id)
				}
			}
		case "named_imports":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				spec := child.NamedChild(j)
				if spec.Type() != "import_specifier" || typeOnly(spec) {
					continue
				}
				if name := spec.ChildByFieldName("name"); name != nil {
					imp.Named = append(imp.Named, w.text(name))
				}
			}
		}
	}
}

func (w *walker) parseExport(node *sitter.Node) {
	isDefault := false
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "default" {
			isDefault = true
			break
		}
	}

	// Re-exports name code defined elsewhere.
	if node.ChildByFieldName("source") != nil {
		return
	}

	if decl := node.ChildByFieldName("declaration"); decl != nil {
		for _, name := range w.declarationNames(decl) {
			w.addExport(name)
			if isDefault && w.result.DefaultExport == "" {
				w.result.DefaultExport = name
			}
		}
		return
	}

	if value := node.ChildByFieldName("value"); value != nil && isDefault {
		name := ""
		switch value.Type() {
		case "identifier":
			name = w.text(value)
		case "function", "function_expression", "class":
			if id := value.ChildByFieldName("name"); id != nil {
				name = w.text(id)
			}
		}
		if name != "" {
			w.addExport(name)
			w.result.DefaultExport = name
		}
		return
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		clause := node.NamedChild(i)
		if clause.Type() != "export_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			spec := clause.NamedChild(j)
			if spec.Type() != "export_specifier" {
				continue
			}
			nameNode := spec.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := w.text(nameNode)
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				if a := w.text(alias); a == "default" {
					if w.result.DefaultExport == "" {
						w.result.DefaultExport = name
					}
				} else {
					name = a
				}
			}
			w.addExport(name)
		}
	}
}

// declarationNames returns the value names a declaration introduces.
// Types and interfaces are not components and are skipped.
func (w *walker) declarationNames(decl *sitter.Node) []string {
	switch decl.Type() {
	case "function_declaration", "generator_function_declaration",
		"class_declaration", "abstract_class_declaration":
		if name := decl.ChildByFieldName("name"); name != nil {
			return []string{w.text(name)}
		}
	case "lexical_declaration", "variable_declaration":
		var names []string
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			child := decl.NamedChild(i)
			if child.Type() != "variable_declarator" {
				continue
			}
			name := child.ChildByFieldName("name")
			if name != nil && name.Type() == "identifier" {
				names = append(names, w.text(name))
			}
		}
		return names
	}
	return nil
}

// typeOnly reports whether an import specifier is marked "type" or
// "typeof", as in import { type Props, Button } from "./button".
func typeOnly(spec *sitter.Node) bool {
	for i := 0; i < int(spec.ChildCount()); i++ {
		if t := spec.Child(i).Type(); t == "type" || t == "typeof" {
			return true
		}
	}
	return false
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'' || first == '`') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}
