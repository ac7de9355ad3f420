// Package analyzer extracts component metadata from TSX/JSX source text.
//
// The analyzer is the first stage of the submission pipeline. It parses the
// pasted component code and demo code with tree-sitter's TSX grammar and
// recovers:
//
//   - the exported component names, in source order
//   - the static import statements, split into internal references
//     (specifiers starting with "." or "@/") and external npm packages
//   - the demo's entry component name
//
// Analysis runs on every edit, so half-typed source is the normal case.
// Source that does not parse cleanly yields an empty Result rather than an
// error; callers treat an empty result as "no data yet".
//
// An Analyzer is safe for concurrent use.
package analyzer
