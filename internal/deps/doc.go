// Package deps classifies the imports of a component and its demo.
//
// Classification is a pure function of the analysed sources: external
// imports become a package manifest, internal imports become registry
// references that the author maps to slugs, and demo imports of the
// component being demonstrated are reported as self-imports to strip.
//
// Version pinning against the npm registry lives here too, behind
// NPMResolver, and only runs at submit time.
package deps
