// Package submission runs the multi-step "add a component" form.
//
// A Submission owns one form session. Every edit re-runs a single pure
// derivation (Derive) over the code, the demo, their analyses and the
// entered internal slugs, so the snapshot a client sees is always
// consistent:
//
//	EnteringCode → EnteringDemo → ResolvingImports → ResolvingInternalDeps
//	    → EnteringDetails → Submitting → Succeeded | Failed
//
// The only asynchronous work is at the collaborator boundaries: the
// debounced slug check, uploads, version pinning and the record insert.
// Results of superseded work are dropped, and Reset or Close abandon
// in-flight work without touching session state.
//
// Sessions live in a Manager, which expires idle sessions and limits how
// many one user may hold open.
package submission
