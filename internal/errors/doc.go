// Package errors provides structured, actionable errors for the registry.
//
// Every error carries a code (e.g. "E301") that maps to a category, a short
// message, and a longer explanation. Callers enrich errors with detail,
// suggestions, and the form field they concern:
//
//	err := errors.New("E303").
//	    WithField("component_slug").
//	    WithDetail("button is already used by another of your components").
//	    WithSuggestion("Pick a different slug")
//
// # Categories
//
//   - config: configuration file and flag problems (E100-E139)
//   - collaborator: failures of storage, upload, search backends (E200-E239)
//   - validation: user input that blocks submission (E300-E339)
//   - session: submission session lifecycle (E340-E359)
//   - cli: command line usage (E360-E379)
//
// Validation errors are recoverable by further edits; collaborator errors
// are retryable. No error is fatal to the process.
//
// The HTTP layer renders errors with FormatJSON and picks a status code via
// HTTPStatus; the CLI prints them with Format.
package errors
