// Package middleware provides HTTP middleware for the registry server.
//
// This package includes:
//   - OpenTelemetry tracing middleware
//   - Prometheus metrics middleware
//   - Structured access logging
//
// All middleware has the func(http.Handler) http.Handler shape used by chi:
//
//	r := chi.NewRouter()
//	r.Use(middleware.Tracing())
//	r.Use(middleware.NewMetrics(middleware.WithNamespace("uireg")).Handler)
//	r.Use(middleware.AccessLog(logger))
//
// # Routes
//
// Metric labels and span names use the chi route pattern
// ("/api/submissions/{id}") rather than the raw path, so labels stay
// bounded. Requests that match no route are labeled "unmatched".
//
// # Context Propagation
//
// The tracing middleware stores its span on the request context, so
// handlers and the stores they call inherit the trace:
//
//	func (h *handler) get(w http.ResponseWriter, r *http.Request) {
//	    row := db.QueryRowContext(r.Context(), "SELECT ...")
//	    ...
//	}
package middleware
