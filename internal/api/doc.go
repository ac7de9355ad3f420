// Package api is the HTTP surface of the registry.
//
// Submission sessions are driven by small PUT/POST requests, each of which
// answers with the new snapshot of the session. Clients that want pushed
// updates (slug availability settling, a submit finishing) open the
// websocket at /api/submissions/{id}/ws, which sends the current snapshot
// and then every later one as a JSON text message.
//
// Identity comes from an upstream auth proxy through the X-User-Id and
// X-Username headers. Errors are JSON objects with a code:
//
//	{"code":"E303","category":"validation","message":"Slug not available","field":"component_slug"}
package api
