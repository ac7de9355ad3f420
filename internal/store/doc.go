// Package store persists users, components and tags in SQLite.
//
// The schema is versioned with golang-migrate; migrations are embedded and
// applied by Open unless WithoutMigrations is given. Component search uses
// an FTS5 table kept in step with inserts and tag changes.
package store
