package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SlugAvailable reports whether userID has no component with slug.
func (s *Store) SlugAvailable(ctx context.Context, userID, slug string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM components WHERE user_id = ? AND component_slug = ?`,
		userID, slug).Scan(&n)
	if err != nil {
		return false, dbError("check slug", err)
	}
	return n == 0, nil
}

// InsertComponent stores a new component and indexes it for search.
func (s *Store) InsertComponent(ctx context.Context, nc NewComponent) (*Component, error) {
	if nc.Registry == "" {
		nc.Registry = "ui"
	}
	id := uuid.NewString()
	now := time.Now().UTC()

	names, _ := json.Marshal(nonNilSlice(nc.ComponentNames))
	dependencies, _ := json.Marshal(nonNilMap(nc.Dependencies))
	demoDependencies, _ := json.Marshal(nonNilMap(nc.DemoDependencies))
	internal, _ := json.Marshal(nonNilMap(nc.InternalDependencies))
	registryDeps, _ := json.Marshal(nonNilSlice(nc.RegistryDependencies))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbError("begin insert", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO components (
			id, user_id, name, component_slug, component_names, demo_component_name,
			code_url, demo_code_url, description, install_url, dependencies,
			demo_dependencies, internal_dependencies, direct_registry_dependencies,
			is_public, preview_url, license, website_url, registry, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nc.UserID, nc.Name, nc.Slug, string(names), nc.DemoComponentName,
		nc.CodeURL, nc.DemoCodeURL, nc.Description, nc.InstallURL, string(dependencies),
		string(demoDependencies), string(internal), string(registryDeps),
		nc.Public, nc.PreviewURL, nc.License, nc.WebsiteURL, nc.Registry, now)
	if isUniqueViolation(err) {
		return nil, ErrSlugTaken
	}
	if err != nil {
		return nil, dbError("insert component", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO components_fts (component_id, name, description, slug, tags) VALUES (?, ?, ?, ?, '')`,
		id, nc.Name, nc.Description, nc.Slug)
	if err != nil {
		return nil, dbError("index component", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, dbError("commit insert", err)
	}
	return s.componentWhere(ctx, "c.id = ?", id)
}

// ComponentByID loads a component with its tags.
func (s *Store) ComponentByID(ctx context.Context, id string) (*Component, error) {
	return s.componentWhere(ctx, "c.id = ?", id)
}

// ComponentBySlug loads the component username/slug with its tags.
func (s *Store) ComponentBySlug(ctx context.Context, username, slug string) (*Component, error) {
	return s.componentWhere(ctx, "u.username = ? AND c.component_slug = ?", username, slug)
}

// ComponentsByRefs loads the components named by "username/slug" refs.
// Unknown or malformed refs are skipped; results follow refs order.
func (s *Store) ComponentsByRefs(ctx context.Context, refs []string) ([]Component, error) {
	var out []Component
	seen := make(map[string]bool)
	for _, ref := range refs {
		username, slug, ok := strings.Cut(ref, "/")
		if !ok || username == "" || slug == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		c, err := s.ComponentBySlug(ctx, username, slug)
		if stderrors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

const componentColumns = `
	c.id, c.user_id, u.username, c.name, c.component_slug, c.component_names,
	c.demo_component_name, c.code_url, c.demo_code_url, c.description, c.install_url,
	c.dependencies, c.demo_dependencies, c.internal_dependencies,
	c.direct_registry_dependencies, c.is_public, c.preview_url, c.license,
	c.website_url, c.registry, c.created_at`

func (s *Store) componentWhere(ctx context.Context, where string, args ...any) (*Component, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+componentColumns+` FROM components c JOIN users u ON u.id = c.user_id WHERE `+where,
		args...)

	var (
		c                                                      Component
		names, dependencies, demoDeps, internal, registryDeps string
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.Username, &c.Name, &c.Slug, &names,
		&c.DemoComponentName, &c.CodeURL, &c.DemoCodeURL, &c.Description, &c.InstallURL,
		&dependencies, &demoDeps, &internal,
		&registryDeps, &c.Public, &c.PreviewURL, &c.License,
		&c.WebsiteURL, &c.Registry, &c.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dbError("load component", err)
	}

	for _, f := range []struct {
		raw string
		dst any
	}{
		{names, &c.ComponentNames},
		{dependencies, &c.Dependencies},
		{demoDeps, &c.DemoDependencies},
		{internal, &c.InternalDependencies},
		{registryDeps, &c.RegistryDependencies},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, dbError("decode component", err)
		}
	}

	tags, err := s.componentTags(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Tags = tags
	return &c, nil
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
