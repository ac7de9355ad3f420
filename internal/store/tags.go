package store

import (
	"context"
	"strings"

	"github.com/vango-dev/uireg/internal/slug"
)

// AddTags attaches tags to a component, creating missing tags by slug.
// Names that slugify to nothing are skipped.
func (s *Store) AddTags(ctx context.Context, componentID string, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError("begin tags", err)
	}
	defer tx.Rollback()

	for _, name := range names {
		name = strings.TrimSpace(name)
		tagSlug := slug.Make(name)
		if tagSlug == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tags (name, slug) VALUES (?, ?) ON CONFLICT(slug) DO NOTHING`,
			name, tagSlug); err != nil {
			return dbError("insert tag", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO component_tags (component_id, tag_id)
			SELECT ?, id FROM tags WHERE slug = ?`,
			componentID, tagSlug); err != nil {
			return dbError("attach tag", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE components_fts SET tags = COALESCE((
			SELECT group_concat(t.name, ' ')
			FROM component_tags ct JOIN tags t ON t.id = ct.tag_id
			WHERE ct.component_id = ?), '')
		WHERE component_id = ?`,
		componentID, componentID); err != nil {
		return dbError("index tags", err)
	}

	if err := tx.Commit(); err != nil {
		return dbError("commit tags", err)
	}
	return nil
}

// ListTags returns every tag ordered by name.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug FROM tags ORDER BY name`)
	if err != nil {
		return nil, dbError("list tags", err)
	}
	defer rows.Close()
	return scanTags(rows)
}

func (s *Store) componentTags(ctx context.Context, componentID string) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.slug
		FROM component_tags ct JOIN tags t ON t.id = ct.tag_id
		WHERE ct.component_id = ?
		ORDER BY t.name`, componentID)
	if err != nil {
		return nil, dbError("load tags", err)
	}
	defer rows.Close()
	return scanTags(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTags(rows rowScanner) ([]Tag, error) {
	tags := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, dbError("scan tag", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("scan tags", err)
	}
	return tags, nil
}
