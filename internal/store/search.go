package store

import (
	"context"
	"strings"
	"unicode"

	"github.com/vango-dev/uireg/internal/search"
)

var _ search.Searcher = (*Store)(nil)

// Search ranks public components against query with bm25. Every word of
// the query must prefix-match a word of the name, description, slug or tags.
func (s *Store) Search(ctx context.Context, query string) ([]search.Result, error) {
	match := ftsQuery(query)
	if match == "" {
		return []search.Result{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.component_slug, c.name, c.description, c.user_id,
		       u.username, c.preview_url, c.code_url
		FROM components_fts
		JOIN components c ON c.id = components_fts.component_id
		JOIN users u ON u.id = c.user_id
		WHERE components_fts MATCH ? AND c.is_public = 1
		ORDER BY bm25(components_fts)
		LIMIT ?`, match, s.searchLimit)
	if err != nil {
		return nil, dbError("search", err)
	}
	defer rows.Close()

	results := []search.Result{}
	for rows.Next() {
		var r search.Result
		if err := rows.Scan(&r.ID, &r.Slug, &r.Name, &r.Description, &r.UserID,
			&r.Username, &r.PreviewURL, &r.CodeURL); err != nil {
			return nil, dbError("scan search result", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("search", err)
	}
	return results, nil
}

// ftsQuery turns free text into an FTS5 query of quoted prefix terms, so
// user input can never inject FTS syntax.
func ftsQuery(query string) string {
	words := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, `"`+strings.ToLower(w)+`"*`)
	}
	return strings.Join(terms, " ")
}
