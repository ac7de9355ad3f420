package search

import (
	"context"
	"strings"
)

// valuePrefix marks palette values that refer to components.
const valuePrefix = "component-"

// Result is one ranked component.
type Result struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	PreviewURL  string `json:"previewUrl,omitempty"`
	CodeURL     string `json:"codeUrl,omitempty"`
}

// Value is the palette value of r: "component-{userID}/{slug}".
func (r Result) Value() string {
	return valuePrefix + r.UserID + "/" + r.Slug
}

// Path is the page of r: "/{username}/{slug}".
func (r Result) Path() string {
	return "/" + r.Username + "/" + r.Slug
}

// ParseValue reverses Result.Value.
func ParseValue(value string) (userID, slug string, ok bool) {
	rest, found := strings.CutPrefix(value, valuePrefix)
	if !found {
		return "", "", false
	}
	userID, slug, found = strings.Cut(rest, "/")
	if !found || userID == "" || slug == "" || strings.Contains(slug, "/") {
		return "", "", false
	}
	return userID, slug, true
}

// Searcher runs a free-text component search. An empty query yields an
// empty result, not an error.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query string) ([]Result, error)

// Search implements Searcher.
func (f SearcherFunc) Search(ctx context.Context, query string) ([]Result, error) {
	return f(ctx, query)
}
