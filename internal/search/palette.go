package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultCacheTTL is how long component results are cached per query.
const DefaultCacheTTL = 30 * time.Second

// Response is what the palette shows for one query.
type Response struct {
	Query      string    `json:"query"`
	Sections   []Section `json:"sections"`
	Components []Result  `json:"components"`

	// Error is set when the component search failed; sections are still
	// returned.
	Error string `json:"error,omitempty"`
}

// Palette combines navigation sections with component search results.
type Palette struct {
	searcher Searcher
	sections []Section
	limit    int
	cache    *gocache.Cache
	logger   *slog.Logger
	onLookup func(hit bool)
}

// PaletteOption configures a Palette.
type PaletteOption func(*Palette)

// WithCacheTTL sets the result cache lifetime; zero disables caching.
func WithCacheTTL(ttl time.Duration) PaletteOption {
	return func(p *Palette) {
		if ttl <= 0 {
			p.cache = nil
			return
		}
		p.cache = gocache.New(ttl, 2*ttl)
	}
}

// WithLimit caps the number of component results.
func WithLimit(n int) PaletteOption {
	return func(p *Palette) {
		p.limit = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PaletteOption {
	return func(p *Palette) {
		p.logger = l
	}
}

// WithLookupObserver registers a callback told whether each component
// lookup was served from cache.
func WithLookupObserver(fn func(hit bool)) PaletteOption {
	return func(p *Palette) {
		p.onLookup = fn
	}
}

// NewPalette creates a Palette.
func NewPalette(searcher Searcher, sections []Section, opts ...PaletteOption) *Palette {
	p := &Palette{
		searcher: searcher,
		sections: sections,
		cache:    gocache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "palette")
	return p
}

// Query answers one palette query.
func (p *Palette) Query(ctx context.Context, query string) Response {
	query = strings.TrimSpace(query)
	resp := Response{
		Query:      query,
		Sections:   FilterSections(p.sections, query),
		Components: []Result{},
	}
	if query == "" {
		return resp
	}

	results, err := p.components(ctx, query)
	if err != nil {
		p.logger.Warn("component search failed", "query", query, "error", err)
		resp.Error = err.Error()
		return resp
	}
	if p.limit > 0 && len(results) > p.limit {
		results = results[:p.limit]
	}
	resp.Components = results
	return resp
}

func (p *Palette) components(ctx context.Context, query string) ([]Result, error) {
	key := strings.ToLower(query)
	if p.cache != nil {
		if v, ok := p.cache.Get(key); ok {
			p.observe(true)
			return v.([]Result), nil
		}
	}
	p.observe(false)

	results, err := p.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		p.cache.SetDefault(key, results)
	}
	return results, nil
}

func (p *Palette) observe(hit bool) {
	if p.onLookup != nil {
		p.onLookup(hit)
	}
}

// Find returns the cached result a palette value points at, searching
// with query when it is not cached.
func (p *Palette) Find(ctx context.Context, query, value string) (Result, bool) {
	userID, slug, ok := ParseValue(value)
	if !ok {
		return Result{}, false
	}
	results, err := p.components(ctx, strings.TrimSpace(query))
	if err != nil {
		return Result{}, false
	}
	for _, r := range results {
		if r.UserID == userID && r.Slug == slug {
			return r, true
		}
	}
	return Result{}, false
}
