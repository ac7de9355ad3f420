package deps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vango-dev/uireg/internal/analyzer"
	"github.com/vango-dev/uireg/internal/errors"
)

// DefaultRegistry is the public npm registry.
const DefaultRegistry = "https://registry.npmjs.org"

const (
	defaultVersionTTL = 30 * time.Minute
	pinConcurrency    = 4
	maxDistTagsBody   = 64 << 10
)

// NPMResolver resolves "latest" to a concrete caret range using the npm
// registry's dist-tags. Declared versions always win. Lookups are cached
// and concurrent lookups of one package share a single request.
//
// NPMResolver also satisfies analyzer.VersionResolver, answering from the
// declared table and the cache only, so analysis never touches the network.
type NPMResolver struct {
	registry string
	client   *http.Client
	declared analyzer.StaticVersions
	cache    *gocache.Cache
	group    singleflight.Group
	logger   *slog.Logger
}

// NPMOption configures an NPMResolver.
type NPMOption func(*NPMResolver)

// WithRegistry sets the registry base URL.
func WithRegistry(u string) NPMOption {
	return func(r *NPMResolver) {
		if u != "" {
			r.registry = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client used for registry lookups.
func WithHTTPClient(c *http.Client) NPMOption {
	return func(r *NPMResolver) {
		r.client = c
	}
}

// WithDeclared sets the declared version table.
func WithDeclared(v map[string]string) NPMOption {
	return func(r *NPMResolver) {
		r.declared = analyzer.StaticVersions(v)
	}
}

// WithVersionTTL sets how long looked-up versions are cached.
func WithVersionTTL(ttl time.Duration) NPMOption {
	return func(r *NPMResolver) {
		r.cache = gocache.New(ttl, 2*ttl)
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l *slog.Logger) NPMOption {
	return func(r *NPMResolver) {
		r.logger = l
	}
}

// NewNPMResolver creates a resolver.
func NewNPMResolver(opts ...NPMOption) *NPMResolver {
	r := &NPMResolver{
		registry: DefaultRegistry,
		client:   &http.Client{Timeout: 5 * time.Second},
		cache:    gocache.New(defaultVersionTTL, 2*defaultVersionTTL),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "npm")
	return r
}

// Version implements analyzer.VersionResolver without network access.
func (r *NPMResolver) Version(pkg string) (string, bool) {
	if v, ok := r.declared.Version(pkg); ok {
		return v, true
	}
	if v, ok := r.cache.Get(pkg); ok {
		return v.(string), true
	}
	return "", false
}

// Latest returns "^<dist-tags.latest>" for pkg.
func (r *NPMResolver) Latest(ctx context.Context, pkg string) (string, error) {
	if v, ok := r.cache.Get(pkg); ok {
		return v.(string), nil
	}

	v, err, _ := r.group.Do(pkg, func() (any, error) {
		version, err := r.fetchLatest(ctx, pkg)
		if err != nil {
			return "", err
		}
		constraint := "^" + version
		r.cache.SetDefault(pkg, constraint)
		return constraint, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *NPMResolver) fetchLatest(ctx context.Context, pkg string) (string, error) {
	endpoint := r.registry + "/-/package/" + url.PathEscape(pkg) + "/dist-tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("npm registry returned %s for %s", resp.Status, pkg)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDistTagsBody))
	if err != nil {
		return "", err
	}

	var tags map[string]any
	if err := json.Unmarshal(body, &tags); err != nil {
		return "", errors.New("E210").
			WithDetailf("dist-tags for %s: %v", pkg, err)
	}
	latest, ok := tags["latest"].(string)
	if !ok || latest == "" {
		return "", errors.New("E210").
			WithDetailf("dist-tags for %s has no string \"latest\"", pkg)
	}
	return latest, nil
}

// Pin returns a copy of m with every unpinned package resolved. Packages
// that cannot be resolved keep their original value; Pin never fails.
func (r *NPMResolver) Pin(ctx context.Context, m Manifest) Manifest {
	out := m.Clone()
	unpinned := out.Unpinned()
	if len(unpinned) == 0 {
		return out
	}

	resolved := make([]string, len(unpinned))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pinConcurrency)
	for i, pkg := range unpinned {
		g.Go(func() error {
			if v, ok := r.declared.Version(pkg); ok {
				resolved[i] = v
				return nil
			}
			v, err := r.Latest(gctx, pkg)
			if err != nil {
				r.logger.Warn("version lookup failed", "package", pkg, "error", err)
				return nil
			}
			resolved[i] = v
			return nil
		})
	}
	_ = g.Wait()

	for i, pkg := range unpinned {
		if resolved[i] != "" {
			out[pkg] = resolved[i]
		}
	}
	return out
}
