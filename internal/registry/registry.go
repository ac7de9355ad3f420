package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/vango-dev/uireg/internal/errors"
	"github.com/vango-dev/uireg/internal/store"
)

// maxFileSize bounds a component file fetched for an install item.
const maxFileSize = 1 << 20

// Store is the component lookup a Registry needs.
type Store interface {
	ComponentBySlug(ctx context.Context, username, slug string) (*store.Component, error)
	ComponentsByRefs(ctx context.Context, refs []string) ([]store.Component, error)
	UserByUsername(ctx context.Context, username string) (*store.User, error)
}

// BlobReader reads files this service stored itself.
type BlobReader interface {
	KeyFromURL(u string) (string, bool)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Registry serves component pages and install items.
type Registry struct {
	store     Store
	blobs     BlobReader
	client    *http.Client
	publicURL string
	logger    *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithBlobs reads component files stored under our own URLs directly.
func WithBlobs(b BlobReader) Option {
	return func(r *Registry) {
		r.blobs = b
	}
}

// WithHTTPClient sets the client used for files stored elsewhere.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Registry) {
		if c != nil {
			r.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Registry. publicURL prefixes install URLs.
func New(s Store, publicURL string, opts ...Option) *Registry {
	r := &Registry{
		store: s,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "registry")
	return r
}

// Component loads a component by owner and slug.
func (r *Registry) Component(ctx context.Context, username, slug string) (*store.Component, error) {
	c, err := r.store.ComponentBySlug(ctx, username, slug)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New("E346").WithDetailf("%s/%s does not exist", username, slug)
	}
	return c, err
}

// InstallURL is where the install item of ref ("username/slug") is served.
func (r *Registry) InstallURL(ref string) string {
	return r.publicURL + "/api/r/" + ref
}

// InstallOrder returns the registry components c depends on, directly or
// through other components, dependencies before dependents. References
// that do not resolve are skipped; cycles are cut.
func (r *Registry) InstallOrder(ctx context.Context, c *store.Component) ([]store.Component, error) {
	loaded := map[string]*store.Component{c.Ref(): c}
	pending := append([]string(nil), c.RegistryDependencies...)

	// Load breadth-first so each level is one query.
	for len(pending) > 0 {
		var batch []string
		for _, ref := range pending {
			if _, ok := loaded[ref]; !ok {
				batch = append(batch, ref)
				loaded[ref] = nil
			}
		}
		pending = nil
		if len(batch) == 0 {
			break
		}
		found, err := r.store.ComponentsByRefs(ctx, batch)
		if err != nil {
			return nil, err
		}
		for i := range found {
			dep := &found[i]
			loaded[dep.Ref()] = dep
			pending = append(pending, dep.RegistryDependencies...)
		}
	}

	resolved := make(map[string]bool)
	visiting := make(map[string]bool)
	var order []store.Component

	var resolve func(ref string)
	resolve = func(ref string) {
		comp := loaded[ref]
		if comp == nil || resolved[ref] || visiting[ref] {
			return
		}
		visiting[ref] = true
		for _, dep := range comp.RegistryDependencies {
			resolve(dep)
		}
		visiting[ref] = false
		resolved[ref] = true
		if ref != c.Ref() {
			order = append(order, *comp)
		}
	}
	resolve(c.Ref())
	return order, nil
}

// fetchFile reads a stored component file, from our own blob store when
// the URL is ours and over HTTP otherwise.
func (r *Registry) fetchFile(ctx context.Context, fileURL string) ([]byte, error) {
	if fileURL == "" {
		return nil, errors.New("E206").WithDetail("the component has no file URL")
	}

	var body io.ReadCloser
	if key, ok := r.blobKey(fileURL); ok {
		rc, err := r.blobs.Open(ctx, key)
		if err != nil {
			return nil, errors.New("E206").WithDetailf("open %s", key).Wrap(err)
		}
		body = rc
	} else {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
		if err != nil {
			return nil, errors.New("E206").Wrap(err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, errors.New("E206").
				WithDetail("Could not download " + fileURL).Wrap(err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, errors.New("E206").
				WithDetail(fmt.Sprintf("Could not download %s: status %d", fileURL, resp.StatusCode))
		}
		body = resp.Body
	}
	defer body.Close()

	content, err := io.ReadAll(io.LimitReader(body, maxFileSize+1))
	if err != nil {
		return nil, errors.New("E206").Wrap(err)
	}
	if len(content) > maxFileSize {
		return nil, errors.New("E206").WithDetailf("%s is larger than %d bytes", fileURL, maxFileSize)
	}
	return content, nil
}

func (r *Registry) blobKey(fileURL string) (string, bool) {
	if r.blobs == nil {
		return "", false
	}
	return r.blobs.KeyFromURL(fileURL)
}

// checksum is the short sha256 used to label file contents.
func checksum(content []byte) string {
	hash := sha256.Sum256(content)
	return "sha256:" + hex.EncodeToString(hash[:])[:16]
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
