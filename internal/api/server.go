package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/uireg/internal/registry"
	"github.com/vango-dev/uireg/internal/search"
	"github.com/vango-dev/uireg/internal/store"
	"github.com/vango-dev/uireg/internal/submission"
	"github.com/vango-dev/uireg/pkg/middleware"
	"github.com/vango-dev/uireg/pkg/upload"
)

// UserStore records the users seen by the identity middleware.
type UserStore interface {
	UpsertUser(ctx context.Context, u store.User) (*store.User, error)
}

// Deps are the collaborators of the HTTP API. Files, Gatherer, Metrics
// and Tracing are optional.
type Deps struct {
	Users       UserStore
	Slugs       submission.SlugChecker
	Submissions *submission.Manager
	Palette     *search.Palette
	Registry    *registry.Registry
	Uploads     upload.TempStore
	UploadCfg   *upload.Config

	// Files serves stored blobs under /files/.
	Files http.Handler

	// Gatherer is exposed at /metrics.
	Gatherer prometheus.Gatherer

	// Metrics records per-route HTTP metrics.
	Metrics *middleware.Metrics

	// Tracing starts a server span per request.
	Tracing bool

	// ExternalResources are handed to preview sandboxes.
	ExternalResources []string

	// CheckOrigin validates websocket origins. Default: same host only.
	CheckOrigin func(r *http.Request) bool

	Logger *slog.Logger
}

// Server serves the registry API.
type Server struct {
	deps     Deps
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

// New creates the API server.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		deps:   deps,
		logger: logger.With("component", "api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     deps.CheckOrigin,
		},
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if s.deps.Tracing {
		r.Use(middleware.Tracing(middleware.WithUserID(func(r *http.Request) string {
			return r.Header.Get(HeaderUserID)
		})))
	}
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Handler)
	}
	r.Use(middleware.AccessLog(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(Identity(s.deps.Users, s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
	if s.deps.Files != nil {
		r.Handle("/files/*", http.StripPrefix("/files", s.deps.Files))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.search)
		r.Get("/components/{username}/{slug}", s.componentInfo)
		r.Get("/r/{username}/{slug}", s.installItem)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/slugs/available", s.slugAvailable)
			if s.deps.Uploads != nil {
				r.Handle("/uploads", upload.Handler(s.deps.Uploads, s.deps.UploadCfg))
			}

			r.Post("/submissions", s.createSubmission)
			r.Route("/submissions/{id}", func(r chi.Router) {
				r.Get("/", s.getSubmission)
				r.Delete("/", s.closeSubmission)
				r.Put("/code", s.setCode)
				r.Put("/demo", s.setDemo)
				r.Post("/removals", s.approveRemovals)
				r.Put("/internal", s.setInternal)
				r.Put("/details", s.setDetails)
				r.Put("/slug", s.setSlug)
				r.Get("/preview", s.preview)
				r.Post("/submit", s.submit)
				r.Post("/reset", s.reset)
				r.Get("/ws", s.stream)
			})
		})
	})
	return r
}
