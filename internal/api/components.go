package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/uireg/internal/errors"
	"github.com/vango-dev/uireg/internal/slug"
)

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Palette.Query(r.Context(), r.URL.Query().Get("q")))
}

func (s *Server) slugAvailable(w http.ResponseWriter, r *http.Request) {
	value := strings.TrimSpace(r.URL.Query().Get("slug"))
	if !slug.Valid(value) {
		writeError(w, errors.New("E304").WithField("component_slug"))
		return
	}
	user := UserFromContext(r.Context())
	available, err := s.deps.Slugs.SlugAvailable(r.Context(), user.ID, value)
	if err != nil {
		writeError(w, errors.FromError(err, "E202"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slug":      value,
		"available": available,
	})
}

func (s *Server) componentInfo(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Registry.Component(r.Context(), chi.URLParam(r, "username"), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, errors.FromError(err, "E205"))
		return
	}
	info, err := s.deps.Registry.Info(r.Context(), c)
	if err != nil {
		writeError(w, errors.FromError(err, "E205"))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) installItem(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Registry.Component(r.Context(), chi.URLParam(r, "username"), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, errors.FromError(err, "E205"))
		return
	}
	item, err := s.deps.Registry.Item(r.Context(), c)
	if err != nil {
		s.logger.Warn("install item failed", "component", c.Ref(), "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
