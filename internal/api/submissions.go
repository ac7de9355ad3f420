package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/uireg/internal/errors"
	"github.com/vango-dev/uireg/internal/preview"
	"github.com/vango-dev/uireg/internal/submission"
)

type sourceRequest struct {
	Source string `json:"source"`
}

type removalRequest struct {
	// Statement is the import statement to remove. Empty with All set
	// removes every self-import.
	Statement string `json:"statement,omitempty"`
	All       bool   `json:"all,omitempty"`
}

type internalRequest struct {
	Specifier string `json:"specifier"`
	Slug      string `json:"slug"`
}

type slugRequest struct {
	Slug string `json:"slug"`
}

// session loads the submission named in the URL for the current user.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*submission.Submission, bool) {
	sub, err := s.deps.Submissions.Get(chi.URLParam(r, "id"), UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sub, true
}

// respond writes the snapshot, or err when the edit was refused.
func respond(w http.ResponseWriter, snap submission.Snapshot, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) createSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Submissions.Create(UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/submissions/"+sub.ID())
	writeJSON(w, http.StatusCreated, sub.Snapshot())
}

func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	if sub, ok := s.session(w, r); ok {
		writeJSON(w, http.StatusOK, sub.Snapshot())
	}
}

func (s *Server) closeSubmission(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Submissions.Close(chi.URLParam(r, "id"), UserFromContext(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setCode(w http.ResponseWriter, r *http.Request) {
	s.setSource(w, r, (*submission.Submission).SetCode)
}

func (s *Server) setDemo(w http.ResponseWriter, r *http.Request) {
	s.setSource(w, r, (*submission.Submission).SetDemo)
}

func (s *Server) setSource(w http.ResponseWriter, r *http.Request, set func(*submission.Submission, string) (submission.Snapshot, error)) {
	sub, ok := s.session(w, r)
	if !ok {
		return
	}
	var req sourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := set(sub, req.Source)
	respond(w, snap, err)
}

func (s *Server) approveRemovals(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.session(w, r)
	if !ok {
		return
	}
	var req removalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.All {
		snap, err := sub.ApproveAllRemovals()
		respond(w, snap, err)
		return
	}
	if req.Statement == "" {
		writeError(w, errors.New("E300").WithField("statement"))
		return
	}
	snap, err := sub.ApproveRemoval(req.Statement)
	respond(w, snap, err)
}

func (s *Server) setInternal(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.session(w, r)
	if !ok {
		return
	}
	var req internalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := sub.SetInternalSlug(req.Specifier, req.Slug)
	respond(w, snap, err)
}

func (s *Server) setDetails(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.session(w, r)
	if !ok {
		return
	}
	var req submission.Details
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := sub.SetDetails(req)
	respond(w, snap, err)
}

func (s *Server) setSlug(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.session(w, r)
	if !ok {
		return
	}
	var req slugRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := sub.SetSlug(req.Slug)
	respond(w, snap, err)
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.session(w, r)
	if !ok {
		return
	}
	snap := sub.Snapshot()
	if snap.Bundle == nil {
		writeError(w, errors.New("E342"))
		return
	}
	writeJSON(w, http.StatusOK, preview.Sandpack(snap.Bundle, s.deps.ExternalResources))
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.session(w, r)
	if !ok {
		return
	}
	// A dropped connection does not abandon the submit; DELETE and reset do.
	snap, err := sub.Submit(context.WithoutCancel(r.Context()))
	if err != nil {
		if re, ok := errors.As(err); ok {
			writeJSON(w, errors.HTTPStatus(re), submitFailure{Error: re.Payload(), Snapshot: snap})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// submitFailure carries the snapshot alongside the error, so clients see
// which step the form went back to.
type submitFailure struct {
	Error    errors.Payload      `json:"error"`
	Snapshot submission.Snapshot `json:"snapshot"`
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.session(w, r)
	if !ok {
		return
	}
	snap, err := sub.Reset()
	respond(w, snap, err)
}
