package submission

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/uireg/internal/deps"
	"github.com/vango-dev/uireg/internal/errors"
	"github.com/vango-dev/uireg/internal/store"
	"github.com/vango-dev/uireg/pkg/upload"
)

const sourceContentType = "text/plain; charset=utf-8"

// job is the frozen form content a submit works on.
type job struct {
	userID   string
	username string
	slug     string
	details  Details

	code          string
	demo          string
	exports       []string
	demoComponent string

	primaryExternal deps.Manifest
	demoExternal    deps.Manifest
	internal        map[string]string

	previewUploadID string
	previewURL      string
}

type result struct {
	record     *store.Component
	warnings   []errors.Payload
	previewURL string
}

// Submit validates the form, stores the code, demo and preview image,
// and inserts the component record. It blocks until done.
//
// Validation failures leave the form editable with the problem in
// FieldErrors. Collaborator failures move to Failed; the entered content
// is kept and Submit may be called again.
func (s *Submission) Submit(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, errors.New("E343")
	}
	switch s.phase {
	case phaseSubmitting:
		snap := s.snap
		s.mu.Unlock()
		return snap, errors.New("E341")
	case phaseSucceeded:
		snap := s.snap
		s.mu.Unlock()
		return snap, errors.New("E347")
	}
	if s.user == nil {
		snap := s.snap
		s.mu.Unlock()
		return snap, errors.New("E345")
	}
	s.lastActive = time.Now()

	snap := s.snap
	if len(snap.FieldErrors) > 0 {
		s.mu.Unlock()
		return snap, payloadError(snap.FieldErrors[0])
	}
	if !snap.PreviewReady {
		s.mu.Unlock()
		return snap, errors.New("E342")
	}

	// The submit does its own availability check.
	s.stopSlugWorkLocked()
	s.slugGen++
	s.in.Slug.Checking = false

	j := job{
		userID:          s.user.ID,
		username:        s.user.Username,
		slug:            snap.Slug.Value,
		details:         snap.Details,
		code:            snap.Code,
		demo:            snap.Demo,
		exports:         snap.Exports,
		demoComponent:   snap.DemoComponent,
		primaryExternal: snap.classification.PrimaryExternal,
		demoExternal:    snap.classification.DemoExternal,
		internal:        snap.Internal,
		previewUploadID: snap.Details.PreviewUploadID,
	}
	if j.previewUploadID != "" && j.previewUploadID == s.preview.uploadID {
		j.previewURL = s.preview.url
	}

	s.phase = phaseSubmitting
	s.submitErr = nil
	s.warnings = nil
	epoch := s.epoch

	sctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	if s.config.SubmitTimeout > 0 {
		var cancelTimeout context.CancelFunc
		sctx, cancelTimeout = context.WithTimeout(sctx, s.config.SubmitTimeout)
		defer cancelTimeout()
	}
	s.submitCancel = cancel
	s.refreshLocked()
	s.mu.Unlock()

	start := time.Now()
	res, err := s.run(sctx, j)
	stop()
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.snap, errors.New("E343")
	}
	if res.previewURL != "" {
		s.preview.uploadID, s.preview.url = j.previewUploadID, res.previewURL
	}
	if epoch != s.epoch {
		s.observe("canceled", start)
		return s.snap, context.Canceled
	}
	s.submitCancel = nil

	var outcome string
	switch {
	case err == nil:
		outcome = "succeeded"
		s.phase = phaseSucceeded
		s.record = res.record
		s.warnings = res.warnings
		s.logger.Info("component submitted",
			"component_id", res.record.ID,
			"slug", res.record.Slug,
			"duration", time.Since(start))
	case errors.IsValidation(err):
		outcome = "rejected"
		s.phase = phaseEditing
		if errors.HasCode(err, "E303") {
			s.in.Slug = SlugStatus{
				Value:          j.slug,
				ManuallyEdited: s.in.Slug.ManuallyEdited,
				Checked:        true,
				Available:      false,
			}
			if !s.in.Slug.ManuallyEdited {
				// Look for the next free name-derived slug.
				s.autoBase = ""
			}
		}
		if errors.HasCode(err, "E308") {
			s.in.Details.PreviewUploadID = ""
		}
	case stderrors.Is(err, context.Canceled):
		outcome = "canceled"
		s.phase = phaseFailed
		s.submitErr = errors.FromError(err, "E201").WithDetail("The submission was canceled")
	default:
		outcome = "failed"
		s.phase = phaseFailed
		s.submitErr = errors.FromError(err, "E201")
		s.logger.Warn("submit failed", "slug", j.slug, "error", err)
	}
	s.observe(outcome, start)
	s.refreshLocked()
	return s.snap, err
}

func (s *Submission) observe(outcome string, start time.Time) {
	if s.onSubmit != nil {
		s.onSubmit(outcome, time.Since(start))
	}
}

func payloadError(p errors.Payload) *errors.RegistryError {
	re := errors.New(p.Code).WithField(p.Field)
	if p.Detail != "" {
		re = re.WithDetail(p.Detail)
	}
	return re
}

func (s *Submission) run(ctx context.Context, j job) (result, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.String("submission.id", s.id),
		attribute.String("component.slug", j.slug),
		attribute.Int("component.exports", len(j.exports)),
	))
	defer span.End()

	res, err := s.stages(ctx, j)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (s *Submission) stages(ctx context.Context, j job) (result, error) {
	var res result

	err := s.stage(ctx, "check_slug", func(ctx context.Context) error {
		if s.svc.Slugs == nil {
			return nil
		}
		ok, err := s.svc.Slugs.SlugAvailable(ctx, j.userID, j.slug)
		if err != nil {
			return errors.New("E202").Wrap(err)
		}
		if !ok {
			return errors.New("E303").WithField("slug").
				WithDetailf("You already have a component at %q", j.slug)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	var codeURL, demoURL string
	err = s.stage(ctx, "upload", func(ctx context.Context) error {
		if s.svc.Blobs == nil {
			return errors.New("E200").WithDetail("no upload store configured")
		}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			codeURL, err = s.uploadSource(gctx, j, "code", j.code)
			return err
		})
		g.Go(func() (err error) {
			demoURL, err = s.uploadSource(gctx, j, "demo", j.demo)
			return err
		})
		if j.previewUploadID != "" && j.previewURL == "" {
			g.Go(func() (err error) {
				res.previewURL, err = s.uploadPreview(gctx, j)
				return err
			})
		}
		return g.Wait()
	})
	if err != nil {
		return res, err
	}
	previewURL := j.previewURL
	if res.previewURL != "" {
		previewURL = res.previewURL
	}

	primaryDeps, demoDeps := j.primaryExternal, j.demoExternal
	if s.svc.Versions != nil {
		_ = s.stage(ctx, "pin_versions", func(ctx context.Context) error {
			primaryDeps = s.svc.Versions.Pin(ctx, j.primaryExternal)
			demoDeps = s.svc.Versions.Pin(ctx, j.demoExternal)
			return nil
		})
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	nc := store.NewComponent{
		UserID:               j.userID,
		Name:                 strings.TrimSpace(j.details.Name),
		Slug:                 j.slug,
		ComponentNames:       j.exports,
		DemoComponentName:    j.demoComponent,
		CodeURL:              codeURL,
		DemoCodeURL:          demoURL,
		Description:          strings.TrimSpace(j.details.Description),
		InstallURL:           s.installURL(j.username, j.slug),
		Dependencies:         primaryDeps,
		DemoDependencies:     demoDeps,
		InternalDependencies: j.internal,
		RegistryDependencies: registryRefs(j.internal),
		Public:               j.details.Public,
		PreviewURL:           previewURL,
		License:              strings.TrimSpace(j.details.License),
		WebsiteURL:           strings.TrimSpace(j.details.WebsiteURL),
		Registry:             s.config.Registry,
	}

	err = s.stage(ctx, "insert", func(ctx context.Context) error {
		if s.svc.Records == nil {
			return errors.New("E201").WithDetail("no record store configured")
		}
		rec, err := s.svc.Records.InsertComponent(ctx, nc)
		if stderrors.Is(err, store.ErrSlugTaken) {
			return errors.New("E303").WithField("slug").
				WithDetailf("You already have a component at %q", j.slug)
		}
		if err != nil {
			return errors.FromError(err, "E201")
		}
		if rec.Username == "" {
			rec.Username = j.username
		}
		res.record = rec
		return nil
	})
	if err != nil {
		return res, err
	}

	if len(j.details.Tags) > 0 {
		// The record exists from here on, so a tag failure is only a
		// warning.
		err := s.stage(ctx, "tags", func(ctx context.Context) error {
			return s.svc.Records.AddTags(ctx, res.record.ID, j.details.Tags)
		})
		if err != nil {
			s.logger.Warn("attaching tags failed", "component_id", res.record.ID, "error", err)
			res.warnings = append(res.warnings, errors.New("E204").Wrap(err).Payload())
		}
	}
	return res, nil
}

// stage runs fn in a child span named after the stage.
func (s *Submission) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "submission."+name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s *Submission) uploadSource(ctx context.Context, j job, kind, source string) (string, error) {
	key := fmt.Sprintf("%s/%s-%s.tsx", j.userID, j.slug, kind)
	url, err := s.svc.Blobs.Upload(ctx, key, sourceContentType, strings.NewReader(source))
	if err != nil {
		return "", errors.New("E200").WithDetailf("Uploading the %s failed", kind).Wrap(err)
	}
	return url, nil
}

func (s *Submission) uploadPreview(ctx context.Context, j job) (string, error) {
	if s.svc.Images == nil {
		return "", errors.New("E308").WithField("previewImage").
			WithDetail("Preview images are not enabled")
	}
	file, err := s.svc.Images.Claim(j.previewUploadID)
	if err != nil {
		return "", errors.New("E308").WithField("previewImage").
			WithDetail("The preview image expired; upload it again").Wrap(err)
	}
	defer file.Close()

	ext := upload.Extension(file.ContentType)
	if ext == "" {
		return "", errors.New("E308").WithField("previewImage").
			WithDetailf("Unsupported image type %s", file.ContentType)
	}
	data, err := io.ReadAll(file.Reader)
	if err != nil {
		return "", errors.New("E200").WithDetail("Reading the preview image failed").Wrap(err)
	}

	key := fmt.Sprintf("%s/%s-preview%s", j.userID, j.slug, ext)
	url, err := s.svc.Blobs.Upload(ctx, key, file.ContentType, bytes.NewReader(data))
	if err != nil {
		return "", errors.New("E200").WithDetail("Uploading the preview image failed").Wrap(err)
	}
	return url, nil
}

func (s *Submission) installURL(username, slug string) string {
	return strings.TrimRight(s.config.PublicURL, "/") + "/api/r/" + username + "/" + slug
}

// registryRefs returns the distinct component references of an internal
// dependency map, sorted.
func registryRefs(internal map[string]string) []string {
	seen := make(map[string]bool, len(internal))
	refs := make([]string, 0, len(internal))
	for _, ref := range internal {
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
