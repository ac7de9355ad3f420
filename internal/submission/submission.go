package submission

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/uireg/internal/analyzer"
	"github.com/vango-dev/uireg/internal/deps"
	"github.com/vango-dev/uireg/internal/errors"
	"github.com/vango-dev/uireg/internal/slug"
	"github.com/vango-dev/uireg/internal/store"
	"github.com/vango-dev/uireg/pkg/upload"
)

const tracerName = "github.com/vango-dev/uireg/internal/submission"

// SlugChecker reports whether a user's slug is free.
type SlugChecker interface {
	SlugAvailable(ctx context.Context, userID, slug string) (bool, error)
}

// Uploader stores component files and returns their URLs.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// Inserter persists component records.
type Inserter interface {
	InsertComponent(ctx context.Context, nc store.NewComponent) (*store.Component, error)
	AddTags(ctx context.Context, componentID string, tags []string) error
}

// VersionPinner replaces unpinned versions in a manifest.
type VersionPinner interface {
	Pin(ctx context.Context, m deps.Manifest) deps.Manifest
}

// ImageClaimer hands over a previously uploaded preview image.
type ImageClaimer interface {
	Claim(tempID string) (*upload.File, error)
}

// Services are the collaborators of a submission. Versions and Images are
// optional.
type Services struct {
	Analyzer *analyzer.Analyzer
	Slugs    SlugChecker
	Blobs    Uploader
	Records  Inserter
	Versions VersionPinner
	Images   ImageClaimer
}

// Config configures submissions.
type Config struct {
	// SlugDebounce is the quiet period after a manual slug edit before
	// its availability is checked.
	SlugDebounce time.Duration

	// SlugCheckTimeout bounds one availability check.
	SlugCheckTimeout time.Duration

	// SubmitTimeout bounds a whole submit (0 = only the caller's context).
	SubmitTimeout time.Duration

	// PublicURL prefixes install URLs stored on records.
	PublicURL string

	// Registry is stored on every record.
	Registry string

	// Baseline overrides the preview's default runtime packages.
	Baseline deps.Manifest
}

// DefaultConfig returns the default submission configuration.
func DefaultConfig() *Config {
	return &Config{
		SlugDebounce:     500 * time.Millisecond,
		SlugCheckTimeout: 5 * time.Second,
		SubmitTimeout:    2 * time.Minute,
		Registry:         "ui",
	}
}

// Option configures a Submission.
type Option func(*Submission)

// WithID sets the session ID instead of a random one.
func WithID(id string) Option {
	return func(s *Submission) {
		s.id = id
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Submission) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer used for submit spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Submission) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithSubmitObserver is called after every submit with its outcome
// ("succeeded", "rejected", "failed" or "canceled") and duration.
func WithSubmitObserver(fn func(outcome string, d time.Duration)) Option {
	return func(s *Submission) {
		s.onSubmit = fn
	}
}

// Submission is one form session. It is safe for concurrent use.
type Submission struct {
	id       string
	user     *store.User
	svc      Services
	config   Config
	logger   *slog.Logger
	tracer   trace.Tracer
	onSubmit func(string, time.Duration)

	// ctx is canceled by Close and parents all background work.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	in         Inputs
	phase      phase
	record     *store.Component
	submitErr  *errors.RegistryError
	warnings   []errors.Payload
	snap       Snapshot
	version    uint64
	closed     bool
	lastActive time.Time

	// epoch changes on Reset; a submit started in an older epoch must
	// not write its result.
	epoch        uint64
	submitCancel context.CancelFunc

	// slugGen identifies the newest slug edit; checks for older
	// generations are discarded.
	slugGen    uint64
	slugTimer  *time.Timer
	slugCancel context.CancelFunc
	autoBase   string

	// preview remembers an already stored preview image, so a retry
	// after a failed submit does not need the claimed upload again.
	preview struct{ uploadID, url string }

	subs    map[uint64]chan Snapshot
	nextSub uint64
}

// New creates a submission for user, who may be nil for an anonymous
// session that can analyse but not submit.
func New(user *store.User, svc Services, config *Config, opts ...Option) *Submission {
	if config == nil {
		config = DefaultConfig()
	}
	if svc.Analyzer == nil {
		svc.Analyzer = analyzer.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Submission{
		id:         uuid.NewString(),
		user:       user,
		svc:        svc,
		config:     *config,
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
		ctx:        ctx,
		cancel:     cancel,
		lastActive: time.Now(),
		subs:       make(map[uint64]chan Snapshot),
	}
	if s.config.SlugDebounce <= 0 {
		s.config.SlugDebounce = DefaultConfig().SlugDebounce
	}
	if s.config.SlugCheckTimeout <= 0 {
		s.config.SlugCheckTimeout = DefaultConfig().SlugCheckTimeout
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "submission", "submission_id", s.id)

	s.in.Baseline = s.config.Baseline
	s.mu.Lock()
	s.refreshLocked()
	s.mu.Unlock()
	return s
}

// ID returns the session ID.
func (s *Submission) ID() string {
	return s.id
}

// User returns the session's user, or nil.
func (s *Submission) User() *store.User {
	return s.user
}

// LastActive returns the time of the last edit or submit.
func (s *Submission) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Snapshot returns the current state.
func (s *Submission) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe returns a channel carrying the current snapshot followed by
// every later one. A slow reader only sees the newest snapshot. The
// channel is closed by the returned cancel func or by Close.
func (s *Submission) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snap

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// SetCode replaces the component source.
func (s *Submission) SetCode(code string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginEditLocked(); err != nil {
		return s.snap, err
	}
	s.in.Code = code
	s.in.Primary = s.svc.Analyzer.Analyze(code)
	s.refreshLocked()
	return s.snap, nil
}

// SetDemo replaces the demo source.
func (s *Submission) SetDemo(demo string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginEditLocked(); err != nil {
		return s.snap, err
	}
	s.setDemoLocked(demo)
	s.refreshLocked()
	return s.snap, nil
}

func (s *Submission) setDemoLocked(demo string) {
	s.in.Demo = demo
	s.in.DemoAnalysis = s.svc.Analyzer.Analyze(demo)
}

// ApproveRemoval deletes one self-import, identified by its statement,
// from the demo.
func (s *Submission) ApproveRemoval(statement string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginEditLocked(); err != nil {
		return s.snap, err
	}
	for _, imp := range s.snap.SelfImports {
		if imp.Statement == statement {
			s.setDemoLocked(deps.RemoveImports(s.in.Demo, []analyzer.Import{imp}))
			s.refreshLocked()
			return s.snap, nil
		}
	}
	return s.snap, errors.New("E306").WithField("demo").
		WithDetailf("%q is not a pending self-import", statement)
}

// ApproveAllRemovals deletes every self-import from the demo.
func (s *Submission) ApproveAllRemovals() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginEditLocked(); err != nil {
		return s.snap, err
	}
	if len(s.snap.SelfImports) > 0 {
		s.setDemoLocked(deps.RemoveImports(s.in.Demo, s.snap.SelfImports))
		s.refreshLocked()
	}
	return s.snap, nil
}

// SetInternalSlug maps an internal import specifier to a registry
// component ("username/slug").
func (s *Submission) SetInternalSlug(specifier, ref string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginEditLocked(); err != nil {
		return s.snap, err
	}
	if _, ok := s.snap.Internal[specifier]; !ok {
		return s.snap, errors.New("E306").WithField("internal").
			WithDetailf("%q is not an internal import", specifier)
	}
	entered := make(map[string]string, len(s.in.Entered)+1)
	for k, v := range s.in.Entered {
		entered[k] = v
	}
	entered[specifier] = strings.TrimSpace(ref)
	s.in.Entered = entered
	s.refreshLocked()
	return s.snap, nil
}

// SetDetails replaces the descriptive fields.
func (s *Submission) SetDetails(d Details) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginEditLocked(); err != nil {
		return s.snap, err
	}
	d.Tags = append([]string(nil), d.Tags...)
	s.in.Details = d
	s.refreshLocked()
	return s.snap, nil
}

// SetSlug records a manual slug edit. Its availability is checked once
// edits pause for the debounce delay; a blank slug goes back to following
// the name.
func (s *Submission) SetSlug(value string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginEditLocked(); err != nil {
		return s.snap, err
	}

	value = strings.TrimSpace(value)
	s.stopSlugWorkLocked()
	s.slugGen++

	if value == "" {
		s.in.Slug = SlugStatus{}
		s.autoBase = ""
		s.refreshLocked()
		return s.snap, nil
	}

	s.in.Slug = SlugStatus{Value: value, ManuallyEdited: true}
	if slug.Valid(value) && s.svc.Slugs != nil {
		s.in.Slug.Checking = true
		gen := s.slugGen
		s.wg.Add(1)
		s.slugTimer = time.AfterFunc(s.config.SlugDebounce, func() {
			defer s.wg.Done()
			s.checkSlug(gen, value)
		})
	}
	s.refreshLocked()
	return s.snap, nil
}

func (s *Submission) checkSlug(gen uint64, value string) {
	s.mu.Lock()
	if s.closed || gen != s.slugGen {
		s.mu.Unlock()
		return
	}
	s.slugTimer = nil
	ctx, cancel := context.WithTimeout(s.ctx, s.config.SlugCheckTimeout)
	defer cancel()
	s.slugCancel = cancel
	s.mu.Unlock()

	ok, err := s.svc.Slugs.SlugAvailable(ctx, s.userID(), value)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.slugGen {
		return
	}
	s.slugCancel = nil
	st := s.in.Slug
	st.Checking = false
	if err != nil {
		s.logger.Warn("slug check failed", "slug", value, "error", err)
		st.Checked = false
		st.Error = errors.New("E202").Wrap(err).Error()
	} else {
		st.Checked = true
		st.Available = ok
		st.Error = ""
	}
	s.in.Slug = st
	s.refreshLocked()
}

// generateSlugLocked finds a free slug derived from base in the
// background and installs it unless a newer slug edit happens first.
func (s *Submission) generateSlugLocked(base string) {
	s.stopSlugWorkLocked()
	s.slugGen++
	s.autoBase = base

	if s.svc.Slugs == nil {
		s.in.Slug = SlugStatus{Value: base}
		return
	}
	s.in.Slug = SlugStatus{Value: base, Checking: true}

	gen := s.slugGen
	ctx, cancel := context.WithTimeout(s.ctx, s.config.SlugCheckTimeout)
	s.slugCancel = cancel
	userID := s.userID()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		value, err := slug.Unique(ctx, base, func(ctx context.Context, candidate string) (bool, error) {
			return s.svc.Slugs.SlugAvailable(ctx, userID, candidate)
		})

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || gen != s.slugGen {
			return
		}
		s.slugCancel = nil
		if err != nil {
			s.logger.Warn("slug generation failed", "base", base, "error", err)
			s.in.Slug = SlugStatus{Value: base, Error: errors.New("E202").Wrap(err).Error()}
		} else {
			s.in.Slug = SlugStatus{Value: value, Checked: true, Available: true}
		}
		s.refreshLocked()
	}()
}

func (s *Submission) stopSlugWorkLocked() {
	if s.slugTimer != nil {
		if s.slugTimer.Stop() {
			s.wg.Done()
		}
		s.slugTimer = nil
	}
	if s.slugCancel != nil {
		s.slugCancel()
		s.slugCancel = nil
	}
}

// Reset abandons all in-flight work, including a running submit, and
// returns the form to EnteringCode.
func (s *Submission) Reset() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.snap, errors.New("E343")
	}
	s.stopSlugWorkLocked()
	s.slugGen++
	if s.submitCancel != nil {
		s.submitCancel()
		s.submitCancel = nil
	}
	s.epoch++

	s.in = Inputs{Baseline: s.config.Baseline}
	s.phase = phaseEditing
	s.record = nil
	s.submitErr = nil
	s.warnings = nil
	s.autoBase = ""
	s.preview.uploadID, s.preview.url = "", ""
	s.lastActive = time.Now()
	s.refreshLocked()
	return s.snap, nil
}

// Close cancels all in-flight work, closes subscriber channels and waits
// for background goroutines. It is idempotent.
func (s *Submission) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopSlugWorkLocked()
	s.slugGen++
	if s.submitCancel != nil {
		s.submitCancel()
		s.submitCancel = nil
	}
	s.cancel()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Submission) userID() string {
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

func (s *Submission) beginEditLocked() error {
	if s.closed {
		return errors.New("E343")
	}
	switch s.phase {
	case phaseSubmitting:
		return errors.New("E341")
	case phaseSucceeded:
		return errors.New("E347")
	case phaseFailed:
		s.phase = phaseEditing
		s.submitErr = nil
	}
	s.lastActive = time.Now()
	return nil
}

// refreshLocked derives a new snapshot and publishes it.
func (s *Submission) refreshLocked() {
	snap := Derive(s.in)

	if s.phase == phaseEditing && snap.PreviewReady && !s.in.Slug.ManuallyEdited {
		if base := slug.Make(snap.Details.Name); base != "" && base != s.autoBase {
			s.generateSlugLocked(base)
			snap = Derive(s.in)
		}
	}

	switch s.phase {
	case phaseSubmitting:
		snap.State = Submitting
	case phaseSucceeded:
		snap.State = Succeeded
		snap.Record = s.record
		if s.record != nil {
			snap.ViewPath = "/" + s.record.Username + "/" + s.record.Slug
		}
	case phaseFailed:
		snap.State = Failed
	}
	if s.submitErr != nil {
		p := s.submitErr.Payload()
		snap.SubmitError = &p
	}
	snap.Warnings = s.warnings

	s.version++
	snap.ID = s.id
	snap.Version = s.version
	s.snap = snap

	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
