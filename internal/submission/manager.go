package submission

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/uireg/internal/errors"
	"github.com/vango-dev/uireg/internal/store"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// IdleTimeout closes sessions that saw no edit for this long.
	// Default: 30 minutes.
	IdleTimeout time.Duration

	// MaxPerUser limits open sessions per user (0 = unlimited).
	// Anonymous sessions share one budget.
	MaxPerUser int

	// CleanupInterval is how often idle sessions are collected.
	// Default: 30 seconds.
	CleanupInterval time.Duration
}

// DefaultManagerConfig returns the default manager configuration.
func DefaultManagerConfig() *ManagerConfig {
	return &ManagerConfig{
		IdleTimeout:     30 * time.Minute,
		MaxPerUser:      5,
		CleanupInterval: 30 * time.Second,
	}
}

// Manager owns the open submissions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Submission
	byUser   map[string]int

	svc     Services
	config  *Config
	mconfig ManagerConfig
	opts    []Option
	logger  *slog.Logger

	done        chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once

	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64

	onCreate func(*Submission)
	onClose  func(*Submission)
}

// NewManager creates a manager and starts its cleanup loop. Every session
// it creates uses svc, config and opts.
func NewManager(svc Services, config *Config, mconfig *ManagerConfig, logger *slog.Logger, opts ...Option) *Manager {
	if mconfig == nil {
		mconfig = DefaultManagerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		sessions:    make(map[string]*Submission),
		byUser:      make(map[string]int),
		svc:         svc,
		config:      config,
		mconfig:     *mconfig,
		opts:        opts,
		logger:      logger.With("component", "submission_manager"),
		done:        make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	if m.mconfig.IdleTimeout <= 0 {
		m.mconfig.IdleTimeout = DefaultManagerConfig().IdleTimeout
	}
	if m.mconfig.CleanupInterval <= 0 {
		m.mconfig.CleanupInterval = DefaultManagerConfig().CleanupInterval
	}

	go m.cleanupLoop()
	return m
}

// SetOnCreate sets a callback run after a session is created.
func (m *Manager) SetOnCreate(fn func(*Submission)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCreate = fn
}

// SetOnClose sets a callback run after a session is closed.
func (m *Manager) SetOnClose(fn func(*Submission)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = fn
}

// Create opens a session for user, which may be nil.
func (m *Manager) Create(user *store.User) (*Submission, error) {
	key := userKey(user)

	m.mu.Lock()
	if m.mconfig.MaxPerUser > 0 && m.byUser[key] >= m.mconfig.MaxPerUser {
		m.mu.Unlock()
		return nil, errors.New("E344").
			WithDetailf("At most %d open submissions per user", m.mconfig.MaxPerUser)
	}
	logger := m.logger
	if user != nil {
		logger = logger.With("user_id", user.ID)
	}
	opts := append([]Option{WithLogger(logger)}, m.opts...)
	s := New(user, m.svc, m.config, opts...)
	m.sessions[s.ID()] = s
	m.byUser[key]++
	onCreate := m.onCreate
	m.mu.Unlock()

	m.totalCreated.Add(1)
	if onCreate != nil {
		onCreate(s)
	}
	m.logger.Debug("submission created", "submission_id", s.ID())
	return s, nil
}

// Get returns the session with id if user owns it. Sessions of other
// users are reported as not found.
func (m *Manager) Get(id string, user *store.User) (*Submission, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || userKey(s.User()) != userKey(user) {
		return nil, errors.New("E340")
	}
	return s, nil
}

// Close closes and forgets the session with id if user owns it.
func (m *Manager) Close(id string, user *store.User) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok || userKey(s.User()) != userKey(user) {
		m.mu.Unlock()
		return errors.New("E340")
	}
	m.removeLocked(id)
	onClose := m.onClose
	m.mu.Unlock()

	m.closeSessions([]*Submission{s}, onClose)
	return nil
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stats are lifetime counters of a Manager.
type Stats struct {
	Active       int    `json:"active"`
	TotalCreated uint64 `json:"totalCreated"`
	TotalClosed  uint64 `json:"totalClosed"`
}

// Stats returns the manager's counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Active:       m.Count(),
		TotalCreated: m.totalCreated.Load(),
		TotalClosed:  m.totalClosed.Load(),
	}
}

func (m *Manager) removeLocked(id string) *Submission {
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	delete(m.sessions, id)
	key := userKey(s.User())
	if m.byUser[key]--; m.byUser[key] <= 0 {
		delete(m.byUser, key)
	}
	return s
}

func (m *Manager) closeSessions(sessions []*Submission, onClose func(*Submission)) {
	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Submission) {
			defer wg.Done()
			s.Close()
			m.totalClosed.Add(1)
			if onClose != nil {
				onClose(s)
			}
		}(s)
	}
	wg.Wait()
}

func (m *Manager) cleanupLoop() {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(m.mconfig.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupExpired(time.Now())
		case <-m.done:
			return
		}
	}
}

// cleanupExpired closes sessions idle since before now-IdleTimeout.
// Sessions in the middle of a submit are left alone.
func (m *Manager) cleanupExpired(now time.Time) {
	m.mu.Lock()
	var expired []*Submission
	for id, s := range m.sessions {
		if now.Sub(s.LastActive()) <= m.mconfig.IdleTimeout {
			continue
		}
		if s.Snapshot().State == Submitting {
			continue
		}
		expired = append(expired, m.removeLocked(id))
	}
	remaining := len(m.sessions)
	onClose := m.onClose
	m.mu.Unlock()

	m.closeSessions(expired, onClose)

	if len(expired) > 0 {
		m.logger.Info("cleaned up idle submissions",
			"count", len(expired),
			"remaining", remaining)
	}
}

// Shutdown stops the cleanup loop and closes every session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.done) })
	select {
	case <-m.cleanupDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	sessions := make([]*Submission, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Submission)
	m.byUser = make(map[string]int)
	onClose := m.onClose
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.closeSessions(sessions, onClose)
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.logger.Info("submission manager shutdown", "closed_sessions", len(sessions))
	return nil
}

func userKey(u *store.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
