// ABOUTME: Session manager owning per-user conversation state and idle-timeout eviction.
// ABOUTME: Sessions are created lazily, handed out as copies, and written back last-write-wins.

package session

import (
	"log/slog"
	"sort"
	"time"
)

// Defaults used when the manager is built without explicit options.
const (
	DefaultTimeout      = 30 * time.Minute
	DefaultHistoryLimit = 20
)

// Stats summarizes the sessions currently held.
type Stats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`    // not yet idle past the timeout
	InFlight int `json:"in_flight"` // pinned by a running turn
}

// Manager is the authoritative record of where each user is in the conversation.
type Manager struct {
	store        Store
	timeout      time.Duration
	historyLimit int
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore replaces the default MemoryStore.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithTimeout sets the idle timeout after which Sweep removes a session.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithHistoryLimit bounds the number of turns kept per session.
func WithHistoryLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.historyLimit = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager backed by a MemoryStore unless WithStore is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		timeout:      DefaultTimeout,
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	m.logger = m.logger.With("component", "session")
	return m
}

// Timeout returns the configured idle timeout.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// HistoryLimit returns the maximum number of turns kept per session.
func (m *Manager) HistoryLimit() int {
	return m.historyLimit
}

// GetOrCreate returns a copy of the session at key, creating one at StepInit
// when absent. LastActiveAt is refreshed on every call.
func (m *Manager) GetOrCreate(key string) Session {
	s, _ := m.acquire(key, false)
	return s
}

// Begin is GetOrCreate for an in-flight turn: the session cannot be swept
// until release is called. release is safe to call more than once.
func (m *Manager) Begin(key string) (Session, func()) {
	return m.acquire(key, true)
}

func (m *Manager) acquire(key string, pin bool) (Session, func()) {
	now := m.now()
	created := false
	s, release := m.store.Acquire(key, now, pin, func() *Session {
		created = true
		return newSession(key, now)
	})
	if created {
		m.logger.Debug("session created", "session_key", key, "session_id", s.ID)
	}
	return s, release
}

// Get returns a copy of the session at key without refreshing it.
func (m *Manager) Get(key string) (Session, bool) {
	return m.store.Get(key)
}

// Save writes s back, replacing whatever is stored at s.Key. Concurrent turns
// for the same key race and the last Save wins.
func (m *Manager) Save(s Session) {
	s.LastActiveAt = m.now()
	s.trimHistory(m.historyLimit)
	m.store.Put(s)
}

// End destroys the session at key. Returns false if there was none.
func (m *Manager) End(key string) bool {
	ok := m.store.Delete(key)
	if ok {
		m.logger.Debug("session ended", "session_key", key)
	}
	return ok
}

// Sweep removes every session idle for longer than the timeout at now.
// Sessions pinned by an in-flight turn are skipped.
func (m *Manager) Sweep(now time.Time) int {
	removed := m.store.SweepIdle(now.Add(-m.timeout))
	if removed > 0 {
		m.logger.Info("swept idle sessions", "removed", removed, "remaining", m.store.Len())
	}
	return removed
}

// Stats reports session counts.
func (m *Manager) Stats() Stats {
	now := m.now()
	var st Stats
	m.store.Range(func(s Session, pinned bool) bool {
		st.Total++
		if now.Sub(s.LastActiveAt) <= m.timeout {
			st.Active++
		}
		if pinned {
			st.InFlight++
		}
		return true
	})
	return st
}

// List returns copies of all sessions, most recently active first.
func (m *Manager) List() []Session {
	var out []Session
	m.store.Range(func(s Session, _ bool) bool {
		out = append(out, s)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out
}
