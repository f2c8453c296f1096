// ABOUTME: Namespaced key/value store with fixed per-entry expiry.
// ABOUTME: Shared substrate for the conversation engine and plugins; expired reads evict lazily.

package contextstore

import (
	"sync"
	"time"
)

// DefaultNamespace is used when SetOptions.Namespace is empty.
const DefaultNamespace = "global"

// DefaultTTL is the store-wide expiry applied when SetOptions.TTL is zero.
const DefaultTTL = 5 * time.Minute

// SetOptions controls how an entry is written.
type SetOptions struct {
	TTL       time.Duration // zero means the store default
	Namespace string        // empty means DefaultNamespace
}

// Store is the contract shared by the engine and plugins.
// Reads never extend an entry's expiry.
type Store interface {
	Set(key string, value any, opts SetOptions)
	// SetIfAbsent writes only when no live entry exists and reports whether it wrote.
	SetIfAbsent(key string, value any, opts SetOptions) bool
	Get(key, namespace string) (any, bool)
	Delete(key, namespace string)
	// Sweep evicts every entry already expired at now and returns how many were removed.
	Sweep(now time.Time) int
	Len() int
}

// entry stores a value and its absolute expiry.
type entry struct {
	value     any
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Memory is a thread-safe in-memory Store.
type Memory struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]*entry
	ttl        time.Duration
	now        func() time.Time
}

// Option configures a Memory store.
type Option func(*Memory)

// WithDefaultTTL overrides DefaultTTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(m *Memory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates an empty Memory store.
func New(opts ...Option) *Memory {
	m := &Memory{
		namespaces: make(map[string]map[string]*entry),
		ttl:        DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Set stores or overwrites the entry at (namespace, key). It always succeeds.
func (m *Memory) Set(key string, value any, opts SetOptions) {
	ns, ttl := m.resolve(opts)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(ns, key, value, ttl)
}

// SetIfAbsent atomically writes the entry if no unexpired entry exists.
// Returns true when the value was written.
func (m *Memory) SetIfAbsent(key string, value any, opts SetOptions) bool {
	ns, ttl := m.resolve(opts)

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.namespaces[ns][key]; ok && !e.expired(m.now()) {
		return false
	}
	m.setLocked(ns, key, value, ttl)
	return true
}

// setLocked writes an entry. Must be called with mu held.
func (m *Memory) setLocked(ns, key string, value any, ttl time.Duration) {
	bucket, ok := m.namespaces[ns]
	if !ok {
		bucket = make(map[string]*entry)
		m.namespaces[ns] = bucket
	}
	bucket[key] = &entry{
		value:     value,
		expiresAt: m.now().Add(ttl),
	}
}

// Get returns the value at (namespace, key). An expired entry reads as absent
// and is deleted on that read.
func (m *Memory) Get(key, namespace string) (any, bool) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m.mu.RLock()
	e, ok := m.namespaces[namespace][key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !e.expired(m.now()) {
		return e.value, true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Only remove the entry we observed; a concurrent Set may have replaced it.
	if current, ok := m.namespaces[namespace][key]; ok && current == e {
		m.deleteLocked(namespace, key)
	}
	return nil, false
}

// Delete removes the entry at (namespace, key) if present.
func (m *Memory) Delete(key, namespace string) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(namespace, key)
}

// deleteLocked removes an entry and drops empty namespaces. Must be called with mu held.
func (m *Memory) deleteLocked(namespace, key string) {
	bucket, ok := m.namespaces[namespace]
	if !ok {
		return
	}
	delete(bucket, key)
	if len(bucket) == 0 {
		delete(m.namespaces, namespace)
	}
}

// Sweep removes all entries expired at now.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for ns, bucket := range m.namespaces {
		for key, e := range bucket {
			if e.expired(now) {
				delete(bucket, key)
				removed++
			}
		}
		if len(bucket) == 0 {
			delete(m.namespaces, ns)
		}
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, bucket := range m.namespaces {
		n += len(bucket)
	}
	return n
}

func (m *Memory) resolve(opts SetOptions) (string, time.Duration) {
	ns := opts.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = m.ttl
	}
	return ns, ttl
}
