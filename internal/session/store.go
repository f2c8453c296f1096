// ABOUTME: Session storage contract and a lock-striped in-memory implementation.
// ABOUTME: Pinned records are skipped by idle sweeps while a turn holds them.

package session

import (
	"hash/fnv"
	"sync"
	"time"
)

// Store holds sessions keyed by platform-qualified user key.
// Implementations must be safe for concurrent use; every method copies
// sessions in and out so callers never share memory with the store.
type Store interface {
	// Acquire returns the session at key, creating it with create when absent,
	// and sets its LastActiveAt to now. When pin is true the record is
	// protected from SweepIdle until the returned release func runs.
	Acquire(key string, now time.Time, pin bool, create func() *Session) (Session, func())
	// Get returns the session at key without touching it.
	Get(key string) (Session, bool)
	// Put replaces the session at s.Key, inserting it if absent.
	Put(s Session)
	// Delete removes the session at key and reports whether it existed.
	Delete(key string) bool
	// SweepIdle removes unpinned sessions last active before cutoff.
	SweepIdle(cutoff time.Time) int
	// Range calls fn for each session until fn returns false.
	Range(fn func(s Session, pinned bool) bool)
	Len() int
}

const stripeCount = 32

type record struct {
	session *Session
	pins    int
}

type stripe struct {
	mu      sync.RWMutex
	records map[string]*record
}

// MemoryStore is an in-process Store split into fixed lock stripes so turns
// for different users rarely contend on the same mutex.
type MemoryStore struct {
	stripes [stripeCount]stripe
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.stripes {
		s.stripes[i].records = make(map[string]*record)
	}
	return s
}

func (s *MemoryStore) stripeFor(key string) *stripe {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.stripes[h.Sum32()%stripeCount]
}

// Acquire implements Store.
func (s *MemoryStore) Acquire(key string, now time.Time, pin bool, create func() *Session) (Session, func()) {
	st := s.stripeFor(key)

	st.mu.Lock()
	rec, ok := st.records[key]
	if !ok {
		rec = &record{session: create()}
		st.records[key] = rec
	}
	rec.session.LastActiveAt = now
	if pin {
		rec.pins++
	}
	snap := Snapshot(rec.session)
	st.mu.Unlock()

	if !pin {
		return snap, func() {}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			st.mu.Lock()
			rec.pins--
			st.mu.Unlock()
		})
	}
	return snap, release
}

// Get implements Store.
func (s *MemoryStore) Get(key string) (Session, bool) {
	st := s.stripeFor(key)

	st.mu.RLock()
	defer st.mu.RUnlock()

	rec, ok := st.records[key]
	if !ok {
		return Session{}, false
	}
	return Snapshot(rec.session), true
}

// Put implements Store. The record (and any pins on it) is kept; only its
// session value is replaced.
func (s *MemoryStore) Put(sess Session) {
	st := s.stripeFor(sess.Key)
	cp := Snapshot(&sess)

	st.mu.Lock()
	defer st.mu.Unlock()

	if rec, ok := st.records[sess.Key]; ok {
		rec.session = &cp
		return
	}
	st.records[sess.Key] = &record{session: &cp}
}

// Delete implements Store.
func (s *MemoryStore) Delete(key string) bool {
	st := s.stripeFor(key)

	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.records[key]; !ok {
		return false
	}
	delete(st.records, key)
	return true
}

// SweepIdle implements Store. Stripes are locked one at a time so a sweep
// never holds more than one stripe while request paths run.
func (s *MemoryStore) SweepIdle(cutoff time.Time) int {
	removed := 0
	for i := range s.stripes {
		st := &s.stripes[i]
		st.mu.Lock()
		for key, rec := range st.records {
			if rec.pins > 0 {
				continue
			}
			if rec.session.LastActiveAt.Before(cutoff) {
				delete(st.records, key)
				removed++
			}
		}
		st.mu.Unlock()
	}
	return removed
}

// Range implements Store.
func (s *MemoryStore) Range(fn func(Session, bool) bool) {
	for i := range s.stripes {
		st := &s.stripes[i]
		st.mu.RLock()
		snaps := make([]Session, 0, len(st.records))
		pinned := make([]bool, 0, len(st.records))
		for _, rec := range st.records {
			snaps = append(snaps, Snapshot(rec.session))
			pinned = append(pinned, rec.pins > 0)
		}
		st.mu.RUnlock()

		for j := range snaps {
			if !fn(snaps[j], pinned[j]) {
				return
			}
		}
	}
}

// Len implements Store.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.stripes {
		st := &s.stripes[i]
		st.mu.RLock()
		n += len(st.records)
		st.mu.RUnlock()
	}
	return n
}
