// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject write failures

package store

import (
	"context"
	"sort"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu           sync.RWMutex
	interactions []*Interaction
	saveErr      error
	closed       bool
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// FailSaves makes every later SaveInteraction return err. Pass nil to recover.
func (m *MockStore) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// SaveInteraction stores a copy of i.
func (m *MockStore) SaveInteraction(ctx context.Context, i *Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	prepare(i)

	// Make a copy to avoid external modification
	c := *i
	m.interactions = append(m.interactions, &c)
	return nil
}

// ListInteractions returns matching interactions, newest first.
func (m *MockStore) ListInteractions(ctx context.Context, f InteractionFilter) ([]*Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Interaction
	for _, i := range m.interactions {
		if f.Platform != "" && i.Platform != f.Platform {
			continue
		}
		if f.UserID != "" && i.UserID != f.UserID {
			continue
		}
		if f.Since != nil && i.CreatedAt.Before(*f.Since) {
			continue
		}
		c := *i
		out = append(out, &c)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if limit := normalizeLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored interactions.
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.interactions)
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
