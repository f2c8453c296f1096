// ABOUTME: Namespace-bound view over a Store handed to plugins.
// ABOUTME: Keeps plugin keys from colliding with the engine's or each other's.

package contextstore

import "time"

// Namespace is a Store restricted to one namespace. The zero value has no
// backing store: reads are absent and writes are dropped.
type Namespace struct {
	store Store
	name  string
}

// Scope returns a view of s limited to namespace name.
func Scope(s Store, name string) Namespace {
	if name == "" {
		name = DefaultNamespace
	}
	return Namespace{store: s, name: name}
}

// Name returns the namespace this view writes to.
func (n Namespace) Name() string {
	return n.name
}

// Get reads key from the namespace.
func (n Namespace) Get(key string) (any, bool) {
	if n.store == nil {
		return nil, false
	}
	return n.store.Get(key, n.name)
}

// Set writes key with the store default TTL.
func (n Namespace) Set(key string, value any) {
	n.SetTTL(key, value, 0)
}

// SetTTL writes key with an explicit TTL.
func (n Namespace) SetTTL(key string, value any, ttl time.Duration) {
	if n.store == nil {
		return
	}
	n.store.Set(key, value, SetOptions{TTL: ttl, Namespace: n.name})
}

// SetIfAbsent writes key only if no live entry exists.
func (n Namespace) SetIfAbsent(key string, value any, ttl time.Duration) bool {
	if n.store == nil {
		return false
	}
	return n.store.SetIfAbsent(key, value, SetOptions{TTL: ttl, Namespace: n.name})
}

// Delete removes key from the namespace.
func (n Namespace) Delete(key string) {
	if n.store == nil {
		return
	}
	n.store.Delete(key, n.name)
}
