// Package cache provides a thread-safe in-memory memo with per-entry
// expiration and a size bound.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Memo maps keys to values that expire ttl after they were set. When the
// memo holds maxEntries values, setting a new key evicts the oldest one.
// A zero ttl means entries never expire; a zero maxEntries means no bound.
type Memo[K comparable, V any] struct {
	mu         sync.Mutex
	data       map[K]entry[V]
	order      []K
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// New creates an empty Memo.
func New[K comparable, V any](ttl time.Duration, maxEntries int) *Memo[K, V] {
	return &Memo[K, V]{
		data:       make(map[K]entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get retrieves a value. It returns ok=false if the key is missing or its
// entry has expired.
func (m *Memo[K, V]) Get(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.data[key]
	if !ok || m.expiredLocked(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key and restarts its expiry.
func (m *Memo[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expires time.Time
	if m.ttl > 0 {
		expires = m.now().Add(m.ttl)
	}
	if _, exists := m.data[key]; !exists {
		m.order = append(m.order, key)
		m.evictLocked()
	}
	m.data[key] = entry[V]{value: value, expires: expires}
}

// evictLocked drops the oldest keys until at most maxEntries remain.
// MUST be called with the lock held.
func (m *Memo[K, V]) evictLocked() {
	if m.maxEntries <= 0 {
		return
	}
	for len(m.order) > m.maxEntries {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.data, oldest)
	}
}

func (m *Memo[K, V]) expiredLocked(e entry[V]) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}

// Invalidate removes every entry.
func (m *Memo[K, V]) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[K]entry[V])
	m.order = nil
}

// Len returns the number of stored entries, including expired ones not
// yet evicted.
func (m *Memo[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
