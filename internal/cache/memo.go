// Package cache provides keyed, time-boxed memoization with request
// coalescing: at most one producer runs per key at any time, and a burst of
// identical requests shares one execution and one result.
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	val      V
	storedAt time.Time
}

// Memo is a mutex-guarded TTL cache fronted by a singleflight group.
// Expired entries are evicted lazily at read time; there is no sweeper.
// Producer errors propagate to every coalesced caller and are never cached.
type Memo[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	group   singleflight.Group
	now     func() time.Time
}

// New creates an empty Memo.
func New[V any]() *Memo[V] {
	return &Memo[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// WithNow sets the clock used for TTL checks. For tests.
func (m *Memo[V]) WithNow(now func() time.Time) *Memo[V] {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	return m
}

// Do returns the cached value for key if one exists within ttl; otherwise it
// runs producer (coalescing concurrent callers onto a single execution) and
// caches the result on success. The second return reports a cache hit.
//
// The producer runs under the context of whichever caller started the
// shared execution; later coalesced callers only wait on the result.
func (m *Memo[V]) Do(ctx context.Context, key string, ttl time.Duration, producer func(ctx context.Context) (V, error)) (V, bool, error) {
	if val, ok := m.lookup(key, ttl); ok {
		return val, true, nil
	}
	val, err := m.run(ctx, key, ttl, producer, false)
	return val, false, err
}

// Refresh bypasses the cache read but still coalesces concurrent refreshes
// for the same key and records the fresh result.
func (m *Memo[V]) Refresh(ctx context.Context, key string, ttl time.Duration, producer func(ctx context.Context) (V, error)) (V, error) {
	return m.run(ctx, key, ttl, producer, true)
}

func (m *Memo[V]) run(ctx context.Context, key string, ttl time.Duration, producer func(ctx context.Context) (V, error), force bool) (V, error) {
	res, err, shared := m.group.Do(key, func() (any, error) {
		// A just-settled execution may have populated the entry between the
		// caller's miss and this flight starting.
		if !force {
			if val, ok := m.lookup(key, ttl); ok {
				return val, nil
			}
		}

		val, err := producer(ctx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.entries[key] = entry[V]{val: val, storedAt: m.now()}
		m.mu.Unlock()
		return val, nil
	})
	if shared {
		zap.L().Debug("cache: coalesced duplicate request", zap.String("key", key))
	}
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

func (m *Memo[V]) lookup(key string, ttl time.Duration) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if m.now().Sub(e.storedAt) >= ttl {
		delete(m.entries, key)
		var zero V
		return zero, false
	}
	return e.val, true
}

// Forget drops the cached entry for key, if any.
func (m *Memo[V]) Forget(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Len returns the number of cached entries, expired or not.
func (m *Memo[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
