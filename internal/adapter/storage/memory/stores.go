package memory

import (
	"context"
	"sync"
	"time"
)

const (
	defaultSweepInterval = time.Minute
	defaultMaxWindows    = 100_000

	// overflowKey is the window shared by new keys once the store is full.
	overflowKey = "\x00overflow"
)

type expiring struct {
	value     []byte
	expiresAt time.Time
}

// ttlMap is a mutex-guarded map whose entries expire on access. Writes also
// drop every expired entry, at most once per sweepEvery.
type ttlMap struct {
	mu         sync.Mutex
	items      map[string]expiring
	now        func() time.Time
	sweepEvery time.Duration
	nextSweep  time.Time
}

func newTTLMap() ttlMap {
	return ttlMap{items: make(map[string]expiring), now: time.Now, sweepEvery: defaultSweepInterval}
}

func (m *ttlMap) setLocked(key string, value []byte, ttl time.Duration) {
	now := m.now()
	m.sweepLocked(now)
	m.items[key] = expiring{value: value, expiresAt: now.Add(ttl)}
}

func (m *ttlMap) sweepLocked(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	for k, it := range m.items {
		if now.After(it.expiresAt) {
			delete(m.items, k)
		}
	}
	m.nextSweep = now.Add(m.sweepEvery)
}

func (m *ttlMap) getLocked(key string) ([]byte, bool) {
	it, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if m.now().After(it.expiresAt) {
		delete(m.items, key)
		return nil, false
	}
	return it.value, true
}

// IdempotencyCache implements ports.IdempotencyCache in memory.
type IdempotencyCache struct {
	m ttlMap
}

// NewIdempotencyCache creates an empty cache.
func NewIdempotencyCache() *IdempotencyCache {
	return &IdempotencyCache{m: newTTLMap()}
}

// Get returns the cached value or nil.
func (c *IdempotencyCache) Get(_ context.Context, key string) ([]byte, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	v, _ := c.m.getLocked(key)
	return v, nil
}

// Set stores value for ttl.
func (c *IdempotencyCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.setLocked(key, append([]byte(nil), value...), ttl)
	return nil
}

// NonceStore implements ports.NonceStore in memory.
type NonceStore struct {
	m ttlMap
}

// NewNonceStore creates an empty nonce store.
func NewNonceStore() *NonceStore {
	return &NonceStore{m: newTTLMap()}
}

// CheckAndSet records the nonce and reports whether it was unused.
func (s *NonceStore) CheckAndSet(_ context.Context, fundingSourceID string, nonce string, ttl time.Duration) (bool, error) {
	key := fundingSourceID + ":" + nonce
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, used := s.m.getLocked(key); used {
		return false, nil
	}
	s.m.setLocked(key, nil, ttl)
	return true, nil
}

// RateLimitStore implements ports.RateLimitStore with fixed windows in memory.
// At most maxWindows keys are tracked; further keys share one overflow window
// until expired windows are swept.
type RateLimitStore struct {
	mu         sync.Mutex
	windows    map[string]*window
	now        func() time.Time
	maxWindows int
	sweepEvery time.Duration
	nextSweep  time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// NewRateLimitStore creates an empty rate limit store.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{
		windows:    make(map[string]*window),
		now:        time.Now,
		maxWindows: defaultMaxWindows,
		sweepEvery: defaultSweepInterval,
	}
}

// Allow counts one request for key.
func (s *RateLimitStore) Allow(_ context.Context, key string, limit int, win time.Duration) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	w, ok := s.windows[key]
	if !ok && len(s.windows) >= s.maxWindows {
		key = overflowKey
		w, ok = s.windows[key]
	}
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(win)}
		s.windows[key] = w
	}
	w.count++

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return w.count <= limit, remaining, nil
}

func (s *RateLimitStore) sweepLocked(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	for k, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, k)
		}
	}
	s.nextSweep = now.Add(s.sweepEvery)
}
