package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestIdempotencyCache_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := NewIdempotencyCache()
	c.m.now = clock.now

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, c.Set(ctx, "k", []byte(`{"id":"1"}`), time.Minute))
	v, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(v))

	clock.t = clock.t.Add(2 * time.Minute)
	v, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestNonceStore_CheckAndSet(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := NewNonceStore()
	s.m.now = clock.now

	ok, err := s.CheckAndSet(ctx, "alice", "n1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = s.CheckAndSet(ctx, "alice", "n1", time.Minute)
	assert.False(t, ok, "replayed nonce")

	ok, _ = s.CheckAndSet(ctx, "bob", "n1", time.Minute)
	assert.True(t, ok, "nonces are scoped per funding source")

	clock.t = clock.t.Add(2 * time.Minute)
	ok, _ = s.CheckAndSet(ctx, "alice", "n1", time.Minute)
	assert.True(t, ok, "expired nonce may be reused")
}

func TestRateLimitStore_Allow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := NewRateLimitStore()
	s.now = clock.now

	for i := 0; i < 3; i++ {
		allowed, remaining, err := s.Allow(ctx, "alice", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 2-i, remaining)
	}
	allowed, remaining, _ := s.Allow(ctx, "alice", 3, time.Minute)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)

	clock.t = clock.t.Add(61 * time.Second)
	allowed, _, _ = s.Allow(ctx, "alice", 3, time.Minute)
	assert.True(t, allowed, "new window")
}

func TestNonceStore_SweepsExpiredNonces(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := NewNonceStore()
	s.m.now = clock.now
	s.m.sweepEvery = 10 * time.Millisecond

	for i := 0; i < 10000; i++ {
		ok, err := s.CheckAndSet(ctx, "alice", fmt.Sprintf("n-%d", i), time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Len(t, s.m.items, 10000)

	clock.t = clock.t.Add(20 * time.Millisecond)
	ok, err := s.CheckAndSet(ctx, "alice", "fresh", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, s.m.items, 1)
}

func TestIdempotencyCache_SweepsOnWrite(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := NewIdempotencyCache()
	c.m.now = clock.now

	require.NoError(t, c.Set(ctx, "old", []byte("1"), time.Second))
	clock.t = clock.t.Add(2 * time.Minute)
	require.NoError(t, c.Set(ctx, "new", []byte("2"), time.Hour))

	assert.Len(t, c.m.items, 1)
	v, _ := c.Get(ctx, "new")
	assert.Equal(t, "2", string(v))
}

func TestRateLimitStore_SweepsExpiredWindows(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := NewRateLimitStore()
	s.now = clock.now
	s.sweepEvery = 10 * time.Millisecond

	for i := 0; i < 10000; i++ {
		_, _, err := s.Allow(ctx, fmt.Sprintf("fs:forged-%d", i), 5, time.Millisecond)
		require.NoError(t, err)
	}
	assert.Len(t, s.windows, 10000)

	clock.t = clock.t.Add(20 * time.Millisecond)
	_, _, err := s.Allow(ctx, "fs:alice", 5, time.Minute)
	require.NoError(t, err)
	assert.Len(t, s.windows, 1)
}

func TestRateLimitStore_OverflowWindowWhenFull(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := NewRateLimitStore()
	s.now = clock.now
	s.maxWindows = 2

	for _, key := range []string{"fs:alice", "fs:bob"} {
		allowed, _, err := s.Allow(ctx, key, 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	// New keys share one window once the store is full.
	allowed, _, _ := s.Allow(ctx, "fs:forged-1", 2, time.Minute)
	assert.True(t, allowed)
	allowed, _, _ = s.Allow(ctx, "fs:forged-2", 2, time.Minute)
	assert.True(t, allowed)
	allowed, remaining, _ := s.Allow(ctx, "fs:forged-3", 2, time.Minute)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.Len(t, s.windows, 3)

	// Tracked keys keep their own quota.
	allowed, remaining, _ = s.Allow(ctx, "fs:alice", 2, time.Minute)
	assert.True(t, allowed)
	assert.Equal(t, 0, remaining)
}
