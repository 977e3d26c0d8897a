package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, rate float64, burst int) *MemoryLimiter {
	t.Helper()
	m := NewMemoryLimiter(rate, burst)
	t.Cleanup(func() { require.NoError(t, m.Close()) })
	return m
}

func TestMemoryLimiterBurstThenDeny(t *testing.T) {
	m := newTestLimiter(t, 10, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := m.Allow(ctx, "ip:203.0.113.9")
		require.NoError(t, err)
		assert.True(t, ok, "request %d is within the burst", i)
	}

	ok, err := m.Allow(ctx, "ip:203.0.113.9")
	require.NoError(t, err)
	assert.False(t, ok, "burst exhausted")
}

func TestMemoryLimiterRefill(t *testing.T) {
	// 1000 tokens/s refills one per millisecond.
	m := newTestLimiter(t, 1000, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = m.Allow(ctx, "ip:203.0.113.9")
	}
	ok, err := m.Allow(ctx, "ip:203.0.113.9")
	require.NoError(t, err)
	require.False(t, ok)

	time.Sleep(5 * time.Millisecond)

	ok, err = m.Allow(ctx, "ip:203.0.113.9")
	require.NoError(t, err)
	assert.True(t, ok, "tokens refill with elapsed time")
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	m := newTestLimiter(t, 10, 1)
	ctx := context.Background()

	ok, err := m.Allow(ctx, "ip:203.0.113.9")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = m.Allow(ctx, "ip:203.0.113.9")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = m.Allow(ctx, "ip:198.51.100.7")
	require.NoError(t, err)
	assert.True(t, ok, "another caller keeps its own bucket")
}

func TestMemoryLimiterRefillCapsAtBurst(t *testing.T) {
	m := newTestLimiter(t, 1000, 3)
	ctx := context.Background()

	_, _ = m.Allow(ctx, "ip:203.0.113.9")

	// Backdate so the refill computes far more than the burst.
	m.mu.Lock()
	m.buckets["ip:203.0.113.9"].touched = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	for i := 0; i < 3; i++ {
		ok, err := m.Allow(ctx, "ip:203.0.113.9")
		require.NoError(t, err)
		assert.True(t, ok, "request %d after long idle", i)
	}
	ok, err := m.Allow(ctx, "ip:203.0.113.9")
	require.NoError(t, err)
	assert.False(t, ok, "refill never exceeds the burst ceiling")
}

func TestMemoryLimiterConcurrentSharedKey(t *testing.T) {
	m := newTestLimiter(t, 100, 50)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				ok, err := m.Allow(ctx, "ip:203.0.113.9")
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	// 100 requests against a burst of 50 admit at most the burst.
	assert.LessOrEqual(t, allowed, 50)
	assert.Greater(t, allowed, 0)
}

func TestMemoryLimiterEvictsIdleBuckets(t *testing.T) {
	m := newTestLimiter(t, 10, 5)
	ctx := context.Background()

	_, _ = m.Allow(ctx, "ip:203.0.113.9")
	_, _ = m.Allow(ctx, "ip:198.51.100.7")

	m.mu.Lock()
	m.buckets["ip:203.0.113.9"].touched = time.Now().Add(-15 * time.Minute)
	m.mu.Unlock()

	m.evictIdle()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.buckets, "ip:203.0.113.9")
	assert.Contains(t, m.buckets, "ip:198.51.100.7", "recently used buckets survive")
}

func TestMemoryLimiterCloseIdempotent(t *testing.T) {
	m := NewMemoryLimiter(10, 5)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestNoopLimiterAlwaysAllows(t *testing.T) {
	var l NoopLimiter
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		ok, err := l.Allow(ctx, "ip:203.0.113.9")
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, l.Close())
}
