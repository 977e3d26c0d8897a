package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Buckets idle past evictAfter are dropped by the background sweep so
// one-off callers do not accumulate forever.
const (
	evictAfter = 10 * time.Minute
	sweepEvery = time.Minute
)

// tokenBucket tracks the remaining allowance for one key.
type tokenBucket struct {
	remaining float64
	touched   time.Time
}

func (b *tokenBucket) refill(now time.Time, rate, burst float64) {
	b.remaining += now.Sub(b.touched).Seconds() * rate
	if b.remaining > burst {
		b.remaining = burst
	}
	b.touched = now
}

// MemoryLimiter is a per-key token bucket held in process memory. The
// submission endpoints use it keyed by caller address ("ip:<addr>");
// each key refills at rate tokens per second up to a burst ceiling.
type MemoryLimiter struct {
	rate  float64
	burst float64

	mu      sync.Mutex
	buckets map[string]*tokenBucket

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryLimiter creates a limiter allowing rate requests per second
// per key with the given burst capacity. A background sweep evicts
// idle keys; call Close to stop it.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		rate:    rate,
		burst:   float64(burst),
		buckets: make(map[string]*tokenBucket),
		done:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Allow consumes one token for key, reporting false when the bucket is
// empty. A key's first request starts from a full bucket.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	b, ok := m.buckets[key]
	if !ok {
		m.buckets[key] = &tokenBucket{remaining: m.burst - 1, touched: now}
		return true, nil
	}

	b.refill(now, m.rate, m.burst)
	if b.remaining < 1 {
		return false, nil
	}
	b.remaining--
	return true, nil
}

// Close stops the sweep goroutine. Safe to call more than once.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryLimiter) sweep() {
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *MemoryLimiter) evictIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-evictAfter)
	for key, b := range m.buckets {
		if b.touched.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}
