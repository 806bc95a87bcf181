package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/garyellow/cardbot/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(cfg KeyedConfig) (*KeyedLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	kl := NewKeyedLimiter(cfg)
	kl.now = clock.Now
	return kl, clock
}

func TestKeyedLimiter_Basic(t *testing.T) {
	t.Parallel()

	kl, _ := newTestLimiter(KeyedConfig{Name: "test", Burst: 1, RefillRate: 1})
	defer kl.Stop()

	assert.True(t, kl.Allow("conv1"), "first request")
	assert.False(t, kl.Allow("conv1"), "second request exceeds burst")
	assert.True(t, kl.Allow("conv2"), "other key has its own bucket")
}

func TestKeyedLimiter_Refill(t *testing.T) {
	t.Parallel()

	kl, clock := newTestLimiter(KeyedConfig{Name: "test", Burst: 2, RefillRate: 0.5})
	defer kl.Stop()

	assert.True(t, kl.Allow("c"))
	assert.True(t, kl.Allow("c"))
	assert.False(t, kl.Allow("c"))

	clock.Advance(2 * time.Second)
	assert.True(t, kl.Allow("c"))
	assert.False(t, kl.Allow("c"))
}

func TestKeyedLimiter_EmptyKeyUnlimited(t *testing.T) {
	t.Parallel()

	kl, _ := newTestLimiter(KeyedConfig{Burst: 1, RefillRate: 1e-9})
	defer kl.Stop()

	for range 5 {
		assert.True(t, kl.Allow(""))
	}
	assert.Zero(t, kl.ActiveCount())
}

func TestKeyedLimiter_Available(t *testing.T) {
	t.Parallel()

	kl, _ := newTestLimiter(KeyedConfig{Burst: 3, RefillRate: 1e-9})
	defer kl.Stop()

	assert.InDelta(t, 3, kl.Available("new"), 0.001)
	kl.Allow("new")
	assert.InDelta(t, 2, kl.Available("new"), 0.001)
}

func TestKeyedLimiter_Cleanup(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	kl, clock := newTestLimiter(KeyedConfig{Name: "conversation", Burst: 2, RefillRate: 1, Metrics: m})
	defer kl.Stop()

	kl.Allow("idle")
	kl.Allow("busy")
	kl.Allow("busy")
	require.Equal(t, 2, kl.ActiveCount())

	clock.Advance(time.Second)
	// idle refilled to 2, busy only to 1
	assert.Equal(t, 1, kl.Cleanup())
	assert.InDelta(t, 1, testutil.ToFloat64(m.RateLimiterKeys.WithLabelValues("conversation")), 0)

	clock.Advance(time.Second)
	assert.Equal(t, 0, kl.Cleanup())
}

func TestKeyedLimiter_CleanupLoop(t *testing.T) {
	t.Parallel()

	kl := NewKeyedLimiter(KeyedConfig{Burst: 10, RefillRate: 1000, CleanupPeriod: 20 * time.Millisecond})
	defer kl.Stop()

	kl.Allow("c")
	assert.Eventually(t, func() bool { return kl.ActiveCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestKeyedLimiter_DropMetric(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	kl, _ := newTestLimiter(KeyedConfig{Name: "conversation", Burst: 1, RefillRate: 1e-9, Metrics: m})
	defer kl.Stop()

	kl.Allow("c")
	kl.Allow("c")
	kl.Allow("c")
	assert.InDelta(t, 2, testutil.ToFloat64(m.RateLimiterDropped.WithLabelValues("conversation")), 0)
}

func TestKeyedLimiter_Concurrent(t *testing.T) {
	t.Parallel()

	kl, _ := newTestLimiter(KeyedConfig{Burst: 50, RefillRate: 1e-9})
	defer kl.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed = map[string]int{}
	)
	for i := range 20 {
		wg.Go(func() {
			key := fmt.Sprintf("c%d", i%4)
			for range 20 {
				if kl.Allow(key) {
					mu.Lock()
					allowed[key]++
					mu.Unlock()
				}
			}
		})
	}
	wg.Wait()

	for key, n := range allowed {
		assert.Equal(t, 50, n, key)
	}
	assert.Equal(t, 4, kl.ActiveCount())
}

func TestKeyedLimiter_StopIdempotent(t *testing.T) {
	t.Parallel()

	kl := NewKeyedLimiter(KeyedConfig{Burst: 1, RefillRate: 1, CleanupPeriod: time.Hour})
	kl.Stop()
	kl.Stop()
}
