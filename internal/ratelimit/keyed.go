// Package ratelimit provides per-key token bucket limiting for inbound turns.
package ratelimit

import (
	"sync"
	"time"

	"github.com/garyellow/cardbot/internal/metrics"
	"golang.org/x/time/rate"
)

// KeyedConfig configures a KeyedLimiter instance.
type KeyedConfig struct {
	// Name identifies this limiter for metrics (e.g., "conversation")
	Name string

	// Token bucket settings
	Burst      int     // Maximum tokens (burst capacity)
	RefillRate float64 // Tokens refilled per second

	// How often idle buckets are dropped. Zero disables cleanup.
	CleanupPeriod time.Duration

	// Optional metrics reporter
	Metrics *metrics.Metrics
}

// KeyedLimiter tracks one token bucket per key (e.g. conversation ID) and
// periodically drops buckets that have refilled completely.
type KeyedLimiter struct {
	mu       sync.RWMutex
	entries  map[string]*rate.Limiter
	config   KeyedConfig
	onDrop   func()
	onUpdate func(count int)
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewKeyedLimiter creates a new per-key rate limiter. Call Stop when done.
//
// Example:
//
//	limiter := NewKeyedLimiter(KeyedConfig{
//	    Name:          "conversation",
//	    Burst:         10,
//	    RefillRate:    1,
//	    CleanupPeriod: 5 * time.Minute,
//	})
//	defer limiter.Stop()
//
//	if limiter.Allow(conversationID) {
//	    // Process turn
//	}
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	kl := &KeyedLimiter{
		entries: make(map[string]*rate.Limiter),
		config:  cfg,
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	if cfg.Metrics != nil {
		kl.onDrop = func() {
			cfg.Metrics.RecordRateLimiterDrop(cfg.Name)
		}
		kl.onUpdate = func(count int) {
			cfg.Metrics.SetRateLimiterKeys(cfg.Name, count)
		}
	}

	if cfg.CleanupPeriod > 0 {
		go kl.cleanupLoop()
	}

	return kl
}

// Allow reports whether a request for key may proceed, consuming a token if
// so. Empty keys are never limited.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	if kl.getOrCreate(key).AllowN(kl.now(), 1) {
		return true
	}
	if kl.onDrop != nil {
		kl.onDrop()
	}
	return false
}

func (kl *KeyedLimiter) getOrCreate(key string) *rate.Limiter {
	kl.mu.RLock()
	lim, ok := kl.entries[key]
	kl.mu.RUnlock()
	if ok {
		return lim
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()

	// Double-check after acquiring write lock
	if lim, ok = kl.entries[key]; ok {
		return lim
	}
	lim = rate.NewLimiter(rate.Limit(kl.config.RefillRate), kl.config.Burst)
	kl.entries[key] = lim
	return lim
}

// Available returns the tokens currently available for key.
// Unknown keys report a full bucket.
func (kl *KeyedLimiter) Available(key string) float64 {
	kl.mu.RLock()
	lim, ok := kl.entries[key]
	kl.mu.RUnlock()

	if !ok {
		return float64(kl.config.Burst)
	}
	return lim.TokensAt(kl.now())
}

// ActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) ActiveCount() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.entries)
}

// Cleanup drops buckets that are full again and returns the remaining count.
func (kl *KeyedLimiter) Cleanup() int {
	now := kl.now()
	full := float64(kl.config.Burst)

	kl.mu.Lock()
	for key, lim := range kl.entries {
		if lim.TokensAt(now) >= full {
			delete(kl.entries, key)
		}
	}
	count := len(kl.entries)
	kl.mu.Unlock()

	if kl.onUpdate != nil {
		kl.onUpdate(count)
	}
	return count
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.Cleanup()
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call multiple times.
func (kl *KeyedLimiter) Stop() {
	kl.stopOnce.Do(func() { close(kl.stopCh) })
}
