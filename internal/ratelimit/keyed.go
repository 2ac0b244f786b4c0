// Package ratelimit provides per-key token bucket limiting for chat sessions.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Recorder receives limiter events. metrics.Metrics implements it.
type Recorder interface {
	RecordRateLimited(limiter string)
	SetRateLimiterKeys(limiter string, count int)
}

// KeyedConfig configures a KeyedLimiter instance.
type KeyedConfig struct {
	// Name identifies this limiter for metrics (e.g., "session", "ip")
	Name string

	// Token bucket settings
	Burst      int     // Maximum tokens (burst capacity)
	RefillRate float64 // Tokens refilled per second

	// CleanupPeriod is how often idle keys are dropped. Zero disables cleanup.
	CleanupPeriod time.Duration

	// Optional metrics reporter
	Recorder Recorder
}

// KeyedLimiter tracks rate limits per key (e.g., session ID, client IP).
// It creates a separate rate.Limiter for each key and drops keys whose bucket
// has refilled completely.
type KeyedLimiter struct {
	mu      sync.RWMutex
	entries map[string]*rate.Limiter
	config  KeyedConfig
	stopCh  chan struct{}
	once    sync.Once
}

// NewKeyedLimiter creates a new per-key rate limiter.
//
// Example:
//
//	limiter := NewKeyedLimiter(KeyedConfig{
//	    Name:          "session",
//	    Burst:         10,
//	    RefillRate:    0.5, // 1 token every 2 seconds
//	    CleanupPeriod: 5 * time.Minute,
//	})
//	defer limiter.Stop()
//
//	if limiter.Allow("session-123") {
//	    // Process request
//	}
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	kl := &KeyedLimiter{
		entries: make(map[string]*rate.Limiter),
		config:  cfg,
		stopCh:  make(chan struct{}),
	}
	if cfg.CleanupPeriod > 0 {
		go kl.cleanupLoop()
	}
	return kl
}

// Allow reports whether a request for key may proceed and consumes a token
// when it does. The empty key is never limited.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}
	if kl.limiter(key).Allow() {
		return true
	}
	if kl.config.Recorder != nil {
		kl.config.Recorder.RecordRateLimited(kl.config.Name)
	}
	return false
}

// RetryAfter returns how long key has to wait for its next token.
func (kl *KeyedLimiter) RetryAfter(key string) time.Duration {
	if key == "" {
		return 0
	}
	r := kl.limiter(key).Reserve()
	defer r.Cancel()
	return r.Delay()
}

func (kl *KeyedLimiter) limiter(key string) *rate.Limiter {
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

// GetAvailable returns the number of available tokens for a key.
// Returns Burst if the key has no limiter yet.
func (kl *KeyedLimiter) GetAvailable(key string) float64 {
	kl.mu.RLock()
	lim, ok := kl.entries[key]
	kl.mu.RUnlock()
	if !ok {
		return float64(kl.config.Burst)
	}
	return lim.Tokens()
}

// GetActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) GetActiveCount() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.entries)
}

// Cleanup drops every key whose bucket is full and returns the remaining count.
func (kl *KeyedLimiter) Cleanup() int {
	kl.mu.Lock()
	for key, lim := range kl.entries {
		if lim.Tokens() >= float64(kl.config.Burst) {
			delete(kl.entries, key)
		}
	}
	count := len(kl.entries)
	kl.mu.Unlock()

	if kl.config.Recorder != nil {
		kl.config.Recorder.SetRateLimiterKeys(kl.config.Name, count)
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
	kl.once.Do(func() { close(kl.stopCh) })
}
