package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeRecorder struct {
	mu      sync.Mutex
	limited map[string]int
	keys    int
}

func (f *fakeRecorder) RecordRateLimited(limiter string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limited == nil {
		f.limited = make(map[string]int)
	}
	f.limited[limiter]++
}

func (f *fakeRecorder) SetRateLimiterKeys(_ string, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = count
}

func TestKeyedLimiter_Basic(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{}
	kl := NewKeyedLimiter(KeyedConfig{Name: "session", Burst: 1, RefillRate: 0.001, Recorder: rec})
	defer kl.Stop()

	if !kl.Allow("s1") {
		t.Error("s1 first request denied")
	}
	if kl.Allow("s1") {
		t.Error("s1 second request allowed with burst 1")
	}
	if !kl.Allow("s2") {
		t.Error("s2 first request denied")
	}
	if got := rec.limited["session"]; got != 1 {
		t.Errorf("limited count = %d, want 1", got)
	}
	if d := kl.RetryAfter("s1"); d <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", d)
	}
}

func TestKeyedLimiter_EmptyKey(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{Name: "session", Burst: 1, RefillRate: 0.001})
	defer kl.Stop()

	for range 5 {
		if !kl.Allow("") {
			t.Fatal("empty key must never be limited")
		}
	}
	if kl.GetActiveCount() != 0 {
		t.Errorf("empty key must not be tracked")
	}
	if kl.RetryAfter("") != 0 {
		t.Errorf("RetryAfter(\"\") must be zero")
	}
}

func TestKeyedLimiter_Cleanup(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{}
	kl := NewKeyedLimiter(KeyedConfig{Name: "session", Burst: 2, RefillRate: 1000, Recorder: rec})
	defer kl.Stop()

	kl.Allow("u1")
	if got := kl.GetActiveCount(); got != 1 {
		t.Fatalf("active count = %d, want 1", got)
	}

	time.Sleep(20 * time.Millisecond)
	if got := kl.Cleanup(); got != 0 {
		t.Errorf("Cleanup left %d keys, want 0", got)
	}
	if rec.keys != 0 {
		t.Errorf("recorded keys = %d, want 0", rec.keys)
	}
}

func TestKeyedLimiter_GetAvailable(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{Name: "session", Burst: 3, RefillRate: 0.001})
	defer kl.Stop()

	if got := kl.GetAvailable("new"); got != 3 {
		t.Errorf("GetAvailable(new) = %v, want 3", got)
	}
	kl.Allow("new")
	if got := kl.GetAvailable("new"); got > 2.01 || got < 1.99 {
		t.Errorf("GetAvailable after one request = %v, want ~2", got)
	}
}

func TestKeyedLimiter_Concurrent(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{Name: "session", Burst: 50, RefillRate: 0.001, CleanupPeriod: time.Millisecond})
	defer kl.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := range 100 {
		wg.Go(func() {
			if kl.Allow(fmt.Sprintf("k%d", i%2)) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed = %d, want 100 (50 per key)", allowed)
	}
}

func TestKeyedLimiter_StopTwice(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{Name: "session", Burst: 1, RefillRate: 1, CleanupPeriod: time.Hour})
	kl.Stop()
	kl.Stop()
}
