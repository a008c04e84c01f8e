package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rtm-bot/translator-go/internal/metrics"
)

func TestKeyedLimiter_PerKey(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{
		Name:          "llm",
		Burst:         1,
		RefillRate:    0.001,
		CleanupPeriod: time.Hour,
		Now:           newFakeClock().Now,
	})
	defer kl.Stop()

	if !kl.Allow("user1") {
		t.Error("user1 first request failed")
	}
	if kl.Allow("user1") {
		t.Error("user1 second request allowed (should limit)")
	}
	if !kl.Allow("user2") {
		t.Error("user2 first request failed")
	}
	if !kl.Allow("") {
		t.Error("empty key should never be limited")
	}
}

func TestKeyedLimiter_DailyLimitDoesNotBurnTokens(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	kl := NewKeyedLimiter(KeyedConfig{
		Name:          "llm",
		Burst:         10,
		RefillRate:    1,
		DailyLimit:    2,
		CleanupPeriod: time.Hour,
		Metrics:       m,
		Now:           clock.Now,
	})
	defer kl.Stop()

	kl.Allow("u")
	kl.Allow("u")
	if kl.Allow("u") {
		t.Fatal("daily limit should deny the third request")
	}
	if got := kl.GetAvailable("u"); got != 8 {
		t.Errorf("tokens = %v, want 8 (denied request must not consume)", got)
	}
	if got := kl.GetDailyRemaining("u"); got != 0 {
		t.Errorf("daily remaining = %d, want 0", got)
	}
	if got := testutil.ToFloat64(m.RateLimiterDropped.WithLabelValues("llm")); got != 1 {
		t.Errorf("dropped metric = %v, want 1", got)
	}
}

func TestKeyedLimiter_Cleanup(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	kl := NewKeyedLimiter(KeyedConfig{
		Name:          "llm",
		Burst:         2,
		RefillRate:    1,
		CleanupPeriod: time.Hour,
		Now:           clock.Now,
	})
	defer kl.Stop()

	kl.Allow("u1")
	if count := kl.cleanup(); count != 1 {
		t.Errorf("active key should survive cleanup, count = %d", count)
	}

	clock.Advance(time.Minute)
	if count := kl.cleanup(); count != 0 {
		t.Errorf("idle key should be cleaned, count = %d", count)
	}
}

func TestKeyedLimiter_Concurrent(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{
		Name:          "llm",
		Burst:         50,
		RefillRate:    0.0001,
		CleanupPeriod: time.Hour,
	})
	defer kl.Stop()

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := range 200 {
		wg.Go(func() {
			if kl.Allow(fmt.Sprintf("user%d", i%2)) {
				allowed.Add(1)
			}
		})
	}
	wg.Wait()

	if got := allowed.Load(); got != 100 {
		t.Errorf("allowed = %d, want exactly 100 (50 per key)", got)
	}
	kl.Stop()
	kl.Stop()
}
