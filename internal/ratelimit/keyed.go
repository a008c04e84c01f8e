package ratelimit

import (
	"sync"
	"time"

	"github.com/rtm-bot/translator-go/internal/metrics"
)

// KeyedConfig configures a KeyedLimiter instance.
type KeyedConfig struct {
	// Name identifies this limiter for metrics (e.g., "llm")
	Name string

	// Token bucket settings
	Burst      float64 // Maximum tokens (burst capacity)
	RefillRate float64 // Tokens refilled per second

	// Optional rolling 24h limit (0 = disabled)
	DailyLimit int

	// How often to clean up idle keys
	CleanupPeriod time.Duration

	// Optional metrics reporter
	Metrics *metrics.Metrics

	// Now overrides the clock (tests)
	Now func() time.Time
}

// KeyedLimiter tracks rate limits per key (user id). Each key owns a token
// bucket and, when DailyLimit is set, a sliding 24h window. Idle keys are
// cleaned up in the background.
type KeyedLimiter struct {
	mu      sync.RWMutex
	entries map[string]*keyedEntry
	config  KeyedConfig
	stopCh  chan struct{}
	once    sync.Once
}

// keyedEntry's mutex makes the two-layer check-then-consume atomic.
type keyedEntry struct {
	mu      sync.Mutex
	limiter *Limiter
	daily   *SlidingWindowCounter
}

// NewKeyedLimiter creates a per-key limiter and starts its cleanup loop.
//
//	limiter := NewKeyedLimiter(KeyedConfig{
//	    Name:          "llm",
//	    Burst:         20,
//	    RefillRate:    10.0 / 3600, // 10 tokens per hour
//	    DailyLimit:    60,
//	    CleanupPeriod: 5 * time.Minute,
//	})
//	defer limiter.Stop()
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 5 * time.Minute
	}

	kl := &KeyedLimiter{
		entries: make(map[string]*keyedEntry),
		config:  cfg,
		stopCh:  make(chan struct{}),
	}
	go kl.cleanupLoop()
	return kl
}

// Allow reports whether a request for key is allowed and consumes quota if so.
// Both the bucket and the daily window must pass; neither is consumed otherwise.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	entry := kl.getOrCreateEntry(key)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.daily.Check() || !entry.limiter.Check() {
		kl.config.Metrics.RecordRateLimiterDrop(kl.config.Name)
		return false
	}

	entry.daily.Consume()
	entry.limiter.Consume()
	return true
}

func (kl *KeyedLimiter) getOrCreateEntry(key string) *keyedEntry {
	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()
	if exists {
		return entry
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()

	// Double-check after acquiring write lock
	if entry, exists = kl.entries[key]; exists {
		return entry
	}
	entry = &keyedEntry{
		limiter: newWithClock(kl.config.Burst, kl.config.RefillRate, kl.config.Now),
		daily:   newSlidingWindowWithClock(kl.config.DailyLimit, 24*time.Hour, kl.config.Now),
	}
	kl.entries[key] = entry
	return entry
}

// GetAvailable returns the number of available tokens for a key.
func (kl *KeyedLimiter) GetAvailable(key string) float64 {
	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()
	if !exists {
		return kl.config.Burst
	}
	return entry.limiter.Available()
}

// GetDailyRemaining returns the remaining daily quota for a key,
// or -1 when the daily limit is disabled.
func (kl *KeyedLimiter) GetDailyRemaining(key string) int {
	if kl.config.DailyLimit <= 0 {
		return -1
	}
	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()
	if !exists {
		return kl.config.DailyLimit
	}
	return entry.daily.GetRemaining()
}

// GetActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) GetActiveCount() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.entries)
}

// cleanup removes keys whose bucket refilled and whose daily window is empty.
func (kl *KeyedLimiter) cleanup() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	for key, entry := range kl.entries {
		if entry.limiter.IsFull() && entry.daily.GetEffectiveCount() == 0 {
			delete(kl.entries, key)
		}
	}
	return len(kl.entries)
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.cleanup()
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call multiple times.
func (kl *KeyedLimiter) Stop() {
	kl.once.Do(func() { close(kl.stopCh) })
}
