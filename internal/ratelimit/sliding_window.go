package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowCounter approximates a rolling window with two fixed windows:
//
//	effective = currCount + prevCount × (remaining time in current window / window)
//
// A nil counter is disabled and allows everything.
type SlidingWindowCounter struct {
	mu              sync.Mutex
	currCount       int
	prevCount       int
	currWindowStart time.Time
	windowDuration  time.Duration
	maxRequests     int
	now             func() time.Time
}

// NewSlidingWindowCounter creates a counter allowing maxRequests per windowDuration.
// Returns nil if maxRequests <= 0 (disabled).
func NewSlidingWindowCounter(maxRequests int, windowDuration time.Duration) *SlidingWindowCounter {
	return newSlidingWindowWithClock(maxRequests, windowDuration, time.Now)
}

func newSlidingWindowWithClock(maxRequests int, windowDuration time.Duration, now func() time.Time) *SlidingWindowCounter {
	if maxRequests <= 0 {
		return nil
	}
	return &SlidingWindowCounter{
		currWindowStart: now(),
		windowDuration:  windowDuration,
		maxRequests:     maxRequests,
		now:             now,
	}
}

// Allow consumes one slot if the window is not full.
func (swc *SlidingWindowCounter) Allow() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	if swc.effective() >= float64(swc.maxRequests) {
		return false
	}
	swc.currCount++
	return true
}

// Check returns true if a request would be allowed (without consuming).
func (swc *SlidingWindowCounter) Check() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()
	return swc.effective() < float64(swc.maxRequests)
}

// Consume increments the counter (assumes Check() already passed).
func (swc *SlidingWindowCounter) Consume() {
	if swc == nil {
		return
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()
	if swc.effective() < float64(swc.maxRequests) {
		swc.currCount++
	}
}

// effective rotates expired windows and returns the weighted count.
// Must be called with mu held.
func (swc *SlidingWindowCounter) effective() float64 {
	elapsed := swc.now().Sub(swc.currWindowStart)

	if elapsed >= swc.windowDuration {
		windowsPassed := int(elapsed / swc.windowDuration)
		if windowsPassed == 1 {
			swc.prevCount = swc.currCount
		} else {
			swc.prevCount = 0
		}
		swc.currCount = 0
		swc.currWindowStart = swc.currWindowStart.Add(time.Duration(windowsPassed) * swc.windowDuration)
		elapsed = swc.now().Sub(swc.currWindowStart)
	}

	overlap := float64(swc.windowDuration-elapsed) / float64(swc.windowDuration)
	overlap = max(0, min(1, overlap))
	return float64(swc.currCount) + float64(swc.prevCount)*overlap
}

// GetEffectiveCount returns the current weighted count (for monitoring).
func (swc *SlidingWindowCounter) GetEffectiveCount() float64 {
	if swc == nil {
		return 0
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()
	return swc.effective()
}

// GetRemaining returns the approximate remaining quota, or -1 when disabled.
func (swc *SlidingWindowCounter) GetRemaining() int {
	if swc == nil {
		return -1
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()
	return max(0, int(float64(swc.maxRequests)-swc.effective()))
}
