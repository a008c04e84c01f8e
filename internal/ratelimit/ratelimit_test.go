package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiter_AllowAndRefill(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := newWithClock(2, 1, clock.Now)

	if !l.Allow() || !l.Allow() {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow() {
		t.Fatal("third request should be denied")
	}

	clock.Advance(time.Second)
	if !l.Allow() {
		t.Error("one token should refill after 1s")
	}

	clock.Advance(time.Hour)
	if got := l.Available(); got != 2 {
		t.Errorf("Available() = %v, want capped at 2", got)
	}
	if !l.IsFull() {
		t.Error("IsFull() should be true after long idle")
	}
}

func TestLimiter_CheckDoesNotConsume(t *testing.T) {
	t.Parallel()
	l := newWithClock(1, 0.001, newFakeClock().Now)

	for range 3 {
		if !l.Check() {
			t.Fatal("Check() should not consume")
		}
	}
	l.Consume()
	if l.Check() {
		t.Error("Check() should fail after Consume()")
	}
}

func TestLimiter_Wait(t *testing.T) {
	t.Parallel()
	l := New(1, 100) // 10ms per token

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() = %v", err)
	}
	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait() = %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("second Wait() should block until refill")
	}
}

func TestLimiter_WaitCanceled(t *testing.T) {
	t.Parallel()
	l := New(1, 0.01)
	_ = l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want deadline exceeded", err)
	}
}
