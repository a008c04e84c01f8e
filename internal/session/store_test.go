package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm-bot/translator-go/internal/language"
	"github.com/rtm-bot/translator-go/internal/metrics"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestWithSession_PersistsState(t *testing.T) {
	t.Parallel()
	store := NewStore(Config{Now: newFakeClock().Now})
	ctx := context.Background()

	require.NoError(t, store.WithSession(ctx, "u1", func(s *Session) error {
		s.PendingText = "Bonjour le monde"
		s.DetectedLanguage = language.FR
		return nil
	}))

	require.NoError(t, store.WithSession(ctx, "u1", func(s *Session) error {
		assert.Equal(t, "Bonjour le monde", s.PendingText)
		assert.Equal(t, language.FR, s.DetectedLanguage)
		return nil
	}))

	require.NoError(t, store.WithSession(ctx, "u2", func(s *Session) error {
		assert.Empty(t, s.PendingText)
		return nil
	}))
	assert.Equal(t, 2, store.Len())
}

func TestWithSession_ReturnsCallbackError(t *testing.T) {
	t.Parallel()
	store := NewStore(Config{})
	boom := errors.New("boom")

	err := store.WithSession(context.Background(), "u1", func(*Session) error { return boom })
	assert.ErrorIs(t, err, boom)

	// Lock must be released after an error.
	assert.NoError(t, store.WithSession(context.Background(), "u1", func(*Session) error { return nil }))
}

func TestWithSession_SerializesSameUser(t *testing.T) {
	t.Parallel()
	store := NewStore(Config{})

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for range 20 {
		wg.Go(func() {
			_ = store.WithSession(context.Background(), "same", func(s *Session) error {
				n := inside.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(time.Millisecond)
				s.PendingText += "x"
				inside.Add(-1)
				return nil
			})
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	_ = store.WithSession(context.Background(), "same", func(s *Session) error {
		assert.Len(t, s.PendingText, 20)
		return nil
	})
}

func TestWithSession_ContextCancelledWhileWaiting(t *testing.T) {
	t.Parallel()
	store := NewStore(Config{})

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.WithSession(context.Background(), "u1", func(*Session) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := store.WithSession(ctx, "u1", func(*Session) error {
		t.Error("callback must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestSweep_IdleEviction(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := NewStore(Config{IdleTTL: time.Hour, Now: clock.Now, Metrics: m})
	ctx := context.Background()

	_ = store.WithSession(ctx, "idle", func(*Session) error { return nil })
	_ = store.WithSession(ctx, "subscriber", func(s *Session) error {
		s.SubscriptionExpiresAt = clock.Now().Add(30 * 24 * time.Hour)
		return nil
	})
	clock.Advance(2 * time.Hour)
	_ = store.WithSession(ctx, "fresh", func(*Session) error { return nil })

	res := store.Sweep()
	assert.Equal(t, SweepResult{Idle: 1}, res)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionEvictionsTotal.WithLabelValues("idle")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ActiveSessions))
}

func TestSweep_ExpiredSubscriberIsEvictable(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	store := NewStore(Config{IdleTTL: time.Hour, Now: clock.Now})

	_ = store.WithSession(context.Background(), "u", func(s *Session) error {
		s.SubscriptionExpiresAt = clock.Now().Add(time.Hour)
		return nil
	})
	clock.Advance(3 * time.Hour)

	assert.Equal(t, 1, store.Sweep().Idle)
	assert.Zero(t, store.Len())
}

func TestSweep_SkipsLockedEntries(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	store := NewStore(Config{IdleTTL: time.Minute, Now: clock.Now})

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.WithSession(context.Background(), "busy", func(*Session) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered
	clock.Advance(time.Hour)

	assert.Zero(t, store.Sweep().Idle)
	assert.Equal(t, 1, store.Len())
	close(release)
	<-done
}

func TestSweep_CapacityEvictsOldest(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	store := NewStore(Config{MaxEntries: 3, Now: clock.Now})
	ctx := context.Background()

	for i := range 5 {
		_ = store.WithSession(ctx, fmt.Sprintf("u%d", i), func(*Session) error { return nil })
		clock.Advance(time.Minute)
	}
	_ = store.WithSession(ctx, "u0", func(*Session) error { return nil }) // touch u0

	res := store.Sweep()
	assert.Equal(t, 2, res.Capacity)
	assert.Equal(t, 3, store.Len())

	// u1 and u2 were the least recently seen; u0 survives with its state.
	store.mu.RLock()
	_, hasU0 := store.entries["u0"]
	_, hasU1 := store.entries["u1"]
	_, hasU2 := store.entries["u2"]
	store.mu.RUnlock()
	assert.True(t, hasU0)
	assert.False(t, hasU1)
	assert.False(t, hasU2)
}

func TestWithSession_RetriesEvictedEntry(t *testing.T) {
	t.Parallel()
	store := NewStore(Config{})

	stale := store.getOrCreate("u1")
	stale.session.PendingText = "stale"

	// Simulate the sweep evicting the entry after lookup.
	store.mu.Lock()
	stale.evicted = true
	delete(store.entries, "u1")
	store.mu.Unlock()

	require.NoError(t, store.WithSession(context.Background(), "u1", func(s *Session) error {
		assert.Empty(t, s.PendingText, "a fresh session must be used")
		return nil
	}))
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	store := NewStore(Config{SweepInterval: time.Millisecond, IdleTTL: time.Nanosecond})
	store.Start()
	_ = store.WithSession(context.Background(), "u", func(*Session) error { return nil })

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	store.Stop()
	store.Stop()
}

func TestSubscribedAt(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"never subscribed", time.Time{}, false},
		{"future expiry", now.Add(time.Second), true},
		{"expiry equals now", now, false},
		{"past expiry", now.Add(-time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &Session{SubscriptionExpiresAt: tt.expiry}
			assert.Equal(t, tt.want, s.SubscribedAt(now))
		})
	}
}

func TestClearLock(t *testing.T) {
	t.Parallel()
	s := &Session{LockedCommand: "ai", AwaitingImage: &ImagePrompt{ImageURL: "https://x"}, PendingText: "keep"}
	s.ClearLock()
	assert.Empty(t, s.LockedCommand)
	assert.Nil(t, s.AwaitingImage)
	assert.Equal(t, "keep", s.PendingText)
}
