package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rtm-bot/translator-go/internal/logger"
	"github.com/rtm-bot/translator-go/internal/metrics"
)

// Config configures a Store.
type Config struct {
	// IdleTTL evicts sessions not touched for longer than this.
	IdleTTL time.Duration
	// SweepInterval is the period of the background sweep.
	SweepInterval time.Duration
	// MaxEntries triggers capacity eviction of the oldest idle sessions (0 = unbounded).
	MaxEntries int

	Metrics *metrics.Metrics
	Logger  *logger.Logger

	// Now overrides the clock (tests)
	Now func() time.Time
}

// Store maps user ids to sessions. Each entry carries its own lock so turns
// of one user are serialized while different users proceed in parallel.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	config  Config

	kick   chan struct{}
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// entry.lock is a one-slot channel so acquisition can honour a context.
// evicted and lastSeen are only touched while lock is held.
type entry struct {
	lock     chan struct{}
	session  *Session
	lastSeen time.Time
	evicted  bool
}

// NewStore creates a store. Call Start to run the background sweep.
func NewStore(cfg Config) *Store {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	return &Store{
		entries: make(map[string]*entry),
		config:  cfg,
		kick:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// WithSession runs fn with exclusive access to the session of userID,
// creating it on first use. The lock is held for the whole call, so fn may
// perform blocking work that belongs to the same turn.
func (s *Store) WithSession(ctx context.Context, userID string, fn func(*Session) error) error {
	for {
		e := s.getOrCreate(userID)

		select {
		case e.lock <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		// The sweep removed this entry between lookup and acquisition.
		if e.evicted {
			<-e.lock
			continue
		}

		return s.run(e, fn)
	}
}

func (s *Store) run(e *entry, fn func(*Session) error) error {
	defer func() {
		e.lastSeen = s.config.Now()
		<-e.lock
	}()
	return fn(e.session)
}

func (s *Store) getOrCreate(userID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok = s.entries[userID]; ok {
		return e
	}
	e = &entry{
		lock:     make(chan struct{}, 1),
		session:  &Session{},
		lastSeen: s.config.Now(),
	}
	s.entries[userID] = e
	s.config.Metrics.SetActiveSessions(len(s.entries))

	if s.config.MaxEntries > 0 && len(s.entries) > s.config.MaxEntries {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
	return e
}

// Len returns the number of sessions held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SweepResult counts the sessions removed by one sweep.
type SweepResult struct {
	Idle     int
	Capacity int
}

// Sweep evicts idle sessions and, above MaxEntries, the least recently seen
// ones. Sessions in use and sessions with an active subscription are kept.
func (s *Store) Sweep() SweepResult {
	now := s.config.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	type candidate struct {
		key string
		e   *entry
	}
	var (
		result SweepResult
		held   []candidate
	)

	for key, e := range s.entries {
		select {
		case e.lock <- struct{}{}:
		default:
			continue // turn in progress
		}

		if e.session.SubscribedAt(now) {
			<-e.lock
			continue
		}
		if s.config.IdleTTL > 0 && now.Sub(e.lastSeen) > s.config.IdleTTL {
			e.evicted = true
			delete(s.entries, key)
			<-e.lock
			result.Idle++
			continue
		}
		held = append(held, candidate{key: key, e: e})
	}

	if over := len(s.entries) - s.config.MaxEntries; s.config.MaxEntries > 0 && over > 0 {
		slices.SortFunc(held, func(a, b candidate) int {
			return a.e.lastSeen.Compare(b.e.lastSeen)
		})
		for _, c := range held[:min(over, len(held))] {
			c.e.evicted = true
			delete(s.entries, c.key)
			result.Capacity++
		}
	}

	for _, c := range held {
		<-c.e.lock
	}

	s.config.Metrics.RecordSessionEviction("idle", result.Idle)
	s.config.Metrics.RecordSessionEviction("capacity", result.Capacity)
	s.config.Metrics.SetActiveSessions(len(s.entries))
	return result
}

// Start runs the sweep every SweepInterval and whenever an insert exceeds
// MaxEntries, until Stop is called.
func (s *Store) Start() {
	s.wg.Go(s.sweepLoop)
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		case <-s.kick:
		}
		res := s.Sweep()
		if s.config.Logger != nil && res.Idle+res.Capacity > 0 {
			s.config.Logger.WithModule("session").Debug("Session sweep completed",
				"idle_evicted", res.Idle,
				"capacity_evicted", res.Capacity,
				"remaining", s.Len(),
			)
		}
	}
}

// Stop stops the sweep loop and waits for it to exit. Safe to call multiple times.
func (s *Store) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
