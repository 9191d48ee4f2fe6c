package explorer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StoreConfig holds configuration for the session store.
type StoreConfig struct {
	// Session is the template every new session is created from.
	// Its Logger is replaced by the store's.
	Session SessionConfig

	// IdleTTL is how long an untouched session survives (default: 30 minutes).
	IdleTTL time.Duration

	// SweepInterval is the minimum time between expiry sweeps (default: 1 minute).
	SweepInterval time.Duration

	// MaxSessions caps live sessions; 0 means unlimited.
	MaxSessions int

	Logger zerolog.Logger
}

// Store keeps live sessions in memory. Expired sessions are swept lazily on access.
type Store struct {
	template      SessionConfig
	idleTTL       time.Duration
	sweepInterval time.Duration
	maxSessions   int
	logger        zerolog.Logger
	now           func() time.Time

	mu        sync.RWMutex
	sessions  map[string]*Session
	lastSweep time.Time
}

// NewStore creates an empty session store.
func NewStore(cfg StoreConfig) *Store {
	tmpl := cfg.Session.withDefaults()
	tmpl.Logger = cfg.Logger

	s := &Store{
		template:      tmpl,
		idleTTL:       cfg.IdleTTL,
		sweepInterval: cfg.SweepInterval,
		maxSessions:   cfg.MaxSessions,
		logger:        cfg.Logger,
		now:           tmpl.Now,
		sessions:      make(map[string]*Session),
	}
	if s.idleTTL == 0 {
		s.idleTTL = 30 * time.Minute
	}
	if s.sweepInterval == 0 {
		s.sweepInterval = time.Minute
	}
	return s
}

// Create starts a new session.
func (s *Store) Create() (*Session, error) {
	s.sweepIfNeeded()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		// Expired sessions left between sweeps do not hold a slot.
		s.dropExpiredLocked(s.now())
		if len(s.sessions) >= s.maxSessions {
			return nil, ErrTooManySessions
		}
	}

	sess := NewSession(uuid.NewString(), s.template)
	s.sessions[sess.ID()] = sess

	s.logger.Debug().Str("session_id", sess.ID()).Int("live_sessions", len(s.sessions)).Msg("session created")

	return sess, nil
}

// Get returns a live session.
func (s *Store) Get(id string) (*Session, error) {
	s.sweepIfNeeded()

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || s.expired(sess, s.now()) {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete ends a session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of sessions held, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSweep = now
	return s.dropExpiredLocked(now)
}

// dropExpiredLocked removes idle sessions. Caller holds s.mu for writing.
func (s *Store) dropExpiredLocked(now time.Time) int {
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug().
			Int("expired_sessions", removed).
			Int("live_sessions", len(s.sessions)).
			Msg("swept idle sessions")
	}
	return removed
}

// Run sweeps expired sessions every SweepInterval until ctx is done, so idle
// sessions are released even when no request touches the store.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) sweepIfNeeded() {
	s.mu.RLock()
	due := s.now().Sub(s.lastSweep) >= s.sweepInterval
	s.mu.RUnlock()

	if due {
		s.Sweep()
	}
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return now.Sub(sess.idleSince()) > s.idleTTL
}
