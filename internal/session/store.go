package session

import (
	"sync"
	"time"
)

// DefaultTTL is the inactivity threshold after which a session is expired.
const DefaultTTL = 30 * time.Minute

// Store is the in-memory session map, keyed by citizen identifier. All
// access goes through the store's lock; per-citizen ordering of whole
// handling turns is the orchestrator's job.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a Store with the given inactivity threshold. A ttl of 0
// uses DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// GetOrCreate returns the citizen's current session, or a fresh one in
// LanguageSelection when none exists, the existing one has expired, or the
// existing one already completed. Idempotent: two immediate calls for the
// same citizen return the same *Session.
func (st *Store) GetOrCreate(citizenID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[citizenID]
	if ok && !st.expired(s) && s.State != StateCompleted {
		return s
	}
	s = &Session{
		CitizenID:      citizenID,
		State:          StateLanguageSelection,
		LastActivityAt: st.now(),
	}
	st.sessions[citizenID] = s
	return s
}

// Touch refreshes the session's activity timestamp. Called at the start of
// every handling turn, which also keeps the sweep from evicting a session
// that is mid-processing.
func (st *Store) Touch(s *Session) {
	st.mu.Lock()
	s.LastActivityAt = st.now()
	st.mu.Unlock()
}

// SweepExpired removes all sessions past the inactivity threshold and
// returns how many were evicted.
func (st *Store) SweepExpired() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, s := range st.sessions {
		if st.expired(s) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions (the dashboard's "active
// conversations" figure).
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *Store) expired(s *Session) bool {
	return st.now().Sub(s.LastActivityAt) > st.ttl
}
