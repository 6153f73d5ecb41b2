package quiz

import (
	"sync"
)

// Registry owns the active sessions, keyed by user id
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]*Session)}
}

// Get returns the user's session or nil
func (r *Registry) Get(userID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[userID]
}

// Create returns the user's session, creating an unregistered one if absent
func (r *Registry) Create(userID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		s = &Session{UserID: userID}
		r.sessions[userID] = s
	}
	return s
}

// Destroy removes the session. The caller must hold s.mu.
func (r *Registry) Destroy(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.UserID] == s {
		delete(r.sessions, s.UserID)
	}
	s.destroyed = true
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// acquire returns the user's live session with its lock held
func (r *Registry) acquire(userID int64) *Session {
	for {
		s := r.Create(userID)
		s.mu.Lock()
		if !s.destroyed {
			return s
		}
		s.mu.Unlock()
	}
}

func (r *Registry) snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// sweep destroys every idle session matching stale. Sessions busy with an
// event are skipped and looked at again on the next sweep.
func (r *Registry) sweep(stale func(*Session) bool) int {
	n := 0
	for _, s := range r.snapshot() {
		if !s.mu.TryLock() {
			continue
		}
		if !s.destroyed && stale(s) {
			s.stopTimer()
			r.Destroy(s)
			n++
		}
		s.mu.Unlock()
	}
	return n
}
