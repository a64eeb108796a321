package session

import (
	"sync"
	"time"
)

// Registry owns the mapping from conversation key to live session. No other
// component holds a session reference beyond a single operation.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	tunables Tunables
	now      func() time.Time
}

// NewRegistry creates a registry with an injected clock. A nil clock falls
// back to time.Now.
func NewRegistry(tunables Tunables, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sessions: make(map[string]*Session),
		tunables: tunables.withDefaults(),
		now:      now,
	}
}

// GetOrCreate returns the session for key, creating it if absent. Creation is
// idempotent: concurrent calls for the same key observe a single session.
func (r *Registry) GetOrCreate(key string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[key]
	r.mu.RUnlock()
	if ok {
		return s, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s, false
	}
	s = newSession(key, r.now().UnixMilli(), r.tunables)
	r.sessions[key] = s
	return s, true
}

// Get returns the session for key, or nil when absent.
func (r *Registry) Get(key string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[key]
}

// Remove deletes the session for key. Returns the removed session, or nil
// when absent.
func (r *Registry) Remove(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	if !ok {
		return nil
	}
	delete(r.sessions, key)
	return s
}

// Keys returns a snapshot of the registered conversation keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Now exposes the registry clock so collaborators share one time source.
func (r *Registry) Now() time.Time {
	return r.now()
}
