package gateway

import (
	"sync"
)

// Registry is the process-wide index of live sessions, kept for
// observability. Lifecycle: insert when a session turns ACTIVE, remove on
// CLOSED. The fan-out path never iterates it; sessions receive from the bus
// independently.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*Session
	byUser map[string]map[string]*Session // user -> conn_id -> session
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]*Session),
		byUser: make(map[string]map[string]*Session),
	}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConn[s.ConnID] = s
	m := r.byUser[s.UserID]
	if m == nil {
		m = make(map[string]*Session)
		r.byUser[s.UserID] = m
	}
	m[s.ConnID] = s
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byConn, s.ConnID)
	if m := r.byUser[s.UserID]; m != nil {
		delete(m, s.ConnID)
		if len(m) == 0 {
			delete(r.byUser, s.UserID)
		}
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// ListByUser returns the live sessions of one user.
func (r *Registry) ListByUser(user string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byUser[user]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}
