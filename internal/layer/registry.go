package layer

import "sync"

// Registry tracks the live sessions of the layer. It hands the relay a
// consistent snapshot for broadcasts and serializes the subscriber-id
// namespace so no two sessions ever hold the same uid.
//
// Lock order: registry lock before any session lock, never the
// reverse. Session teardown therefore releases its own lock before
// calling Remove.
type Registry struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[*Session]struct{})}
}

// Add registers a live session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s] = struct{}{}
}

// Remove drops a session. Unknown sessions are ignored.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns the live sessions at a point in time. Broadcasts
// iterate the snapshot without the lock, so an in-flight disconnect
// only costs a dropped send, never a race.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// ClaimUID atomically checks the uid against every live session and
// assigns it to s. Returns false when another session already holds it.
func (r *Registry) ClaimUID(s *Session, uid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for other := range r.sessions {
		if other != s && other.UID() == uid {
			return false
		}
	}
	s.setUID(uid)
	return true
}

// LoggedIn lists the account names of every authenticated session, in
// registry order. With includeUIDs each name is followed by the
// session's subscriber id (possibly empty).
func (r *Registry) LoggedIn(includeUIDs bool) []string {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	var out []string
	for _, s := range sessions {
		s.mu.Lock()
		authenticated := s.state == Authenticated
		name, uid := s.username, s.uid
		s.mu.Unlock()
		if !authenticated {
			continue
		}
		out = append(out, name)
		if includeUIDs {
			out = append(out, uid)
		}
	}
	return out
}
