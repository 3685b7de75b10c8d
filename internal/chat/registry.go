package chat

import "sync"

// Registry is the shared roster of live sessions. A session is added when its
// connection is accepted and becomes visible to broadcasts once it claims a
// login.
type Registry struct {
	mu         sync.RWMutex
	live       map[*Session]struct{}
	registered []*Session
	logins     map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		live:   make(map[*Session]struct{}),
		logins: make(map[string]*Session),
	}
}

// Add tracks a freshly accepted session that has no login yet.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[s] = struct{}{}
}

// Remove forgets s. It reports whether s was present.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live[s]; !ok {
		return false
	}
	delete(r.live, s)

	if login, ok := s.Login(); ok && r.logins[login] == s {
		delete(r.logins, login)
	}
	for i, cur := range r.registered {
		if cur == s {
			r.registered = append(r.registered[:i], r.registered[i+1:]...)
			break
		}
	}
	return true
}

// IsLoginTaken reports whether a live session holds name.
func (r *Registry) IsLoginTaken(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.logins[name]
	return ok
}

// Claim assigns name to s if no live session holds it. The check and the
// assignment happen under one lock, so two concurrent claims of the same name
// cannot both succeed.
func (r *Registry) Claim(s *Session, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live[s]; !ok {
		return ErrSessionClosed
	}
	if _, ok := r.logins[name]; ok {
		return ErrNameTaken
	}
	if err := s.setLogin(name); err != nil {
		return err
	}
	r.logins[name] = s
	r.registered = append(r.registered, s)
	return nil
}

// Sessions returns a snapshot of the registered sessions in registration
// order. Callers may iterate it while other sessions come and go.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, len(r.registered))
	copy(out, r.registered)
	return out
}

// All returns a snapshot of every live session, registered or not.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.live))
	for s := range r.live {
		out = append(out, s)
	}
	return out
}

// Logins returns the logins of the registered sessions among sessions.
func (r *Registry) Logins(sessions []*Session) []string {
	logins := make([]string, 0, len(sessions))
	for _, s := range sessions {
		if login, ok := s.Login(); ok {
			logins = append(logins, login)
		}
	}
	return logins
}

// Len returns the number of live connections, registered or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}

// RegisteredLen returns the number of sessions holding a login.
func (r *Registry) RegisteredLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.registered)
}
