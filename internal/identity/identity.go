// Package identity abstracts the external authentication provider. The core
// never authenticates; it only reads the current identity and gates
// owner-only operations on it.
package identity

import "sync"

// User is the identity the provider exposes to the core.
type User struct {
	ID        string
	Email     string
	Anonymous bool
}

// Provider supplies the current user and change notifications.
type Provider interface {
	// CurrentUser returns nil when nobody is signed in.
	CurrentUser() *User
	// OnChange registers a callback fired on identity changes. The returned
	// cancel func unregisters it and is safe to call more than once.
	OnChange(func(*User)) (cancel func())
}

// Static is a Provider holding an explicit user, settable at runtime. Used by
// the CLI (identity from config), per-connection transports, and tests.
type Static struct {
	mu        sync.Mutex
	user      *User
	seq       int
	callbacks map[int]func(*User)
}

func NewStatic(user *User) *Static {
	return &Static{user: user, callbacks: make(map[int]func(*User))}
}

func (s *Static) CurrentUser() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Set replaces the current user and notifies registered callbacks.
func (s *Static) Set(user *User) {
	s.mu.Lock()
	s.user = user
	callbacks := make([]func(*User), 0, len(s.callbacks))
	for _, cb := range s.callbacks {
		callbacks = append(callbacks, cb)
	}
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(user)
	}
}

func (s *Static) OnChange(cb func(*User)) func() {
	s.mu.Lock()
	s.seq++
	key := s.seq
	s.callbacks[key] = cb
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.callbacks, key)
		s.mu.Unlock()
	}
}
