package engine

import (
	"sync"

	"just3sec/core"
)

// IdentitySwitch is an in-process IdentityProvider. Sign-in state changes
// are delivered synchronously to subscribers.
type IdentitySwitch struct {
	mu   sync.Mutex
	user core.UserID
	ok   bool
	subs map[int]func(core.UserID, bool)
	next int
}

func NewIdentitySwitch() *IdentitySwitch {
	return &IdentitySwitch{subs: map[int]func(core.UserID, bool){}}
}

func (s *IdentitySwitch) Current() (core.UserID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, s.ok
}

func (s *IdentitySwitch) OnChange(fn func(core.UserID, bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// SignIn makes user the current identity.
func (s *IdentitySwitch) SignIn(user core.UserID) { s.set(user, true) }

// SignOut clears the current identity.
func (s *IdentitySwitch) SignOut() { s.set(core.Anonymous, false) }

func (s *IdentitySwitch) set(user core.UserID, ok bool) {
	s.mu.Lock()
	if s.user == user && s.ok == ok {
		s.mu.Unlock()
		return
	}
	s.user, s.ok = user, ok
	fns := make([]func(core.UserID, bool), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(user, ok)
	}
}

var _ IdentityProvider = (*IdentitySwitch)(nil)
