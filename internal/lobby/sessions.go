package lobby

import (
	"sort"
	"strings"
	"sync"

	"arcadehub/internal/apperr"
)

// Notifier receives pushed events for one online identity.
type Notifier interface {
	Send(v any) error
}

// Sessions is the online-identity registry: at most one connection per
// identity.
type Sessions struct {
	mu     sync.RWMutex
	byName map[string]Notifier
}

// NewSessions returns an empty registry.
func NewSessions() *Sessions {
	return &Sessions{byName: make(map[string]Notifier)}
}

// Login binds identity to n.
func (s *Sessions) Login(identity string, n Notifier) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return apperr.InvalidArgument("username is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[identity]; ok {
		return apperr.Conflict(identity + " is already logged in")
	}
	s.byName[identity] = n
	return nil
}

// Logout releases identity if it is still bound to n.
func (s *Sessions) Logout(identity string, n Notifier) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.byName[identity]; ok && cur == n {
		delete(s.byName, identity)
		return true
	}
	return false
}

// Online lists online identities in order.
func (s *Sessions) Online() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.byName))
	for name := range s.byName {
		out = append(out, name)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Notify pushes v to every online identity in names. Send failures are
// swallowed; it returns how many sends were queued.
func (s *Sessions) Notify(names []string, v any) int {
	s.mu.RLock()
	targets := make([]Notifier, 0, len(names))
	for _, name := range names {
		if n, ok := s.byName[name]; ok {
			targets = append(targets, n)
		}
	}
	s.mu.RUnlock()

	sent := 0
	for _, n := range targets {
		if n.Send(v) == nil {
			sent++
		}
	}
	return sent
}
