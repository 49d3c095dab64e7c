// Package session owns the connected-account identity. It is the only
// writer of that identity; everything account-scoped (read-cache
// predicates, intent preconditions) derives from it.
package session

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Session tracks the currently connected account and notifies
// subscribers on connect/disconnect transitions.
type Session struct {
	mu      sync.RWMutex
	account common.Address
	active  bool
	subs    []func()
}

// New creates a session with no account connected.
func New() *Session {
	return &Session{}
}

// Connect sets the active account and notifies subscribers.
func (s *Session) Connect(account common.Address) {
	s.mu.Lock()
	s.account = account
	s.active = true
	subs := append([]func(){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Disconnect clears the active account and notifies subscribers.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.account = common.Address{}
	s.active = false
	subs := append([]func(){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Account returns the connected account, if any.
func (s *Session) Account() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.active
}

// Connected reports whether an account is currently connected.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Is reports whether account is the currently connected account.
func (s *Session) Is(account common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active && s.account == account
}

// OnChange registers a callback invoked after every connect or
// disconnect transition.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}
