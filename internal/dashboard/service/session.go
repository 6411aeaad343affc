// Package service contains the client core of the dashboard: the session guard,
// the panel view model, the action dispatcher and the payments poller.
package service

import (
	"errors"
	"sync"
)

var (
	// ErrInvalidCredentials is returned when the admin secret fails validation against the backend.
	ErrInvalidCredentials = errors.New("invalid admin secret")
	// ErrLocked is returned when an action requires an unlocked session.
	ErrLocked = errors.New("session is locked")
)

// Session holds the admin secret for the life of the process. It has exactly two
// states, Locked and Unlocked; the only transition to Unlocked happens in
// PanelService.Login after the secret validated against the backend.
type Session struct {
	mu       sync.RWMutex
	secret   string
	unlocked bool
}

// NewSession creates a session in the Locked state.
func NewSession() *Session {
	return &Session{}
}

// Secret returns the currently held admin secret. Empty while Locked.
// Implements api.SecretSource.
func (s *Session) Secret() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secret
}

// Unlocked reports whether the session holds a validated secret.
func (s *Session) Unlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unlocked
}

// hold stores a not yet validated secret so the validation request can carry it.
func (s *Session) hold(secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = secret
	s.unlocked = false
}

// unlock transitions Locked -> Unlocked after successful validation.
func (s *Session) unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlocked = true
}

// Invalidate clears the secret and returns to the Locked state.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = ""
	s.unlocked = false
}
