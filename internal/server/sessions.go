// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/portal-tui/internal/clock"
	"github.com/jeranaias/portal-tui/internal/portal"
)

// DefaultSessionTimeout is the inactivity period after which a backend
// session is invalidated.
const DefaultSessionTimeout = 30 * time.Minute

// Session is a live backend session.
type Session struct {
	ID           string
	User         portal.User
	Created      time.Time
	LastAccessed time.Time
}

// SessionStore holds sessions in memory and expires them on inactivity.
// It is safe for concurrent use.
type SessionStore struct {
	clk     clock.Clock
	timeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty store. A non-positive timeout selects
// DefaultSessionTimeout.
func NewSessionStore(clk clock.Clock, timeout time.Duration) *SessionStore {
	if clk == nil {
		clk = clock.Real()
	}
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionStore{
		clk:      clk,
		timeout:  timeout,
		sessions: make(map[string]*Session),
	}
}

// Timeout returns the inactivity timeout.
func (s *SessionStore) Timeout() time.Duration {
	return s.timeout
}

// MaxInactiveInterval returns the timeout in whole seconds, the form the
// API reports it in.
func (s *SessionStore) MaxInactiveInterval() int {
	return int(s.timeout / time.Second)
}

// Create opens a new session for user.
func (s *SessionStore) Create(user portal.User) Session {
	now := s.clk.Now()
	sess := &Session{
		ID:           uuid.NewString(),
		User:         user,
		Created:      now,
		LastAccessed: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return *sess
}

// Touch marks the session accessed now. It returns false when the session
// is unknown or has already expired; an expired session is removed.
func (s *SessionStore) Touch(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(id)
	if !ok {
		return Session{}, false
	}
	sess.LastAccessed = s.clk.Now()
	return *sess, true
}

// Get returns the session without extending it.
func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(id)
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Remaining returns how long the session has left, or zero if it is gone.
func (s *SessionStore) Remaining(id string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(id)
	if !ok {
		return 0
	}
	return s.timeout - s.clk.Now().Sub(sess.LastAccessed)
}

// Delete invalidates a session. It reports whether the session existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Sweep removes expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired ones included until
// they are swept or accessed.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// live must be called with mu held.
func (s *SessionStore) live(id string) (*Session, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.expired(sess, s.clk.Now()) {
		delete(s.sessions, id)
		return nil, false
	}
	return sess, true
}

func (s *SessionStore) expired(sess *Session, now time.Time) bool {
	return now.Sub(sess.LastAccessed) >= s.timeout
}
