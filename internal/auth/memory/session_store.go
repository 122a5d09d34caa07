// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// SessionStore implements auth.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[ulid.ULID]*auth.Session
	opts     options
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore(opts ...Option) *SessionStore {
	return &SessionStore{
		sessions: make(map[ulid.ULID]*auth.Session),
		opts:     buildOptions(opts),
	}
}

// Create stores a new session.
func (s *SessionStore) Create(_ context.Context, userID ulid.ULID, userAgent string, expiresAt time.Time) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	session := &auth.Session{
		ID:        newID(now),
		UserID:    userID,
		UserAgent: userAgent,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	s.sessions[session.ID] = session

	clone := *session
	return &clone, nil
}

// GetByID retrieves a session, expired or not.
func (s *SessionStore) GetByID(_ context.Context, id ulid.ULID) (*auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, notFound("session_id", id.String())
	}
	clone := *session
	return &clone, nil
}

// Save persists the session's expiry.
func (s *SessionStore) Save(_ context.Context, session *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[session.ID]
	if !ok {
		return notFound("session_id", session.ID.String())
	}
	stored.ExpiresAt = session.ExpiresAt
	return nil
}

// DeleteAllForUser removes every session of userID.
func (s *SessionStore) DeleteAllForUser(_ context.Context, userID ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
		}
	}
	return nil
}

// DeleteExpired removes sessions that expired before now and returns how
// many were removed.
func (s *SessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, session := range s.sessions {
		if !session.IsLiveAt(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}
