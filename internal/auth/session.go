// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Session binds a login on one device or browser to a user.
type Session struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	UserAgent string // may be empty
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsLiveAt reports whether the session is still usable at t.
// A session expiring exactly at t is not live.
func (s *Session) IsLiveAt(t time.Time) bool {
	return s.ExpiresAt.After(t)
}

// RemainingAt returns the session lifetime left at t. Negative once expired.
func (s *Session) RemainingAt(t time.Time) time.Duration {
	return s.ExpiresAt.Sub(t)
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session for userID and returns it with its assigned ID.
	Create(ctx context.Context, userID ulid.ULID, userAgent string, expiresAt time.Time) (*Session, error)

	// GetByID retrieves a session by ID. Expired sessions may still be
	// returned; liveness is the caller's decision.
	// Returns ErrNotFound if the session does not exist.
	GetByID(ctx context.Context, id ulid.ULID) (*Session, error)

	// Save persists a mutated session (its ExpiresAt).
	// Returns ErrNotFound if the session no longer exists.
	Save(ctx context.Context, session *Session) error

	// DeleteAllForUser removes every session belonging to userID.
	// Deleting zero sessions is not an error.
	DeleteAllForUser(ctx context.Context, userID ulid.ULID) error
}

// Pruner removes records that can no longer be used. Session and code
// stores implement it for the prune command.
type Pruner interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
