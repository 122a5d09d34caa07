// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool poolIface
	opts options
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool poolIface, opts ...Option) *SessionRepository {
	return &SessionRepository{pool: pool, opts: buildOptions(opts)}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, userID ulid.ULID, userAgent string, expiresAt time.Time) (*auth.Session, error) {
	now := timestamp(r.opts.now())
	session := &auth.Session{
		ID:        newID(now),
		UserID:    userID,
		UserAgent: userAgent,
		ExpiresAt: timestamp(expiresAt),
		CreatedAt: now,
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, user_agent, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, session.ID.String(), userID.String(), userAgent, session.ExpiresAt, session.CreatedAt)
	if err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return session, nil
}

// GetByID retrieves a session, expired or not.
func (r *SessionRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Session, error) {
	var (
		session   auth.Session
		userIDStr string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, user_agent, expires_at, created_at
		FROM sessions
		WHERE id = $1
	`, id.String()).Scan(&userIDStr, &session.UserAgent, &session.ExpiresAt, &session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").With("session_id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session").
			With("session_id", id.String()).
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("user_id", userIDStr).Wrap(err)
	}
	session.ID = id
	session.UserID = userID
	return &session, nil
}

// Save persists the session's expiry.
func (r *SessionRepository) Save(ctx context.Context, session *auth.Session) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sessions SET expires_at = $2 WHERE id = $1`,
		session.ID.String(), timestamp(session.ExpiresAt))
	if err != nil {
		return oops.Code("SESSION_SAVE_FAILED").
			With("operation", "update session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").With("session_id", session.ID.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteAllForUser removes every session of userID.
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete user sessions").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes sessions that expired at or before now and returns
// how many were removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("SESSION_PRUNE_FAILED").With("operation", "delete expired sessions").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
