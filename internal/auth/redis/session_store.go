// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package redis provides a Redis-backed auth.SessionRepository.
//
// Each session is a JSON value under <prefix>:session:<id> whose TTL runs to
// the session's expiry plus a retention window, so expired sessions stay
// readable for a while. A set under <prefix>:user:<user id>:sessions indexes
// a user's sessions for DeleteAllForUser.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "gatekeep"

// DefaultRetention is how long a session key outlives its expiry.
const DefaultRetention = 24 * time.Hour

// minTTL keeps keys for sessions created already expired.
const minTTL = time.Second

type sessionRecord struct {
	UserID    string    `json:"user_id"`
	UserAgent string    `json:"user_agent"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore implements auth.SessionRepository on Redis.
type SessionStore struct {
	client    goredis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *SessionStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRetention sets how long keys are kept past session expiry.
func WithRetention(d time.Duration) Option {
	return func(s *SessionStore) {
		if d >= 0 {
			s.retention = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionStore creates a SessionStore on client.
func NewSessionStore(client goredis.UniversalClient, opts ...Option) *SessionStore {
	s := &SessionStore{
		client:    client,
		prefix:    DefaultPrefix,
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) sessionKey(id ulid.ULID) string {
	return s.prefix + ":session:" + id.String()
}

func (s *SessionStore) userSessionsKey(userID ulid.ULID) string {
	return s.prefix + ":user:" + userID.String() + ":sessions"
}

func (s *SessionStore) ttl(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Add(s.retention).Sub(s.now())
	if ttl < minTTL {
		return minTTL
	}
	return ttl.Truncate(time.Millisecond)
}

func encodeSession(session *auth.Session) ([]byte, error) {
	data, err := json.Marshal(sessionRecord{
		UserID:    session.UserID.String(),
		UserAgent: session.UserAgent,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return nil, oops.Code("SESSION_ENCODE_FAILED").With("session_id", session.ID.String()).Wrap(err)
	}
	return data, nil
}

// Create stores a new session.
func (s *SessionStore) Create(ctx context.Context, userID ulid.ULID, userAgent string, expiresAt time.Time) (*auth.Session, error) {
	now := s.now()
	session := &auth.Session{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()),
		UserID:    userID,
		UserAgent: userAgent,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	data, err := encodeSession(session)
	if err != nil {
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(session.ID), data, s.ttl(expiresAt))
		pipe.SAdd(ctx, s.userSessionsKey(userID), session.ID.String())
		return nil
	})
	if err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "store session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return session, nil
}

// GetByID retrieves a session. Sessions past expiry are returned until
// their retention window lapses.
func (s *SessionStore) GetByID(ctx context.Context, id ulid.ULID) (*auth.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").With("session_id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session").
			With("session_id", id.String()).
			Wrap(err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").With("session_id", id.String()).Wrap(err)
	}
	userID, err := ulid.Parse(rec.UserID)
	if err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").With("session_id", id.String()).Wrap(err)
	}

	return &auth.Session{
		ID:        id,
		UserID:    userID,
		UserAgent: rec.UserAgent,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// Save rewrites an existing session and moves its key TTL to the new expiry.
func (s *SessionStore) Save(ctx context.Context, session *auth.Session) error {
	data, err := encodeSession(session)
	if err != nil {
		return err
	}

	ok, err := s.client.SetXX(ctx, s.sessionKey(session.ID), data, s.ttl(session.ExpiresAt)).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return oops.Code("SESSION_SAVE_FAILED").
			With("operation", "update session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").With("session_id", session.ID.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteAllForUser removes every session of userID and its index.
func (s *SessionStore) DeleteAllForUser(ctx context.Context, userID ulid.ULID) error {
	indexKey := s.userSessionsKey(userID)
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "list user sessions").
			With("user_id", userID.String()).
			Wrap(err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.prefix+":session:"+id)
	}
	keys = append(keys, indexKey)

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete user sessions").
			With("user_id", userID.String()).
			With("count", len(ids)).
			Wrap(err)
	}
	return nil
}

// DeleteExpired drops index entries whose session keys Redis has already
// expired and returns how many were dropped. Session keys themselves are
// removed by their TTL; now is unused.
func (s *SessionStore) DeleteExpired(ctx context.Context, _ time.Time) (int64, error) {
	var removed int64
	iter := s.client.Scan(ctx, 0, s.prefix+":user:*:sessions", 100).Iterator()
	for iter.Next(ctx) {
		indexKey := iter.Val()
		ids, err := s.client.SMembers(ctx, indexKey).Result()
		if err != nil {
			return removed, oops.Code("SESSION_PRUNE_FAILED").With("key", indexKey).Wrap(err)
		}
		for _, id := range ids {
			n, err := s.client.Exists(ctx, s.prefix+":session:"+id).Result()
			if err != nil {
				return removed, oops.Code("SESSION_PRUNE_FAILED").With("key", indexKey).Wrap(err)
			}
			if n > 0 {
				continue
			}
			if err := s.client.SRem(ctx, indexKey, id).Err(); err != nil {
				return removed, oops.Code("SESSION_PRUNE_FAILED").With("key", indexKey).Wrap(err)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, oops.Code("SESSION_PRUNE_FAILED").With("operation", "scan indexes").Wrap(err)
	}
	return removed, nil
}

var (
	_ auth.SessionRepository = (*SessionStore)(nil)
	_ auth.Pruner            = (*SessionStore)(nil)
)
