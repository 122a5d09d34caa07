// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// setupTestRedis creates a miniredis-backed store.
func setupTestRedis(t *testing.T, opts ...Option) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewSessionStore(client, opts...), mr
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store, mr := setupTestRedis(t, WithPrefix("test"), WithRetention(time.Hour))
	userID := ulid.Make()
	expires := fixedNow.Add(2 * time.Hour)

	session, err := store.Create(ctx, userID, "firefox", expires)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, session.CreatedAt)

	key := "test:session:" + session.ID.String()
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 3*time.Hour, mr.TTL(key), "ttl runs to expiry plus retention")

	members, err := mr.Members("test:user:" + userID.String() + ":sessions")
	require.NoError(t, err)
	assert.Equal(t, []string{session.ID.String()}, members)

	got, err := store.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, "firefox", got.UserAgent)
	assert.True(t, expires.Equal(got.ExpiresAt))
	assert.True(t, fixedNow.Equal(got.CreatedAt))
}

func TestSessionStore_ExpiredSessionReadableDuringRetention(t *testing.T) {
	ctx := context.Background()
	store, mr := setupTestRedis(t, WithRetention(time.Hour))

	session, err := store.Create(ctx, ulid.Make(), "", fixedNow.Add(time.Minute))
	require.NoError(t, err)

	mr.FastForward(30 * time.Minute)
	got, err := store.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLiveAt(fixedNow.Add(30*time.Minute)))

	mr.FastForward(time.Hour)
	_, err = store.GetByID(ctx, session.ID)
	require.ErrorIs(t, err, auth.ErrNotFound)
}

func TestSessionStore_CreateAlreadyExpiredKeepsMinimumTTL(t *testing.T) {
	store, mr := setupTestRedis(t, WithRetention(0))

	session, err := store.Create(context.Background(), ulid.Make(), "", fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, minTTL, mr.TTL(DefaultPrefix+":session:"+session.ID.String()))
}

func TestSessionStore_Save(t *testing.T) {
	ctx := context.Background()
	store, mr := setupTestRedis(t, WithRetention(0))

	session, err := store.Create(ctx, ulid.Make(), "", fixedNow.Add(time.Hour))
	require.NoError(t, err)

	session.ExpiresAt = fixedNow.Add(30 * 24 * time.Hour)
	require.NoError(t, store.Save(ctx, session))
	assert.Equal(t, 30*24*time.Hour, mr.TTL(DefaultPrefix+":session:"+session.ID.String()))

	got, err := store.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))

	t.Run("missing session", func(t *testing.T) {
		ghost := &auth.Session{ID: ulid.Make(), UserID: ulid.Make(), ExpiresAt: fixedNow.Add(time.Hour)}
		err := store.Save(ctx, ghost)
		require.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "SESSION_NOT_FOUND")
		assert.False(t, mr.Exists(DefaultPrefix+":session:"+ghost.ID.String()), "save must not resurrect")
	})
}

func TestSessionStore_DeleteAllForUser(t *testing.T) {
	ctx := context.Background()
	store, mr := setupTestRedis(t)
	userID := ulid.Make()
	otherID := ulid.Make()

	first, err := store.Create(ctx, userID, "a", fixedNow.Add(time.Hour))
	require.NoError(t, err)
	second, err := store.Create(ctx, userID, "b", fixedNow.Add(time.Hour))
	require.NoError(t, err)
	other, err := store.Create(ctx, otherID, "c", fixedNow.Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, store.DeleteAllForUser(ctx, userID))

	for _, id := range []ulid.ULID{first.ID, second.ID} {
		_, err := store.GetByID(ctx, id)
		require.ErrorIs(t, err, auth.ErrNotFound)
	}
	assert.False(t, mr.Exists(DefaultPrefix+":user:"+userID.String()+":sessions"))

	_, err = store.GetByID(ctx, other.ID)
	require.NoError(t, err, "other users keep their sessions")

	require.NoError(t, store.DeleteAllForUser(ctx, ulid.Make()), "no sessions is not an error")
}

func TestSessionStore_DeleteExpiredDropsStaleIndexEntries(t *testing.T) {
	ctx := context.Background()
	store, mr := setupTestRedis(t, WithRetention(0))
	userID := ulid.Make()

	short, err := store.Create(ctx, userID, "", fixedNow.Add(time.Minute))
	require.NoError(t, err)
	long, err := store.Create(ctx, userID, "", fixedNow.Add(time.Hour))
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	n, err := store.DeleteExpired(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	members, err := mr.Members(DefaultPrefix + ":user:" + userID.String() + ":sessions")
	require.NoError(t, err)
	assert.Equal(t, []string{long.ID.String()}, members)
	assert.NotContains(t, members, short.ID.String())
}

func TestSessionStore_Errors(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	key := DefaultPrefix + ":session:" + id.String()

	newMock := func(t *testing.T) (*SessionStore, redismock.ClientMock) {
		t.Helper()
		db, mock := redismock.NewClientMock()
		t.Cleanup(func() {
			assert.NoError(t, mock.ExpectationsWereMet())
			_ = db.Close()
		})
		return NewSessionStore(db, WithClock(func() time.Time { return fixedNow })), mock
	}

	t.Run("get nil is not found", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectGet(key).RedisNil()

		_, err := store.GetByID(ctx, id)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("get failure", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectGet(key).SetErr(errors.New("connection reset"))

		_, err := store.GetByID(ctx, id)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "SESSION_GET_FAILED")
	})

	t.Run("corrupt record", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectGet(key).SetVal("{not json")

		_, err := store.GetByID(ctx, id)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_DECODE_FAILED")
	})

	t.Run("save failure", func(t *testing.T) {
		store, mock := newMock(t)
		session := &auth.Session{ID: id, UserID: ulid.Make(), ExpiresAt: fixedNow.Add(time.Hour)}
		data, err := encodeSession(session)
		require.NoError(t, err)
		mock.ExpectSetXX(key, data, store.ttl(session.ExpiresAt)).SetErr(errors.New("READONLY"))

		err = store.Save(ctx, session)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_SAVE_FAILED")
	})

	t.Run("list failure on delete", func(t *testing.T) {
		store, mock := newMock(t)
		userID := ulid.Make()
		mock.ExpectSMembers(DefaultPrefix + ":user:" + userID.String() + ":sessions").SetErr(errors.New("boom"))

		err := store.DeleteAllForUser(ctx, userID)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_DELETE_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "list user sessions")
	})
}

func TestDial(t *testing.T) {
	t.Run("connects", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := Dial(context.Background(), ClientConfig{Addr: mr.Addr()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		assert.NoError(t, client.Ping(context.Background()).Err())
	})

	t.Run("gives up", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := Dial(context.Background(), ClientConfig{Addr: addr})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "REDIS_CONNECT_FAILED")
		errutil.AssertErrorContext(t, err, "addr", addr)
	})
}
