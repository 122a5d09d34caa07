// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

func TestRefreshAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh session gets an access token only", func(t *testing.T) {
		h := newHarness(t)
		created := h.register(t, "a@x.com", "pw1")

		h.clock.Advance(time.Hour)
		res, err := h.svc.RefreshAccessToken(ctx, created.RefreshToken)
		require.NoError(t, err)
		assert.Empty(t, res.RefreshToken)

		claims, err := h.signer.VerifyAccess(res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, created.User.ID, claims.UserID)
	})

	t.Run("48h remaining keeps the session expiry", func(t *testing.T) {
		h := newHarness(t)
		created := h.register(t, "a@x.com", "pw1")
		refresh, err := h.signer.VerifyRefresh(created.RefreshToken)
		require.NoError(t, err)

		before, err := h.sessions.GetByID(ctx, refresh.SessionID)
		require.NoError(t, err)

		h.clock.Advance(30*24*time.Hour - 48*time.Hour)
		res, err := h.svc.RefreshAccessToken(ctx, created.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, res.AccessToken)
		assert.Empty(t, res.RefreshToken)

		after, err := h.sessions.GetByID(ctx, refresh.SessionID)
		require.NoError(t, err)
		assert.Equal(t, before.ExpiresAt, after.ExpiresAt)
	})

	t.Run("session near expiry is renewed", func(t *testing.T) {
		h := newHarness(t)
		created := h.register(t, "a@x.com", "pw1")
		refresh, err := h.signer.VerifyRefresh(created.RefreshToken)
		require.NoError(t, err)

		// 23h left is inside the 24h renewal threshold.
		h.clock.Advance(30*24*time.Hour - 23*time.Hour)
		res, err := h.svc.RefreshAccessToken(ctx, created.RefreshToken)
		require.NoError(t, err)
		require.NotEmpty(t, res.RefreshToken)

		renewed, err := h.signer.VerifyRefresh(res.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, refresh.SessionID, renewed.SessionID)

		session, err := h.sessions.GetByID(ctx, refresh.SessionID)
		require.NoError(t, err)
		assert.Equal(t, h.clock.Now().Add(30*24*time.Hour), session.ExpiresAt)
	})

	t.Run("remaining lifetime exactly at threshold renews", func(t *testing.T) {
		h := newHarness(t)
		created := h.register(t, "a@x.com", "pw1")

		h.clock.Advance(29 * 24 * time.Hour)
		res, err := h.svc.RefreshAccessToken(ctx, created.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, res.RefreshToken)
	})

	t.Run("expired session is unauthorized", func(t *testing.T) {
		h := newHarness(t)
		svc := h.svc
		created := h.register(t, "a@x.com", "pw1")
		refresh, err := h.signer.VerifyRefresh(created.RefreshToken)
		require.NoError(t, err)

		// Shorten the session while keeping the refresh token itself valid.
		session, err := h.sessions.GetByID(ctx, refresh.SessionID)
		require.NoError(t, err)
		session.ExpiresAt = h.clock.Now()
		require.NoError(t, h.sessions.Save(ctx, session))

		_, err = svc.RefreshAccessToken(ctx, created.RefreshToken)
		require.Error(t, err)
		assert.Equal(t, auth.KindUnauthorized, auth.KindOf(err))
		assert.Equal(t, "session expired", auth.PublicMessage(err))
	})

	t.Run("deleted session is unauthorized", func(t *testing.T) {
		h := newHarness(t)
		created := h.register(t, "a@x.com", "pw1")
		require.NoError(t, h.sessions.DeleteAllForUser(ctx, created.User.ID))

		_, err := h.svc.RefreshAccessToken(ctx, created.RefreshToken)
		errutil.AssertErrorCode(t, err, auth.CodeSessionExpired)
	})

	t.Run("bad tokens are unauthorized", func(t *testing.T) {
		h := newHarness(t)
		created := h.register(t, "a@x.com", "pw1")

		tests := []struct {
			name  string
			token string
		}{
			{"empty", ""},
			{"garbage", "not.a.jwt"},
			{"access token presented as refresh", created.AccessToken},
			{"tampered", created.RefreshToken[:len(created.RefreshToken)-2] + "xx"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := h.svc.RefreshAccessToken(ctx, tt.token)
				require.Error(t, err)
				assert.Equal(t, auth.KindUnauthorized, auth.KindOf(err))
				assert.Equal(t, "invalid refresh token", auth.PublicMessage(err))
			})
		}
	})

	t.Run("expired refresh token is unauthorized", func(t *testing.T) {
		h := newHarness(t)
		created := h.register(t, "a@x.com", "pw1")

		h.clock.Advance(31 * 24 * time.Hour)
		_, err := h.svc.RefreshAccessToken(ctx, created.RefreshToken)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidRefreshToken)
	})

	t.Run("save failure is internal", func(t *testing.T) {
		svc, m := newMockService(t)
		sessionID := ulid.Make()
		m.signer.On("VerifyRefresh", "tok").Return(&auth.RefreshClaims{SessionID: sessionID}, nil)
		m.sessions.On("GetByID", mock.Anything, sessionID).
			Return(&auth.Session{ID: sessionID, ExpiresAt: time.Now().Add(time.Hour)}, nil)
		m.sessions.On("Save", mock.Anything, mock.AnythingOfType("*auth.Session")).Return(errors.New("conn closed"))

		_, err := svc.RefreshAccessToken(ctx, "tok")
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
	})

	t.Run("session lookup failure is internal", func(t *testing.T) {
		svc, m := newMockService(t)
		sessionID := ulid.Make()
		m.signer.On("VerifyRefresh", "tok").Return(&auth.RefreshClaims{SessionID: sessionID}, nil)
		m.sessions.On("GetByID", mock.Anything, sessionID).Return(nil, errors.New("conn closed"))

		_, err := svc.RefreshAccessToken(ctx, "tok")
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
	})
}
