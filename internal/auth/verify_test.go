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
)

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("valid code verifies once", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "a@x.com", "pw1")
		code := h.mailer.lastCode(t)

		user, err := h.svc.VerifyEmail(ctx, code)
		require.NoError(t, err)
		assert.True(t, user.Verified)

		_, err = h.svc.VerifyEmail(ctx, code)
		require.Error(t, err)
		assert.Equal(t, auth.KindNotFound, auth.KindOf(err))
		assert.Equal(t, "invalid or expired verification code", auth.PublicMessage(err))
	})

	t.Run("reset code cannot verify email", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "a@x.com", "pw1")
		res := h.svc.RequestPasswordReset(ctx, "a@x.com")
		require.NotEmpty(t, res.URL)

		_, err := h.svc.VerifyEmail(ctx, h.mailer.lastCode(t))
		assert.Equal(t, auth.KindNotFound, auth.KindOf(err))
	})

	t.Run("expired code is not found", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "a@x.com", "pw1")
		code := h.mailer.lastCode(t)

		h.clock.Advance(366 * 24 * time.Hour)
		_, err := h.svc.VerifyEmail(ctx, code)
		assert.Equal(t, auth.KindNotFound, auth.KindOf(err))
	})

	t.Run("unknown and empty codes are not found", func(t *testing.T) {
		h := newHarness(t)
		for _, code := range []string{"", "deadbeef"} {
			_, err := h.svc.VerifyEmail(ctx, code)
			assert.Equal(t, auth.KindNotFound, auth.KindOf(err))
		}
	})

	t.Run("update failure is internal and keeps the code", func(t *testing.T) {
		svc, m := newMockService(t)
		code := &auth.VerificationCode{ID: "c0de", UserID: ulid.Make(), Type: auth.CodeTypeEmailVerification}
		m.codes.On("FindValid", mock.Anything, "c0de", auth.CodeTypeEmailVerification, mock.Anything).Return(code, nil)
		m.users.On("UpdateVerified", mock.Anything, code.UserID).Return(nil, auth.ErrNotFound)

		_, err := svc.VerifyEmail(ctx, "c0de")
		require.Error(t, err)
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
		assert.Equal(t, "failed to verify email", auth.PublicMessage(err))
		m.codes.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("delete failure is internal", func(t *testing.T) {
		svc, m := newMockService(t)
		code := &auth.VerificationCode{ID: "c0de", UserID: ulid.Make(), Type: auth.CodeTypeEmailVerification}
		m.codes.On("FindValid", mock.Anything, "c0de", auth.CodeTypeEmailVerification, mock.Anything).Return(code, nil)
		m.users.On("UpdateVerified", mock.Anything, code.UserID).Return(&auth.User{ID: code.UserID, Verified: true}, nil)
		m.codes.On("Delete", mock.Anything, code).Return(errors.New("conn closed"))

		_, err := svc.VerifyEmail(ctx, "c0de")
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
	})
}
