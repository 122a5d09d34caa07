// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/auth/memory"
	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

func newPruneTestCmd(t *testing.T, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	configFile = ""
	t.Setenv("DATABASE_URL", "")
	cmd := NewPruneCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, buf
}

func usePruneBackends(t *testing.T, fn func(context.Context, *config.Config) (*Backends, error)) {
	t.Helper()
	orig := openPruneBackends
	openPruneBackends = fn
	t.Cleanup(func() { openPruneBackends = orig })
}

func TestPrune_DeletesExpiredRecords(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	userID := ulid.Make()

	sessions := memory.NewSessionStore()
	codes := memory.NewCodeStore()
	_, err := sessions.Create(ctx, userID, "ua", now.Add(-time.Hour))
	require.NoError(t, err)
	live, err := sessions.Create(ctx, userID, "ua", now.Add(time.Hour))
	require.NoError(t, err)
	_, err = codes.Create(ctx, userID, auth.CodeTypePasswordReset, now.Add(-time.Minute))
	require.NoError(t, err)

	closed := false
	usePruneBackends(t, func(context.Context, *config.Config) (*Backends, error) {
		return &Backends{
			Users:    memory.NewUserStore(),
			Sessions: sessions,
			Codes:    codes,
			closers:  []func(){func() { closed = true }},
		}, nil
	})

	cmd, out := newPruneTestCmd(t, "--database-url", "postgres://localhost/gatekeep")
	require.NoError(t, runPrune(ctx, cmd, now))

	assert.Equal(t, "codes: deleted 1 expired\nsessions: deleted 1 expired\n", out.String())
	assert.True(t, closed)

	_, err = sessions.GetByID(ctx, live.ID)
	assert.NoError(t, err)
}

func TestPrune_RejectsMemoryBackend(t *testing.T) {
	usePruneBackends(t, func(context.Context, *config.Config) (*Backends, error) {
		t.Fatal("backends must not be opened")
		return nil, nil
	})

	cmd, _ := newPruneTestCmd(t, "--session-backend", "memory")
	err := runPrune(context.Background(), cmd, time.Now())

	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	errutil.AssertErrorContext(t, err, "field", "sessions.backend")
}

func TestPrune_RequiresDatabaseURL(t *testing.T) {
	cmd, _ := newPruneTestCmd(t)
	err := runPrune(context.Background(), cmd, time.Now())

	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	errutil.AssertErrorContext(t, err, "field", "database.url")
}

func TestPrune_OpenFailure(t *testing.T) {
	usePruneBackends(t, func(context.Context, *config.Config) (*Backends, error) {
		return nil, errors.New("connection refused")
	})

	cmd, _ := newPruneTestCmd(t, "--database-url", "postgres://localhost/gatekeep")
	err := runPrune(context.Background(), cmd, time.Now())

	errutil.AssertErrorCode(t, err, "PRUNE_FAILED")
}

type failingPruner struct {
	auth.SessionRepository
}

func (failingPruner) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("timeout")
}

func TestPrune_StoreFailure(t *testing.T) {
	usePruneBackends(t, func(context.Context, *config.Config) (*Backends, error) {
		return &Backends{
			Users:    memory.NewUserStore(),
			Sessions: failingPruner{memory.NewSessionStore()},
			Codes:    memory.NewCodeStore(),
		}, nil
	})

	cmd, _ := newPruneTestCmd(t, "--database-url", "postgres://localhost/gatekeep")
	err := runPrune(context.Background(), cmd, time.Now())

	errutil.AssertErrorCode(t, err, "PRUNE_FAILED")
	errutil.AssertErrorContext(t, err, "store", "sessions")
}
