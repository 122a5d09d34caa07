// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/auth/memory"
)

var (
	accessSecret  = []byte("test-access-secret-0123456789abcdef")
	refreshSecret = []byte("test-refresh-secret-0123456789abcdef")
	codeParam     = regexp.MustCompile(`code=([0-9a-f]{64})`)
)

// testClock is a settable time source shared by the service, stores, and signer.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureMailer records every message and hands out sequential delivery ids.
type captureMailer struct {
	mu       sync.Mutex
	sent     []auth.Message
	err      error
	emptyIDs bool
}

func (m *captureMailer) Send(_ context.Context, msg auth.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	if m.emptyIDs {
		return "", nil
	}
	return fmt.Sprintf("delivery-%d", len(m.sent)), nil
}

func (m *captureMailer) Messages() []auth.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]auth.Message(nil), m.sent...)
}

// lastCode extracts the code from the most recent message.
func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	msgs := m.Messages()
	require.NotEmpty(t, msgs, "no mail was sent")
	match := codeParam.FindStringSubmatch(msgs[len(msgs)-1].HTMLBody)
	require.Len(t, match, 2, "no code in message body")
	return match[1]
}

// recorder captures operation outcomes.
type recorder struct {
	mu      sync.Mutex
	records []string
}

func (r *recorder) RecordOperation(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, op+":"+outcome)
}

func (r *recorder) Records() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.records...)
}

type harness struct {
	svc      *auth.Service
	clock    *testClock
	mailer   *captureMailer
	users    *memory.UserStore
	sessions *memory.SessionStore
	codes    *memory.CodeStore
	signer   *auth.JWTSigner
	recorder *recorder
	logs     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := newTestClock()
	signer, err := auth.NewJWTSigner(auth.JWTSignerConfig{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		Issuer:        "gatekeep-test",
	})
	require.NoError(t, err)
	signer.SetClock(clock.Now)

	h := &harness{
		clock:    clock,
		mailer:   &captureMailer{},
		users:    memory.NewUserStore(memory.WithClock(clock.Now)),
		sessions: memory.NewSessionStore(memory.WithClock(clock.Now)),
		codes:    memory.NewCodeStore(memory.WithClock(clock.Now)),
		signer:   signer,
		recorder: &recorder{},
		logs:     &bytes.Buffer{},
	}

	cfg := auth.DefaultConfig()
	cfg.Origin = "https://app.example.com/"

	h.svc, err = auth.NewService(auth.Deps{
		Users:    h.users,
		Sessions: h.sessions,
		Codes:    h.codes,
		Signer:   signer,
		Mailer:   h.mailer,
		Hasher:   auth.NewArgon2idHasher(),
	}, cfg,
		auth.WithClock(clock.Now),
		auth.WithRecorder(h.recorder),
		auth.WithLogger(slog.New(slog.NewJSONHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)
	require.NoError(t, err)
	return h
}

// register creates an account and returns its result.
func (h *harness) register(t *testing.T, email, password string) *auth.AccountResult {
	t.Helper()
	res, err := h.svc.CreateAccount(context.Background(), email, password, "test-agent")
	require.NoError(t, err)
	return res
}
