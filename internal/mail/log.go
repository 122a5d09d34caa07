// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package mail

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// LogMailer writes messages to a logger instead of sending them. Links end
// up in the log, so it is for development only.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send logs msg and returns a generated delivery id.
func (m *LogMailer) Send(ctx context.Context, msg auth.Message) (string, error) {
	id := "log-" + ulid.Make().String()
	m.logger.InfoContext(ctx, "mail not sent (log driver)",
		"event", "mail_logged",
		"delivery_id", id,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.HTMLBody,
	)
	return id, nil
}

var _ auth.Mailer = (*LogMailer)(nil)
