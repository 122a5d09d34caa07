// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package mail

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// SMTPConfig configures an SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the envelope and header sender, e.g. "Gatekeep <no-reply@example.com>".
	From string

	// Attempts is the total number of delivery attempts for transient
	// failures. Zero means 3.
	Attempts uint64
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers messages through an SMTP relay. The generated
// Message-ID header is the delivery id.
type SMTPMailer struct {
	cfg  SMTPConfig
	from *mail.Address
	send sendFunc
	now  func() time.Time
}

// NewSMTPMailer validates cfg and creates an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("port", cfg.Port).Errorf("smtp port out of range")
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("from", cfg.From).Wrap(err)
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	return &SMTPMailer{cfg: cfg, from: from, send: smtp.SendMail, now: time.Now}, nil
}

// Send delivers msg, retrying transient failures.
func (m *SMTPMailer) Send(ctx context.Context, msg auth.Message) (string, error) {
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return "", oops.Code("MAIL_INVALID_RECIPIENT").Wrap(err)
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return "", oops.Code("MAIL_INVALID_HEADER").Errorf("subject contains a line break")
	}

	now := m.now()
	messageID := "<" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String() + "@" + m.domain() + ">"
	body := m.compose(to, msg, messageID, now)

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var smtpAuth smtp.Auth
	if m.cfg.Username != "" {
		smtpAuth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	backoff := retry.WithMaxRetries(m.cfg.Attempts-1, retry.NewExponential(m.cfg.Backoff))
	attempts := 0
	err = retry.Do(ctx, backoff, func(_ context.Context) error {
		attempts++
		if err := m.send(addr, smtpAuth, m.from.Address, []string{to.Address}, body); err != nil {
			if isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", oops.Code("MAIL_SEND_FAILED").
			With("host", m.cfg.Host).
			With("attempts", attempts).
			Wrap(err)
	}
	return messageID, nil
}

func (m *SMTPMailer) domain() string {
	if _, domain, ok := strings.Cut(m.from.Address, "@"); ok && domain != "" {
		return domain
	}
	return m.cfg.Host
}

func (m *SMTPMailer) compose(to *mail.Address, msg auth.Message, messageID string, now time.Time) []byte {
	var b bytes.Buffer
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	header("From", m.from.String())
	header("To", to.String())
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", messageID)
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.HTMLBody, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes()
}

// isTransient reports whether a delivery error is worth retrying: 4xx
// replies and network failures are, 5xx replies are not.
func isTransient(err error) bool {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code >= 400 && protoErr.Code < 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

var _ auth.Mailer = (*SMTPMailer)(nil)
