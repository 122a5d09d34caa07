// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"bytes"
	"context"
	"html/template"

	"github.com/samber/oops"
)

// Message is an outbound transactional email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Mailer delivers transactional email.
type Mailer interface {
	// Send delivers msg and returns the provider's delivery id.
	Send(ctx context.Context, msg Message) (deliveryID string, err error)
}

const (
	subjectVerifyEmail   = "Confirm your email address"
	subjectPasswordReset = "Reset your password"
)

var verifyEmailTemplate = template.Must(template.New("verify").Parse(`<p>Welcome!</p>
<p>Please confirm your email address by following this link:</p>
<p><a href="{{.URL}}">{{.URL}}</a></p>
`))

var passwordResetTemplate = template.Must(template.New("reset").Parse(`<p>We received a request to reset your password.</p>
<p><a href="{{.URL}}">Choose a new password</a></p>
<p>This link expires at {{.ExpiresAt}}. If you did not ask for a reset you can ignore this email.</p>
`))

func verificationMessage(to, url string) (Message, error) {
	var buf bytes.Buffer
	if err := verifyEmailTemplate.Execute(&buf, struct{ URL string }{url}); err != nil {
		return Message{}, oops.Code("MAIL_RENDER_FAILED").With("template", "verify").Wrap(err)
	}
	return Message{To: to, Subject: subjectVerifyEmail, HTMLBody: buf.String()}, nil
}

func passwordResetMessage(to, url, expiresAt string) (Message, error) {
	var buf bytes.Buffer
	data := struct{ URL, ExpiresAt string }{url, expiresAt}
	if err := passwordResetTemplate.Execute(&buf, data); err != nil {
		return Message{}, oops.Code("MAIL_RENDER_FAILED").With("template", "reset").Wrap(err)
	}
	return Message{To: to, Subject: subjectPasswordReset, HTMLBody: buf.String()}, nil
}
