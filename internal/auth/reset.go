// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// ResetIssue describes a password reset code that was issued and mailed.
type ResetIssue struct {
	URL        string
	DeliveryID string
	ExpiresAt  time.Time
}

// ResetRequestResult is returned by RequestPasswordReset. Both fields are
// empty unless a reset email was actually sent.
type ResetRequestResult struct {
	URL        string `json:"url,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
}

// RequestPasswordReset issues and mails a password reset link for email.
// It never fails: unknown emails, throttling, and delivery problems are
// logged and produce an empty result, so callers cannot probe for accounts.
// Transports must not echo the result to unauthenticated clients.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) ResetRequestResult {
	ctx, finish := s.startOp(ctx, OpRequestPasswordReset)

	issue, err := s.issuePasswordReset(ctx, email)
	finish(err)
	if err != nil {
		attrs := []any{"event", "password_reset_failed", "operation", OpRequestPasswordReset, "kind", string(KindOf(err))}
		switch KindOf(err) {
		case KindInternal:
			errutil.LogError(s.logger, "password reset request failed", err, attrs...)
		default:
			errutil.LogWarn(s.logger, "password reset request refused", err, attrs...)
		}
		return ResetRequestResult{}
	}

	return ResetRequestResult{URL: issue.URL, DeliveryID: issue.DeliveryID}
}

// issuePasswordReset is the failing layer under RequestPasswordReset.
func (s *Service) issuePasswordReset(ctx context.Context, email string) (*ResetIssue, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUserNotFound).Errorf("user not found")
		}
		return nil, oops.Code("AUTH_RESET_FAILED").With("operation", "get user by email").Wrap(err)
	}

	now := s.now()
	count, err := s.codes.CountSince(ctx, user.ID, CodeTypePasswordReset, now.Add(-s.cfg.ResetThrottleWindow))
	if err != nil {
		return nil, oops.Code("AUTH_RESET_FAILED").
			With("operation", "count recent codes").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if count >= s.cfg.ResetThrottleLimit {
		return nil, oops.Code(CodeResetThrottled).
			With("user_id", user.ID.String()).
			With("count", count).
			Errorf("too many password reset requests")
	}

	code, err := s.codes.Create(ctx, user.ID, CodeTypePasswordReset, now.Add(s.cfg.ResetCodeTTL))
	if err != nil {
		return nil, oops.Code("AUTH_RESET_FAILED").
			With("operation", "create reset code").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	resetURL := s.link("/reset-password",
		"code", code.ID,
		"expires", strconv.FormatInt(code.ExpiresAt.Unix(), 10),
	)
	msg, err := passwordResetMessage(user.Email, resetURL, code.ExpiresAt.UTC().Format(time.RFC1123))
	if err != nil {
		return nil, oops.Code("AUTH_RESET_FAILED").With("user_id", user.ID.String()).Wrap(err)
	}

	deliveryID, err := s.mailer.Send(ctx, msg)
	if err != nil {
		return nil, oops.Code("AUTH_RESET_MAIL_FAILED").With("user_id", user.ID.String()).Wrap(err)
	}
	if deliveryID == "" {
		return nil, oops.Code("AUTH_RESET_MAIL_FAILED").
			With("user_id", user.ID.String()).
			Errorf("mailer returned no delivery id")
	}

	return &ResetIssue{URL: resetURL, DeliveryID: deliveryID, ExpiresAt: code.ExpiresAt}, nil
}

// CompletePasswordReset consumes a password reset code, sets the new
// password, and ends every session of the user.
func (s *Service) CompletePasswordReset(ctx context.Context, codeID, newPassword string) (user *PublicUser, err error) {
	ctx, finish := s.startOp(ctx, OpCompletePasswordReset)
	defer func() { finish(err) }()

	if newPassword == "" {
		return nil, ErrEmptyPassword
	}

	code, err := s.findCode(ctx, codeID, CodeTypePasswordReset)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, oops.Code("AUTH_RESET_FAILED").With("operation", "hash password").Wrap(err)
	}

	updated, err := s.users.UpdatePasswordHash(ctx, code.UserID, hash)
	if err != nil {
		return nil, oops.Code("AUTH_RESET_FAILED").
			With("operation", "update password").
			With("user_id", code.UserID.String()).
			Public("failed to reset password").
			Wrap(err)
	}

	if err := s.codes.Delete(ctx, code); err != nil {
		return nil, oops.Code("AUTH_RESET_FAILED").
			With("operation", "delete code").
			With("user_id", code.UserID.String()).
			Wrap(err)
	}

	if err := s.sessions.DeleteAllForUser(ctx, code.UserID); err != nil {
		return nil, oops.Code("AUTH_RESET_FAILED").
			With("operation", "delete sessions").
			With("user_id", code.UserID.String()).
			Wrap(err)
	}

	public := updated.Public()
	return &public, nil
}
