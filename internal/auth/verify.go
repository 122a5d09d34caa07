// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// VerifyEmail consumes an email verification code and marks its user verified.
func (s *Service) VerifyEmail(ctx context.Context, codeID string) (user *PublicUser, err error) {
	ctx, finish := s.startOp(ctx, OpVerifyEmail)
	defer func() { finish(err) }()

	code, err := s.findCode(ctx, codeID, CodeTypeEmailVerification)
	if err != nil {
		return nil, err
	}

	updated, err := s.users.UpdateVerified(ctx, code.UserID)
	if err != nil {
		return nil, oops.Code("AUTH_VERIFY_FAILED").
			With("user_id", code.UserID.String()).
			Public("failed to verify email").
			Wrap(err)
	}

	if err := s.codes.Delete(ctx, code); err != nil {
		return nil, oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "delete code").
			With("user_id", code.UserID.String()).
			Wrap(err)
	}

	public := updated.Public()
	return &public, nil
}

// findCode looks up a valid code of typ. Missing, mistyped, and expired
// codes all fail the same way.
func (s *Service) findCode(ctx context.Context, codeID string, typ CodeType) (*VerificationCode, error) {
	if codeID == "" {
		return nil, errInvalidCode()
	}
	code, err := s.codes.FindValid(ctx, codeID, typ, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errInvalidCode()
		}
		return nil, oops.Code("AUTH_CODE_LOOKUP_FAILED").With("type", string(typ)).Wrap(err)
	}
	return code, nil
}
