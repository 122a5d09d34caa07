// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// RefreshResult is returned by RefreshAccessToken. RefreshToken is empty
// unless the session was renewed.
type RefreshResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// RefreshAccessToken exchanges a refresh token for a new access token.
// Sessions within the renewal threshold of expiry are extended and a new
// refresh token is issued alongside.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (result *RefreshResult, err error) {
	ctx, finish := s.startOp(ctx, OpRefresh)
	defer func() { finish(err) }()

	claims, verifyErr := s.signer.VerifyRefresh(refreshToken)
	if verifyErr != nil {
		s.logger.DebugContext(ctx, "refresh token rejected", "event", "refresh_rejected", "error", verifyErr)
		return nil, oops.Code(CodeInvalidRefreshToken).Errorf(msgInvalidRefresh)
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errSessionExpired()
		}
		return nil, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "get session").
			With("session_id", claims.SessionID.String()).
			Wrap(err)
	}

	now := s.now()
	if !session.IsLiveAt(now) {
		return nil, errSessionExpired()
	}

	result = &RefreshResult{}
	if session.RemainingAt(now) <= s.cfg.RenewalThreshold {
		session.ExpiresAt = now.Add(s.cfg.SessionTTL)
		if err := s.sessions.Save(ctx, session); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, errSessionExpired()
			}
			return nil, oops.Code("AUTH_REFRESH_FAILED").
				With("operation", "renew session").
				With("session_id", session.ID.String()).
				Wrap(err)
		}
		result.RefreshToken, err = s.signer.SignRefresh(RefreshClaims{SessionID: session.ID})
		if err != nil {
			return nil, oops.Code("AUTH_REFRESH_FAILED").With("operation", "sign refresh token").Wrap(err)
		}
	}

	result.AccessToken, err = s.signer.SignAccess(AccessClaims{UserID: session.UserID, SessionID: session.ID})
	if err != nil {
		return nil, oops.Code("AUTH_REFRESH_FAILED").With("operation", "sign access token").Wrap(err)
	}

	return result, nil
}
