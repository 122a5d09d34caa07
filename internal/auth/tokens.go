// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token audiences. Access and refresh tokens are also signed with different
// secrets, so one can never be presented as the other.
const (
	AudienceAccess  = "access"
	AudienceRefresh = "refresh"
)

// Default token lifetimes.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// AccessClaims identifies the caller of an authenticated request.
type AccessClaims struct {
	UserID    ulid.ULID
	SessionID ulid.ULID
}

// RefreshClaims identifies the session a refresh token renews.
type RefreshClaims struct {
	SessionID ulid.ULID
}

// TokenPair is an access token and its companion refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenSigner signs and verifies bearer tokens.
type TokenSigner interface {
	SignAccess(claims AccessClaims) (string, error)
	SignRefresh(claims RefreshClaims) (string, error)

	// VerifyAccess returns the claims of a valid access token. Any signature,
	// expiry, audience, or payload problem is an error.
	VerifyAccess(token string) (*AccessClaims, error)

	// VerifyRefresh returns the claims of a valid refresh token.
	VerifyRefresh(token string) (*RefreshClaims, error)
}

// JWTSignerConfig configures a JWTSigner.
type JWTSignerConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// JWTSigner implements TokenSigner with HS256 JSON Web Tokens.
type JWTSigner struct {
	cfg JWTSignerConfig
	now func() time.Time
}

// tokenClaims is the JWT payload for both token kinds. Subject carries the
// user id of access tokens and is empty for refresh tokens.
type tokenClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// NewJWTSigner creates a JWTSigner. Zero TTLs fall back to the defaults.
func NewJWTSigner(cfg JWTSignerConfig) (*JWTSigner, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, oops.Errorf("access secret is required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, oops.Errorf("refresh secret is required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, oops.Errorf("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTokenTTL
	}
	return &JWTSigner{cfg: cfg, now: time.Now}, nil
}

// SetClock replaces the signer's time source. Intended for tests.
func (s *JWTSigner) SetClock(now func() time.Time) {
	s.now = now
}

// SignAccess signs an access token.
func (s *JWTSigner) SignAccess(claims AccessClaims) (string, error) {
	return s.sign(claims.UserID.String(), claims.SessionID, AudienceAccess, s.cfg.AccessTTL, s.cfg.AccessSecret)
}

// SignRefresh signs a refresh token.
func (s *JWTSigner) SignRefresh(claims RefreshClaims) (string, error) {
	return s.sign("", claims.SessionID, AudienceRefresh, s.cfg.RefreshTTL, s.cfg.RefreshSecret)
}

// VerifyAccess verifies an access token.
func (s *JWTSigner) VerifyAccess(token string) (*AccessClaims, error) {
	claims, err := s.parse(token, AudienceAccess, s.cfg.AccessSecret)
	if err != nil {
		return nil, err
	}
	sessionID, err := ulid.Parse(claims.SessionID)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").With("claim", "sid").Wrap(err)
	}
	userID, err := ulid.Parse(claims.Subject)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").With("claim", "sub").Wrap(err)
	}
	return &AccessClaims{UserID: userID, SessionID: sessionID}, nil
}

// VerifyRefresh verifies a refresh token.
func (s *JWTSigner) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims, err := s.parse(token, AudienceRefresh, s.cfg.RefreshSecret)
	if err != nil {
		return nil, err
	}
	sessionID, err := ulid.Parse(claims.SessionID)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").With("claim", "sid").Wrap(err)
	}
	return &RefreshClaims{SessionID: sessionID}, nil
}

func (s *JWTSigner) sign(subject string, sessionID ulid.ULID, audience string, ttl time.Duration, secret []byte) (string, error) {
	now := s.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        ulid.Make().String(),
		},
		SessionID: sessionID.String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("audience", audience).Wrap(err)
	}
	return signed, nil
}

func (s *JWTSigner) parse(token, audience string, secret []byte) (*tokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").With("audience", audience).Wrap(err)
	}
	if !parsed.Valid {
		return nil, oops.Code("TOKEN_INVALID").With("audience", audience).Errorf("token is not valid")
	}
	return claims, nil
}
