// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gatekeep/gatekeep/pkg/errutil"
)

var tracer = otel.Tracer("gatekeep/auth")

// Operation names used for spans, logs, and metrics.
const (
	OpCreateAccount         = "create_account"
	OpLogin                 = "login"
	OpRefresh               = "refresh"
	OpVerifyEmail           = "verify_email"
	OpRequestPasswordReset  = "request_password_reset"
	OpCompletePasswordReset = "complete_password_reset"
)

// OutcomeOK is the recorded outcome of a successful operation. Failed
// operations record their Kind.
const OutcomeOK = "ok"

// Recorder observes the outcome of every operation.
type Recorder interface {
	RecordOperation(operation, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordOperation(string, string) {}

// Deps are the collaborators a Service is built from. All are required.
type Deps struct {
	Users    UserRepository
	Sessions SessionRepository
	Codes    CodeRepository
	Signer   TokenSigner
	Mailer   Mailer
	Hasher   PasswordHasher
}

// Service implements the account, session, and verification code flows.
// It is safe for concurrent use.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	codes    CodeRepository
	signer   TokenSigner
	mailer   Mailer
	hasher   PasswordHasher
	cfg      Config
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for swallowed failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the operation outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock sets the time source. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. Every dependency in deps must be non-nil.
func NewService(deps Deps, cfg Config, opts ...Option) (*Service, error) {
	if deps.Users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if deps.Sessions == nil {
		return nil, oops.Errorf("session repository is required")
	}
	if deps.Codes == nil {
		return nil, oops.Errorf("code repository is required")
	}
	if deps.Signer == nil {
		return nil, oops.Errorf("token signer is required")
	}
	if deps.Mailer == nil {
		return nil, oops.Errorf("mailer is required")
	}
	if deps.Hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		users:    deps.Users,
		sessions: deps.Sessions,
		codes:    deps.Codes,
		signer:   deps.Signer,
		mailer:   deps.Mailer,
		hasher:   deps.Hasher,
		cfg:      cfg,
		logger:   slog.New(slog.DiscardHandler),
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccountResult is returned by CreateAccount and Login.
type AccountResult struct {
	User PublicUser `json:"user"`
	TokenPair
}

// startOp opens the span for an operation. The returned func ends the span
// and records the outcome; pass it the operation's final error.
func (s *Service) startOp(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "auth."+op,
		trace.WithAttributes(attribute.String("auth.operation", op)),
	)
	return ctx, func(err error) {
		outcome := OutcomeOK
		if err != nil {
			outcome = string(KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("auth.outcome", outcome))
		s.recorder.RecordOperation(op, outcome)
		span.End()
	}
}

// CreateAccount registers a new unverified user, sends the verification
// email, and logs the user in.
func (s *Service) CreateAccount(ctx context.Context, email, password, userAgent string) (result *AccountResult, err error) {
	ctx, finish := s.startOp(ctx, OpCreateAccount)
	defer func() { finish(err) }()

	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrEmptyPassword
	}

	exists, err := s.users.Exists(ctx, email)
	if err != nil {
		return nil, oops.Code("AUTH_CREATE_FAILED").With("operation", "check email").Wrap(err)
	}
	if exists {
		return nil, errEmailTaken()
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_CREATE_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := s.users.Create(ctx, email, hash)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, errEmailTaken()
		}
		return nil, oops.Code("AUTH_CREATE_FAILED").With("operation", "create user").Wrap(err)
	}

	code, err := s.codes.Create(ctx, user.ID, CodeTypeEmailVerification, s.now().Add(s.cfg.VerificationCodeTTL))
	if err != nil {
		return nil, oops.Code("AUTH_CREATE_FAILED").
			With("operation", "create verification code").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.sendVerification(ctx, user, code)

	tokens, err := s.openSession(ctx, user, userAgent)
	if err != nil {
		return nil, oops.Code("AUTH_CREATE_FAILED").With("user_id", user.ID.String()).Wrap(err)
	}

	return &AccountResult{User: user.Public(), TokenPair: *tokens}, nil
}

// sendVerification mails the verification link. Failures are logged only;
// the account already exists and a new link can be requested by reset.
func (s *Service) sendVerification(ctx context.Context, user *User, code *VerificationCode) {
	msg, err := verificationMessage(user.Email, s.link("/verify-email", "code", code.ID))
	if err == nil {
		_, err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		errutil.LogError(s.logger, "verification email failed", err,
			"event", "verification_email_failed",
			"operation", OpCreateAccount,
			"user_id", user.ID.String(),
		)
	}
}

// Login authenticates a user by email and password and opens a new session.
// Unknown emails and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, email, password, userAgent string) (result *AccountResult, err error) {
	ctx, finish := s.startOp(ctx, OpLogin)
	defer func() { finish(err) }()

	user, lookupErr := s.users.GetByEmail(ctx, email)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "get user by email").Wrap(lookupErr)
	}

	found := lookupErr == nil && user != nil

	// Always verify so that unknown emails cost as much as known ones.
	targetHash := DummyHash
	if found {
		targetHash = user.PasswordHash
	}
	valid, verifyErr := s.hasher.Verify(password, targetHash)

	if !found {
		return nil, errInvalidCredentials()
	}
	if verifyErr != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}
	if !valid {
		return nil, errInvalidCredentials()
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	tokens, err := s.openSession(ctx, user, userAgent)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("user_id", user.ID.String()).Wrap(err)
	}

	return &AccountResult{User: user.Public(), TokenPair: *tokens}, nil
}

// upgradeHash re-hashes a legacy password hash. Login succeeds regardless.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		_, err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		errutil.LogWarn(s.logger, "password hash upgrade failed", err,
			"event", "hash_upgrade_failed",
			"operation", OpLogin,
			"user_id", user.ID.String(),
		)
	}
}

// openSession creates a session for user and signs its token pair.
func (s *Service) openSession(ctx context.Context, user *User, userAgent string) (*TokenPair, error) {
	session, err := s.sessions.Create(ctx, user.ID, userAgent, s.now().Add(s.cfg.SessionTTL))
	if err != nil {
		return nil, oops.With("operation", "create session").Wrap(err)
	}

	access, err := s.signer.SignAccess(AccessClaims{UserID: user.ID, SessionID: session.ID})
	if err != nil {
		return nil, oops.With("operation", "sign access token").Wrap(err)
	}
	refresh, err := s.signer.SignRefresh(RefreshClaims{SessionID: session.ID})
	if err != nil {
		return nil, oops.With("operation", "sign refresh token").Wrap(err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// link builds an absolute URL under the configured origin.
func (s *Service) link(path string, kv ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(s.cfg.Origin, "/"))
	b.WriteString(path)
	for i := 0; i+1 < len(kv); i += 2 {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(kv[i])
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[i+1]))
	}
	return b.String()
}
