// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by UserRepository.Create when the email is
// already registered.
var ErrDuplicateEmail = errors.New("duplicate email")

// Kind classifies a failure for the transport layer.
type Kind string

// Failure kinds.
const (
	KindBadRequest      Kind = "bad_request"
	KindConflict        Kind = "conflict"
	KindUnauthorized    Kind = "unauthorized"
	KindNotFound        Kind = "not_found"
	KindTooManyRequests Kind = "too_many_requests"
	KindInternal        Kind = "internal"
)

// Error codes with a non-internal kind.
const (
	CodeInvalidEmail        = "AUTH_INVALID_EMAIL"
	CodeEmptyPassword       = "AUTH_EMPTY_PASSWORD"
	CodeEmailTaken          = "AUTH_EMAIL_TAKEN"
	CodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidRefreshToken = "AUTH_INVALID_REFRESH_TOKEN"
	CodeSessionExpired      = "AUTH_SESSION_EXPIRED"
	CodeVerificationInvalid = "AUTH_CODE_INVALID"
	CodeUserNotFound        = "AUTH_USER_NOT_FOUND"
	CodeResetThrottled      = "AUTH_RESET_THROTTLED"
)

// Messages shared by every path that produces the same failure, so that
// callers cannot tell the paths apart.
const (
	msgInvalidCredentials = "invalid email or password"
	msgInvalidRefresh     = "invalid refresh token"
	msgSessionExpired     = "session expired"
	msgInvalidCode        = "invalid or expired verification code"
	msgInternal           = "internal error"
)

// KindOf returns the failure kind of err, or "" for a nil error.
// Errors without a recognised code are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindInternal
	}

	switch oopsErr.Code() {
	case CodeInvalidEmail, CodeEmptyPassword:
		return KindBadRequest
	case CodeEmailTaken:
		return KindConflict
	case CodeInvalidCredentials, CodeInvalidRefreshToken, CodeSessionExpired:
		return KindUnauthorized
	case CodeVerificationInvalid, CodeUserNotFound:
		return KindNotFound
	case CodeResetThrottled:
		return KindTooManyRequests
	default:
		return KindInternal
	}
}

// PublicMessage returns the caller-facing message for err. Internal failures only
// expose their public message, never the wrapped cause.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if KindOf(err) == KindInternal {
		return oops.GetPublic(err, msgInternal)
	}
	return err.Error()
}

func errEmailTaken() error {
	return oops.Code(CodeEmailTaken).Errorf("email already registered")
}

func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf(msgInvalidCredentials)
}

func errSessionExpired() error {
	return oops.Code(CodeSessionExpired).Errorf(msgSessionExpired)
}

func errInvalidCode() error {
	return oops.Code(CodeVerificationInvalid).Errorf(msgInvalidCode)
}
