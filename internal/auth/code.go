// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CodeIDBytes is the entropy of a verification code id (64 hex chars).
const CodeIDBytes = 32

// CodeType is the purpose a verification code was issued for.
type CodeType string

// Verification code types.
const (
	CodeTypeEmailVerification CodeType = "email_verification"
	CodeTypePasswordReset     CodeType = "password_reset"
)

// Valid reports whether t is a known code type.
func (t CodeType) Valid() bool {
	switch t {
	case CodeTypeEmailVerification, CodeTypePasswordReset:
		return true
	default:
		return false
	}
}

// VerificationCode is a single-use, typed, time-boxed secret. ID is the
// bearer secret itself.
type VerificationCode struct {
	ID        string
	UserID    ulid.ULID
	Type      CodeType
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsValidAt reports whether the code can be used for typ at t.
func (c *VerificationCode) IsValidAt(typ CodeType, t time.Time) bool {
	return c.Type == typ && c.ExpiresAt.After(t)
}

// GenerateCodeID creates a random verification code id.
func GenerateCodeID() (string, error) {
	b := make([]byte, CodeIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("CODE_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", CodeIDBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// HashCodeID computes the SHA256 hash of a code id, for stores that must not
// keep the bearer secret at rest.
func HashCodeID(id string) string {
	h := sha256.Sum256([]byte(id))
	return hex.EncodeToString(h[:])
}

// CodeRepository manages verification code persistence.
type CodeRepository interface {
	// Create generates and stores a new code for userID.
	Create(ctx context.Context, userID ulid.ULID, typ CodeType, expiresAt time.Time) (*VerificationCode, error)

	// FindValid returns the code with this id and type that has not expired at now.
	// Returns ErrNotFound when no such code exists; missing, mistyped, and
	// expired codes are indistinguishable.
	FindValid(ctx context.Context, id string, typ CodeType, now time.Time) (*VerificationCode, error)

	// CountSince counts stored codes of typ created for userID at or after
	// since, expired ones included. Consumed codes are deleted and not counted.
	CountSince(ctx context.Context, userID ulid.ULID, typ CodeType, since time.Time) (int, error)

	// Delete removes the code. Returns ErrNotFound if it was already gone.
	Delete(ctx context.Context, code *VerificationCode) error
}
