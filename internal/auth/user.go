// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"net/mail"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxEmailLength is the longest address accepted (RFC 5321 path limit).
const MaxEmailLength = 254

// User is an account record as held by a UserRepository.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string `json:"-"`
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the outward view of a User. It deliberately has no field
// for the password hash.
type PublicUser struct {
	ID        ulid.ULID `json:"id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// Public returns the outward view of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}

// ValidateEmail checks that email is a bare RFC 5322 address.
// Display names ("Ann <ann@example.com>") are rejected.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeInvalidEmail).Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code(CodeInvalidEmail).
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code(CodeInvalidEmail).Errorf("email is not a valid address")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Exists reports whether a user with exactly this email exists.
	Exists(ctx context.Context, email string) (bool, error)

	// Create stores a new unverified user and returns it with its assigned ID.
	// Returns ErrDuplicateEmail if the email is already registered.
	Create(ctx context.Context, email, passwordHash string) (*User, error)

	// GetByEmail retrieves a user by email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// UpdateVerified marks the user's email as verified and returns the
	// updated record. Returns ErrNotFound if the user does not exist.
	UpdateVerified(ctx context.Context, id ulid.ULID) (*User, error)

	// UpdatePasswordHash replaces the user's password hash and returns the
	// updated record. Returns ErrNotFound if the user does not exist.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) (*User, error)
}
