// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// UserStore implements auth.UserRepository.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.User
	byEmail map[string]ulid.ULID
	opts    options
}

// NewUserStore creates an empty UserStore.
func NewUserStore(opts ...Option) *UserStore {
	return &UserStore{
		byID:    make(map[ulid.ULID]*auth.User),
		byEmail: make(map[string]ulid.ULID),
		opts:    buildOptions(opts),
	}
}

// Exists reports whether email is registered.
func (s *UserStore) Exists(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[email]
	return ok, nil
}

// Create stores a new unverified user.
func (s *UserStore) Create(_ context.Context, email, passwordHash string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return nil, oops.Code("USER_CREATE_FAILED").Wrap(auth.ErrDuplicateEmail)
	}

	now := s.opts.now()
	user := &auth.User{
		ID:           newID(now),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[user.ID] = user
	s.byEmail[email] = user.ID

	clone := *user
	return &clone, nil
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, oops.Code("NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	clone := *s.byID[id]
	return &clone, nil
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, notFound("user_id", id.String())
	}
	clone := *user
	return &clone, nil
}

// UpdateVerified marks the user verified.
func (s *UserStore) UpdateVerified(_ context.Context, id ulid.ULID) (*auth.User, error) {
	return s.update(id, func(u *auth.User) { u.Verified = true })
}

// UpdatePasswordHash replaces the user's password hash.
func (s *UserStore) UpdatePasswordHash(_ context.Context, id ulid.ULID, passwordHash string) (*auth.User, error) {
	return s.update(id, func(u *auth.User) { u.PasswordHash = passwordHash })
}

func (s *UserStore) update(id ulid.ULID, mutate func(*auth.User)) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, notFound("user_id", id.String())
	}
	mutate(user)
	user.UpdatedAt = s.opts.now()

	clone := *user
	return &clone, nil
}
