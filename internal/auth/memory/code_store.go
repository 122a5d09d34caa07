// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// CodeStore implements auth.CodeRepository.
type CodeStore struct {
	mu    sync.RWMutex
	codes map[string]*auth.VerificationCode
	opts  options
}

// NewCodeStore creates an empty CodeStore.
func NewCodeStore(opts ...Option) *CodeStore {
	return &CodeStore{
		codes: make(map[string]*auth.VerificationCode),
		opts:  buildOptions(opts),
	}
}

// Create generates and stores a new code.
func (s *CodeStore) Create(_ context.Context, userID ulid.ULID, typ auth.CodeType, expiresAt time.Time) (*auth.VerificationCode, error) {
	if !typ.Valid() {
		return nil, oops.Code("CODE_CREATE_FAILED").With("type", string(typ)).Errorf("unknown code type")
	}
	id, err := auth.GenerateCodeID()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code := &auth.VerificationCode{
		ID:        id,
		UserID:    userID,
		Type:      typ,
		ExpiresAt: expiresAt,
		CreatedAt: s.opts.now(),
	}
	s.codes[id] = code

	clone := *code
	return &clone, nil
}

// FindValid returns the unexpired code with this id and type.
func (s *CodeStore) FindValid(_ context.Context, id string, typ auth.CodeType, now time.Time) (*auth.VerificationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code, ok := s.codes[id]
	if !ok || !code.IsValidAt(typ, now) {
		return nil, oops.Code("NOT_FOUND").With("type", string(typ)).Wrap(auth.ErrNotFound)
	}
	clone := *code
	return &clone, nil
}

// CountSince counts codes of typ created for userID at or after since.
func (s *CodeStore) CountSince(_ context.Context, userID ulid.ULID, typ auth.CodeType, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, code := range s.codes {
		if code.UserID == userID && code.Type == typ && !code.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// Delete removes the code.
func (s *CodeStore) Delete(_ context.Context, code *auth.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codes[code.ID]; !ok {
		return oops.Code("NOT_FOUND").With("user_id", code.UserID.String()).Wrap(auth.ErrNotFound)
	}
	delete(s.codes, code.ID)
	return nil
}

// DeleteExpired removes codes that expired at or before now.
func (s *CodeStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, code := range s.codes {
		if !code.ExpiresAt.After(now) {
			delete(s.codes, id)
			n++
		}
	}
	return n, nil
}
