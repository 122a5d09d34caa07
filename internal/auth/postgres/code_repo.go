// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// CodeRepository implements auth.CodeRepository using PostgreSQL. Only the
// SHA-256 of each code is stored; the plaintext leaves through Create alone.
type CodeRepository struct {
	pool poolIface
	opts options
}

// NewCodeRepository creates a new CodeRepository.
func NewCodeRepository(pool poolIface, opts ...Option) *CodeRepository {
	return &CodeRepository{pool: pool, opts: buildOptions(opts)}
}

// Create generates and stores a new code.
func (r *CodeRepository) Create(ctx context.Context, userID ulid.ULID, typ auth.CodeType, expiresAt time.Time) (*auth.VerificationCode, error) {
	if !typ.Valid() {
		return nil, oops.Code("CODE_CREATE_FAILED").With("type", string(typ)).Errorf("unknown code type")
	}
	id, err := auth.GenerateCodeID()
	if err != nil {
		return nil, err
	}

	code := &auth.VerificationCode{
		ID:        id,
		UserID:    userID,
		Type:      typ,
		ExpiresAt: timestamp(expiresAt),
		CreatedAt: timestamp(r.opts.now()),
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO verification_codes (code_hash, user_id, type, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, auth.HashCodeID(id), userID.String(), string(typ), code.ExpiresAt, code.CreatedAt)
	if err != nil {
		return nil, oops.Code("CODE_CREATE_FAILED").
			With("operation", "insert code").
			With("user_id", userID.String()).
			With("type", string(typ)).
			Wrap(err)
	}
	return code, nil
}

// FindValid returns the unexpired code with this id and type.
func (r *CodeRepository) FindValid(ctx context.Context, id string, typ auth.CodeType, now time.Time) (*auth.VerificationCode, error) {
	code := auth.VerificationCode{ID: id, Type: typ}
	var userIDStr string

	err := r.pool.QueryRow(ctx, `
		SELECT user_id, expires_at, created_at
		FROM verification_codes
		WHERE code_hash = $1 AND type = $2 AND expires_at > $3
	`, auth.HashCodeID(id), string(typ), now).Scan(&userIDStr, &code.ExpiresAt, &code.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CODE_NOT_FOUND").With("type", string(typ)).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CODE_GET_FAILED").
			With("operation", "find code").
			With("type", string(typ)).
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("CODE_GET_FAILED").With("user_id", userIDStr).Wrap(err)
	}
	code.UserID = userID
	return &code, nil
}

// CountSince counts stored codes of typ created for userID at or after since.
func (r *CodeRepository) CountSince(ctx context.Context, userID ulid.ULID, typ auth.CodeType, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM verification_codes
		WHERE user_id = $1 AND type = $2 AND created_at >= $3
	`, userID.String(), string(typ), since).Scan(&count)
	if err != nil {
		return 0, oops.Code("CODE_COUNT_FAILED").
			With("operation", "count codes").
			With("user_id", userID.String()).
			With("type", string(typ)).
			Wrap(err)
	}
	return count, nil
}

// Delete removes the code.
func (r *CodeRepository) Delete(ctx context.Context, code *auth.VerificationCode) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM verification_codes WHERE code_hash = $1`, auth.HashCodeID(code.ID))
	if err != nil {
		return oops.Code("CODE_DELETE_FAILED").
			With("operation", "delete code").
			With("user_id", code.UserID.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("CODE_NOT_FOUND").With("user_id", code.UserID.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes codes that expired at or before now and returns
// how many were removed.
func (r *CodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM verification_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("CODE_PRUNE_FAILED").With("operation", "delete expired codes").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var _ auth.CodeRepository = (*CodeRepository)(nil)
