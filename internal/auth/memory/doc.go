// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package memory provides in-process implementations of the auth
// repositories. They back the memory session backend and the auth tests;
// nothing survives a restart.
package memory

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the time source used for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func notFound(entity string, id string) error {
	return oops.Code("NOT_FOUND").With(entity, id).Wrap(auth.ErrNotFound)
}

func newID(now time.Time) ulid.ULID {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
}
