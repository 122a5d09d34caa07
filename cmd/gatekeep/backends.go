// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/auth/memory"
	"github.com/gatekeep/gatekeep/internal/auth/postgres"
	"github.com/gatekeep/gatekeep/internal/auth/redis"
	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/mail"
	"github.com/gatekeep/gatekeep/internal/store"
)

// Backends are the opened stores for the selected session backend.
type Backends struct {
	Users    auth.UserRepository
	Sessions auth.SessionRepository
	Codes    auth.CodeRepository

	closers []func()
}

// Close releases every connection the backends hold.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Pruners returns the stores that can delete expired records, keyed by a
// name for reporting.
func (b *Backends) Pruners() map[string]auth.Pruner {
	out := make(map[string]auth.Pruner, 2)
	if p, ok := b.Sessions.(auth.Pruner); ok {
		out["sessions"] = p
	}
	if p, ok := b.Codes.(auth.Pruner); ok {
		out["codes"] = p
	}
	return out
}

// openBackends connects the stores chosen by cfg. Users and codes live in
// PostgreSQL for every backend except memory.
func openBackends(ctx context.Context, cfg *config.Config) (*Backends, error) {
	if cfg.Sessions.Backend == config.BackendMemory {
		return &Backends{
			Users:    memory.NewUserStore(),
			Sessions: memory.NewSessionStore(),
			Codes:    memory.NewCodeStore(),
		}, nil
	}

	pool, err := store.Connect(ctx, cfg.Database.URL, store.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, oops.With("operation", "connect to database").Wrap(err)
	}

	b := &Backends{
		Users:   postgres.NewUserRepository(pool),
		Codes:   postgres.NewCodeRepository(pool),
		closers: []func(){pool.Close},
	}

	switch cfg.Sessions.Backend {
	case config.BackendRedis:
		rc := cfg.Sessions.Redis
		client, err := redis.Dial(ctx, redis.ClientConfig{
			Addr:            rc.Addr,
			Password:        rc.Password,
			DB:              rc.DB,
			ConnectAttempts: cfg.Database.ConnectAttempts,
		})
		if err != nil {
			b.Close()
			return nil, oops.With("operation", "connect to redis").Wrap(err)
		}
		b.closers = append(b.closers, func() {
			if err := client.Close(); err != nil {
				slog.Debug("error closing redis client", "error", err)
			}
		})
		b.Sessions = redis.NewSessionStore(client,
			redis.WithPrefix(rc.Prefix),
			redis.WithRetention(rc.Retention),
		)
	default:
		b.Sessions = postgres.NewSessionRepository(pool)
	}

	return b, nil
}

// newMailer creates the mailer selected by cfg.Mail.Driver.
func newMailer(cfg *config.Config, logger *slog.Logger) (auth.Mailer, error) {
	switch cfg.Mail.Driver {
	case config.MailDriverSMTP:
		s := cfg.Mail.SMTP
		return mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     s.Host,
			Port:     s.Port,
			Username: s.Username,
			Password: s.Password,
			From:     s.From,
			Attempts: s.Attempts,
			Backoff:  s.Backoff,
		})
	case config.MailDriverLog:
		return mail.NewLogMailer(logger), nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("driver", cfg.Mail.Driver).Errorf("unknown mail driver")
	}
}
