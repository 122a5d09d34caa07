// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ClientConfig describes how to reach Redis.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
	// ConnectAttempts bounds retries of the initial ping.
	ConnectAttempts uint64
}

// Dial creates a client and waits until Redis answers a ping.
func Dial(ctx context.Context, cfg ClientConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	backoff := retry.WithMaxRetries(cfg.ConnectAttempts,
		retry.WithCappedDuration(5*time.Second, retry.NewExponential(250*time.Millisecond)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").
			With("addr", cfg.Addr).
			With("attempts", cfg.ConnectAttempts+1).
			Wrap(err)
	}
	return client, nil
}
