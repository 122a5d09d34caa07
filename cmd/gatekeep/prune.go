// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/config"
)

// openPruneBackends is replaced in tests.
var openPruneBackends = openBackends

// NewPruneCmd creates the prune subcommand.
func NewPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions and verification codes",
		Long: `Delete sessions and verification codes whose expiry has passed.
Expired records are already rejected by the service; pruning only reclaims
storage. Safe to run while the server is up.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrune(cmd.Context(), cmd, time.Now())
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runPrune(ctx context.Context, cmd *cobra.Command, now time.Time) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.ValidateStorage(); err != nil {
		return err
	}
	if cfg.Sessions.Backend == config.BackendMemory {
		return oops.Code("CONFIG_INVALID").
			With("field", "sessions.backend").
			Errorf("prune needs a persistent backend")
	}

	backends, err := openPruneBackends(ctx, cfg)
	if err != nil {
		return oops.Code("PRUNE_FAILED").With("operation", "open backends").Wrap(err)
	}
	defer backends.Close()

	pruners := backends.Pruners()
	names := make([]string, 0, len(pruners))
	for name := range pruners {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		n, err := pruners[name].DeleteExpired(ctx, now)
		if err != nil {
			return oops.Code("PRUNE_FAILED").With("store", name).Wrap(err)
		}
		slog.Info("pruned expired records", "event", "prune", "store", name, "deleted", n)
		cmd.Printf("%s: deleted %d expired\n", name, n)
	}
	return nil
}
