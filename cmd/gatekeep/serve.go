// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/httpapi"
	"github.com/gatekeep/gatekeep/internal/logging"
)

const serviceName = "gatekeep"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API and, unless --metrics-addr is empty, the
metrics and health server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps runs the API until ctx is cancelled, SIGINT or SIGTERM
// arrives, or a server fails. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}

	logger := logging.Setup(serviceName, version, cfg.Log.Format, cmd.ErrOrStderr(), logging.WithLevel(level))
	slog.SetDefault(logger)

	logger.Info("starting gatekeep",
		"listen", cfg.Server.Listen,
		"session_backend", cfg.Sessions.Backend,
		"mail_driver", cfg.Mail.Driver,
	)
	logger.Debug("effective configuration", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	backends, err := deps.BackendsFactory(ctx, cfg)
	if err != nil {
		return oops.Code("STARTUP_FAILED").With("component", "backends").Wrap(err)
	}
	defer backends.Close()

	mailer, err := deps.MailerFactory(cfg, logger)
	if err != nil {
		return oops.Code("STARTUP_FAILED").With("component", "mailer").Wrap(err)
	}

	signer, err := auth.NewJWTSigner(cfg.SignerConfig())
	if err != nil {
		return oops.Code("STARTUP_FAILED").With("component", "token signer").Wrap(err)
	}

	var ready atomic.Bool
	var (
		recorder     auth.Recorder
		httpRecorder httpapi.RequestRecorder
		obsServer    ObservabilityServer
	)
	if cfg.Server.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Server.MetricsAddr, ready.Load)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("STARTUP_FAILED").With("component", "observability").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		recorder = obsServer.AuthMetrics()
		httpRecorder = obsServer.HTTPMetrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	svc, err := auth.NewService(auth.Deps{
		Users:    backends.Users,
		Sessions: backends.Sessions,
		Codes:    backends.Codes,
		Signer:   signer,
		Mailer:   mailer,
		Hasher:   auth.NewArgon2idHasher(),
	}, cfg.AuthCore(), auth.WithLogger(logger), auth.WithRecorder(recorder))
	if err != nil {
		stopObservability(obsServer, logger)
		return oops.Code("STARTUP_FAILED").With("component", "auth service").Wrap(err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.NewHandler(svc, logger), httpRecorder, logger)

	listener, err := deps.ListenerFactory("tcp", cfg.Server.Listen)
	if err != nil {
		stopObservability(obsServer, logger)
		return oops.Code("STARTUP_FAILED").With("addr", cfg.Server.Listen).Wrap(err)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	apiErrCh := make(chan error, 1)
	go func() {
		defer close(apiErrCh)
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- serveErr
		}
	}()
	ready.Store(true)

	cmd.Println("Gatekeep listening on " + listener.Addr().String())
	logger.Info("gatekeep ready", "addr", listener.Addr().String())

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down", "reason", context.Cause(ctx))
	case serveErr := <-apiErrCh:
		runErr = oops.Code("SERVE_FAILED").Wrap(serveErr)
	}

	ready.Store(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping API server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

func stopObservability(s ObservabilityServer, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when an error arrives, the channel closes, or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
