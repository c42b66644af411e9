// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/auth/memory"
	"github.com/authgate/authgate/internal/auth/postgres"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/mail"
	"github.com/authgate/authgate/internal/observability"
	"github.com/authgate/authgate/internal/ratelimit"
	"github.com/authgate/authgate/internal/web"
)

const serviceName = "authgate"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API",
		Long: `Start the HTTP API together with the metrics and health endpoints.
Configuration is read from the defaults, the --config file (or
$XDG_CONFIG_HOME/authgate/config.yaml), AUTHGATE_ environment variables
and flags, in that order.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := resolveConfigFile()
			if err != nil {
				return err
			}
			cfg, err := config.Load(config.LoadOptions{File: file, Flags: cmd.Flags()})
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps wires the service from cfg and serves until a signal,
// a server failure, or ctx cancellation. If deps is nil, default
// implementations are used.
func runServeWithDeps(ctx context.Context, cfg config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	deps.withDefaults()

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, level)

	slog.Info("starting authgate",
		"env", cfg.Env,
		"http_addr", cfg.HTTP.Addr,
		"database_driver", cfg.Database.Driver,
		"mail_driver", cfg.Mail.Driver,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	accounts, readiness, closeDB, err := openAccounts(ctx, cfg.Database, deps)
	if err != nil {
		return err
	}
	defer closeDB()

	var obsServer ObservabilityServer
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, readiness)
		metrics = obsServer.Metrics()
	}

	svc, err := buildService(cfg, accounts, metrics, logger)
	if err != nil {
		return err
	}

	webOpts := []web.Option{web.WithLogger(logger), web.WithRequestObserver(metrics)}
	if cfg.Redis.Addr != "" {
		client := deps.RedisFactory(cfg.Redis)
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				slog.Debug("error closing redis client", "error", closeErr)
			}
		}()
		limiter, limErr := ratelimit.New(client, cfg.RateLimit.Limit, cfg.RateLimit.Window)
		if limErr != nil {
			return limErr
		}
		webOpts = append(webOpts, web.WithRateLimiter(limiter))
		slog.Info("rate limiting enabled", "limit", limiter.Limit(), "window", limiter.Window())
	}

	webServer, err := web.New(svc, web.Options{
		ClientURL:  cfg.HTTP.ClientURL,
		BodyLimit:  cfg.HTTP.BodyLimit,
		CookieName: cfg.HTTP.CookieName,
		Production: cfg.Production(),
	}, webOpts...)
	if err != nil {
		return err
	}

	webErrChan, err := webServer.Start(cfg.HTTP.Addr)
	if err != nil {
		return err
	}
	// Monitor web server errors in background - cancel context on error
	go monitorServerErrors(ctx, cancel, webErrChan, "web")

	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	}

	if obsServer != nil {
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			stopCtx, stopCancel := shutdownCtx()
			defer stopCancel()
			if stopErr := webServer.Stop(stopCtx); stopErr != nil {
				slog.Warn("failed to stop web server during cleanup", "error", stopErr)
			}
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Authgate started on " + webServer.Addr())
	slog.Info("authgate ready", "addr", webServer.Addr())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")
	stopCtx, stopCancel := shutdownCtx()
	defer stopCancel()

	if err := webServer.Stop(stopCtx); err != nil {
		slog.Warn("error stopping web server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(stopCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// openAccounts selects the account repository for the configured driver.
// The returned close function is always safe to call.
func openAccounts(ctx context.Context, cfg config.DatabaseConfig, deps *ServeDeps) (auth.AccountRepository, observability.ReadinessChecker, func(), error) {
	if cfg.Driver == config.DriverMemory {
		slog.Warn("using in-memory account storage; accounts are lost on restart")
		return memory.NewAccountRepository(), nil, func() {}, nil
	}

	if cfg.AutoMigrate {
		if err := autoMigrate(cfg.URL, deps); err != nil {
			return nil, nil, nil, err
		}
	}

	db, err := deps.DatabaseFactory(ctx, cfg)
	if err != nil {
		return nil, nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	slog.Info("connected to database")
	return postgres.NewAccountRepository(db), db.Ping, db.Close, nil
}

// autoMigrate applies pending migrations before the pool is opened.
func autoMigrate(databaseURL string, deps *ServeDeps) error {
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	slog.Info("running database migrations")
	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	slog.Info("database migrations complete")
	return nil
}

// buildService assembles the credential store, token issuer and mailer.
func buildService(cfg config.Config, accounts auth.AccountRepository, metrics *observability.Metrics, logger *slog.Logger) (*auth.Service, error) {
	store, err := auth.NewCredentialStore(accounts, auth.NewArgon2idHasher(),
		auth.WithOTPTTL(cfg.Challenge.OTPTTL),
		auth.WithResetTTL(cfg.Challenge.ResetTTL),
	)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenIssuer([]byte(cfg.Token.Secret), cfg.Token.Lifetime)
	if err != nil {
		return nil, err
	}

	mailer, err := buildMailer(cfg.Mail, logger)
	if err != nil {
		return nil, err
	}

	return auth.NewService(store, tokens, mail.NewInstrumented(mailer, metrics), cfg.HTTP.ClientURL,
		auth.WithLogger(logger),
		auth.WithFlowObserver(metrics),
	)
}

func buildMailer(cfg config.MailConfig, logger *slog.Logger) (auth.Mailer, error) {
	if cfg.Driver == config.MailerLog {
		slog.Warn("using the log mailer; messages are written to the log instead of being sent")
		return mail.NewLogSender(logger), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
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
