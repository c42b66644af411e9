// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/observability"
	"github.com/authgate/authgate/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// DatabaseFactory opens the account database.
	// Default: store.Connect
	DatabaseFactory func(ctx context.Context, cfg config.DatabaseConfig) (Database, error)

	// MigratorFactory creates a migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (AutoMigrator, error)

	// RedisFactory creates the rate limiter backend.
	// Default: redis.NewClient
	RedisFactory func(cfg config.RedisConfig) *redis.Client

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

// Database wraps the methods used from *pgxpool.Pool.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// AutoMigrator wraps the methods used from store.Migrator on startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *ServeDeps) withDefaults() {
	if d.DatabaseFactory == nil {
		d.DatabaseFactory = func(ctx context.Context, cfg config.DatabaseConfig) (Database, error) {
			pool, err := store.Connect(ctx, cfg.URL, store.PoolConfig{
				MaxConns:       cfg.MaxConns,
				ConnectRetries: cfg.ConnectRetries,
				RetryBackoff:   cfg.RetryBackoff,
			})
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(databaseURL string) (AutoMigrator, error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if d.RedisFactory == nil {
		d.RedisFactory = func(cfg config.RedisConfig) *redis.Client {
			return redis.NewClient(&redis.Options{
				Addr:     cfg.Addr,
				Password: cfg.Password,
				DB:       cfg.DB,
			})
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
}
