// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package store manages the PostgreSQL connection pool and schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PoolConfig tunes Connect.
type PoolConfig struct {
	MaxConns       int32
	ConnectRetries uint64
	RetryBackoff   time.Duration
}

// DefaultPoolConfig is used for zero-valued PoolConfig fields.
var DefaultPoolConfig = PoolConfig{
	MaxConns:       10,
	ConnectRetries: 5,
	RetryBackoff:   500 * time.Millisecond,
}

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pool for databaseURL and waits until the database answers
// a ping, backing off exponentially between attempts.
func Connect(ctx context.Context, databaseURL string, cfg PoolConfig) (*pgxpool.Pool, error) {
	cfg = withPoolDefaults(cfg)

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	poolCfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitForDatabase(ctx, pool, cfg); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForDatabase(ctx context.Context, db pinger, cfg PoolConfig) error {
	backoff := retry.WithMaxRetries(cfg.ConnectRetries, retry.NewExponential(cfg.RetryBackoff))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "database not reachable yet", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}

func withPoolDefaults(cfg PoolConfig) PoolConfig {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = DefaultPoolConfig.MaxConns
	}
	if cfg.ConnectRetries == 0 {
		cfg.ConnectRetries = DefaultPoolConfig.ConnectRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultPoolConfig.RetryBackoff
	}
	return cfg
}
