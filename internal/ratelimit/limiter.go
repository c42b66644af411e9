// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package ratelimit implements a fixed-window request limiter on Redis.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// Default window settings: 100 requests per client per 15 minutes.
const (
	DefaultLimit  = 100
	DefaultWindow = 15 * time.Minute
	keyPrefix     = "authgate:rl:"
)

// Result is the state of a client's window after counting one request.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts requests per key in fixed windows. Counters live in Redis
// so every replica shares them.
type Limiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
}

// New creates a Limiter allowing limit requests per window.
func New(client redis.Cmdable, limit int, window time.Duration) (*Limiter, error) {
	if client == nil {
		return nil, oops.Code("RATELIMIT_CONFIG_INVALID").Errorf("redis client is required")
	}
	if limit <= 0 || window <= 0 {
		return nil, oops.Code("RATELIMIT_CONFIG_INVALID").
			With("limit", limit).
			With("window", window.String()).
			Errorf("limit and window must be positive")
	}
	return &Limiter{client: client, limit: limit, window: window}, nil
}

// Allow counts one request for key.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := keyPrefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "incr").Wrap(err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			return Result{}, oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "expire").Wrap(err)
		}
	}

	res := Result{Allowed: count <= int64(l.limit), Limit: l.limit}
	if res.Allowed {
		res.Remaining = l.limit - int(count)
		return res, nil
	}

	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Result{}, oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "pttl").Wrap(err)
	}
	if ttl < 0 {
		// A lost EXPIRE would otherwise lock the client out for good.
		if err := l.client.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			return Result{}, oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "expire").Wrap(err)
		}
		ttl = l.window
	}
	res.RetryAfter = ttl
	return res, nil
}

// Limit returns the number of requests allowed per window.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the window length.
func (l *Limiter) Window() time.Duration { return l.window }
