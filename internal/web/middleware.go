// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package web

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"

	"github.com/authgate/authgate/internal/ratelimit"
	"github.com/authgate/authgate/pkg/errutil"
)

// unmatchedRoute labels requests that did not hit a registered route, so
// arbitrary paths cannot grow the metric cardinality.
const unmatchedRoute = "unmatched"

// RateLimiter decides whether a client may send another request.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

// RequestObserver records per-request metrics.
type RequestObserver interface {
	ObserveRequest(method, route string, status int)
	ObserveRateLimited()
}

type noopRequestObserver struct{}

func (noopRequestObserver) ObserveRequest(string, string, int) {}
func (noopRequestObserver) ObserveRateLimited()                {}

// accessLog logs and counts every request. Errors from the chain are
// rendered here so the recorded status is the one sent to the client.
func (s *Server) accessLog(c fiber.Ctx) error {
	start := time.Now()
	if chainErr := c.Next(); chainErr != nil {
		if err := s.handleError(c, chainErr); err != nil {
			return err
		}
	}

	status := c.Response().StatusCode()
	route := s.routeLabel(c)
	s.observer.ObserveRequest(c.Method(), route, status)

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(c.Context(), level, "http request",
		slog.String("method", c.Method()),
		slog.String("route", route),
		slog.String("path", c.Path()),
		slog.Int("status", status),
		slog.Duration("latency", time.Since(start)),
		slog.String("request_id", requestid.FromContext(c)),
		slog.String("ip", c.IP()),
	)
	return nil
}

func (s *Server) routeLabel(c fiber.Ctx) string {
	if r := c.Route(); r != nil {
		if _, ok := s.routes[routeKey(c.Method(), r.Path)]; ok {
			return r.Path
		}
	}
	return unmatchedRoute
}

func routeKey(method, path string) string {
	return method + " " + path
}

// rateLimit enforces the per-client request window. A limiter failure
// admits the request.
func (s *Server) rateLimit(c fiber.Ctx) error {
	res, err := s.limiter.Allow(c.Context(), c.IP())
	if err != nil {
		errutil.LogErrorContext(c.Context(), s.logger, slog.LevelWarn, "rate limiter unavailable, admitting request", err)
		return c.Next()
	}

	c.Set("RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
	if !res.Allowed {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(res.RetryAfter)))
		s.observer.ObserveRateLimited()
		return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later.")
	}
	return c.Next()
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
