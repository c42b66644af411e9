// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package web exposes the auth service over a JSON HTTP API.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

// DefaultBodyLimit caps request bodies at 10 KiB.
const DefaultBodyLimit = 10 * 1024

// Options configures the HTTP surface.
type Options struct {
	// ClientURL is the only origin allowed by CORS.
	ClientURL string
	BodyLimit int
	// CookieName defaults to DefaultCookieName.
	CookieName string
	// Production turns on Secure and SameSite=Strict cookies.
	Production bool
}

// Server serves the auth API.
type Server struct {
	app      *fiber.App
	svc      *auth.Service
	cookies  CookieBinder
	limiter  RateLimiter
	observer RequestObserver
	logger   *slog.Logger
	routes   map[string]struct{}
	listener net.Listener
	running  atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimiter enables per-client rate limiting.
func WithRateLimiter(l RateLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithRequestObserver sets the sink for request metrics.
func WithRequestObserver(o RequestObserver) Option {
	return func(s *Server) { s.observer = o }
}

// WithLogger sets the logger used for access and error logs.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds the API server around svc.
func New(svc *auth.Service, opts Options, options ...Option) (*Server, error) {
	if svc == nil {
		return nil, oops.Code("WEB_CONFIG_INVALID").Errorf("auth service is required")
	}
	origin := strings.TrimRight(opts.ClientURL, "/")
	if _, err := url.ParseRequestURI(origin); err != nil {
		return nil, oops.Code("WEB_CONFIG_INVALID").With("client_url", opts.ClientURL).Wrap(err)
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = DefaultBodyLimit
	}

	s := &Server{
		svc:      svc,
		cookies:  NewCookieBinder(opts.CookieName, opts.Production, svc.TokenLifetime()),
		observer: noopRequestObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		AppName:      "authgate",
		BodyLimit:    opts.BodyLimit,
		ErrorHandler: s.handleError,
	})

	s.app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	s.app.Use(s.accessLog)
	s.app.Use(recoverer.New())
	s.app.Use(helmet.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{origin},
		AllowCredentials: true,
	}))
	s.app.Use(compress.New())
	if s.limiter != nil {
		s.app.Use(s.rateLimit)
	}

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	v1 := s.app.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	authRoutes.Post("/register", s.register)
	authRoutes.Post("/otp/verify", s.verifyOTP)
	authRoutes.Post("/otp/resend", s.resendOTP)
	authRoutes.Post("/login", s.login)
	authRoutes.Post("/logout", s.requireSession, s.logout)
	authRoutes.Post("/password/forgot", s.forgotPassword)
	authRoutes.Put("/password/reset/:token", s.resetPassword)

	// Session checks are attached per route so the matched route stays
	// visible to the access log when the guard rejects a request.
	users := v1.Group("/users")
	users.Get("/profile", s.requireSession, s.profile)
	users.Put("/password/update", s.requireSession, s.updatePassword)
	users.Put("/profile/update", s.requireSession, s.updateProfile)

	s.routes = make(map[string]struct{})
	for _, r := range s.app.GetRoutes(true) {
		s.routes[routeKey(r.Method, r.Path)] = struct{}{}
	}
}

// Start listens on addr and serves in the background. The returned channel
// receives a serve error, if any, and is closed when serving stops.
func (s *Server) Start(addr string) (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("WEB_ALREADY_RUNNING").Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	s.listener = listener

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := s.app.Listener(listener, fiber.ListenConfig{DisableStartupMessage: true}); serveErr != nil {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests and stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		s.running.Store(true)
		return oops.Code("WEB_SHUTDOWN_FAILED").With("operation", "shutdown_web_server").Wrap(err)
	}
	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

