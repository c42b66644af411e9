// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/auth/memory"
	"github.com/authgate/authgate/internal/ratelimit"
)

const (
	testClientURL = "http://localhost:3000"
	testSecret    = "0123456789abcdef0123456789abcdef"
	testOTP       = "482913"
	testPassword  = "password1"
)

var fastHasher = auth.NewArgon2idHasherWithParams(auth.Argon2Params{
	Time:    1,
	Memory:  64,
	Threads: 1,
	SaltLen: 8,
	KeyLen:  16,
})

// fixedSecrets hands out the same OTP every time and numbered reset tokens.
type fixedSecrets struct {
	mu     sync.Mutex
	resets int
}

func (s *fixedSecrets) GenerateOTP() (string, error) { return testOTP, nil }

func (s *fixedSecrets) GenerateResetToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	return "reset-token-" + strconv.Itoa(s.resets), nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []auth.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg auth.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *recordingMailer) last(t *testing.T) auth.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "expected a message to be sent")
	return m.sent[len(m.sent)-1]
}

type recordingObserver struct {
	mu       sync.Mutex
	requests []string
	limited  int
}

func (o *recordingObserver) ObserveRequest(method, route string, status int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, method+" "+route+" "+http.StatusText(status))
}

func (o *recordingObserver) ObserveRateLimited() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.limited++
}

func (o *recordingObserver) snapshot() ([]string, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.requests...), o.limited
}

// stubLimiter returns a fixed decision and records the keys it saw.
type stubLimiter struct {
	mu     sync.Mutex
	result ratelimit.Result
	err    error
	keys   []string
}

func (l *stubLimiter) Allow(_ context.Context, key string) (ratelimit.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return l.result, l.err
}

type webFixture struct {
	mailer   *recordingMailer
	observer *recordingObserver
	logs     *bytes.Buffer
	server   *Server
}

func newWebFixture(t *testing.T, opts Options, options ...Option) *webFixture {
	t.Helper()

	store, err := auth.NewCredentialStore(memory.NewAccountRepository(), fastHasher,
		auth.WithSecretGenerator(&fixedSecrets{}),
	)
	require.NoError(t, err)
	tokens, err := auth.NewTokenIssuer([]byte(testSecret), auth.DefaultTokenLifetime)
	require.NoError(t, err)

	f := &webFixture{
		mailer:   &recordingMailer{},
		observer: &recordingObserver{},
		logs:     &bytes.Buffer{},
	}
	logger := slog.New(slog.NewJSONHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	svc, err := auth.NewService(store, tokens, f.mailer, testClientURL, auth.WithLogger(logger))
	require.NoError(t, err)

	if opts.ClientURL == "" {
		opts.ClientURL = testClientURL
	}
	options = append([]Option{WithLogger(logger), WithRequestObserver(f.observer)}, options...)
	f.server, err = New(svc, opts, options...)
	require.NoError(t, err)
	return f
}

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set(fiber.HeaderAuthorization, "Bearer "+token) }
}

func withCookie(c *http.Cookie) requestOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withHeader(key, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// do sends a JSON request through the app and returns the response with its
// decoded body.
func (f *webFixture) do(t *testing.T, method, path string, body any, opts ...requestOption) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(encoded)
		}
		reader = strings.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := f.server.app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded := map[string]any{}
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &decoded), "body: %s", data)
	}
	return resp, decoded
}

// registerVerified runs register and OTP verification and returns the
// session token from the verify response.
func (f *webFixture) registerVerified(t *testing.T, email string) string {
	t.Helper()
	resp, _ := f.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": email, "password": testPassword, "confirmPassword": testPassword,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/v1/auth/otp/verify", map[string]string{
		"email": email, "otp": testOTP,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, ok := body["token"].(string)
	require.True(t, ok, "verify response should carry a token")
	return token
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == DefaultCookieName {
			return c
		}
	}
	require.FailNow(t, "session cookie not set")
	return nil
}

func userField(t *testing.T, body map[string]any, key string) any {
	t.Helper()
	user, ok := body["user"].(map[string]any)
	require.True(t, ok, "response should carry a user object")
	return user[key]
}
